// raidfile/raidfile_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"bytes"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	u "github.com/mmp/bkraid/util"
)

func init() {
	SetLogger(u.NewLoggerTo(ioutil.Discard, false, false))
}

func seedRand(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	t.Logf("Seed = %d", seed)
	return rand.New(rand.NewSource(seed))
}

func randBytes(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b
}

func newRaidSet(t *testing.T, blockSize int) *DiscSet {
	root := t.TempDir()
	ds, err := NewDiscSet(0, blockSize, filepath.Join(root, "d0"),
		filepath.Join(root, "d1"), filepath.Join(root, "d2"))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return ds
}

func newNonRaidSet(t *testing.T, blockSize int) *DiscSet {
	ds, err := NewDiscSet(0, blockSize, t.TempDir())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return ds
}

// encode returns the three stripes for b.
func encode(t *testing.T, b []byte, blockSize int) (a, sb, p []byte) {
	var ba, bb, bp bytes.Buffer
	n, err := EncodeStripes(bytes.NewReader(b), blockSize, &ba, &bb, &bp)
	if err != nil {
		t.Fatalf("%d bytes, block size %d: %+v", len(b), blockSize, err)
	}
	if n != int64(len(b)) {
		t.Fatalf("encoded %d bytes, expected %d", n, len(b))
	}
	return ba.Bytes(), bb.Bytes(), bp.Bytes()
}

func writeFile(t *testing.T, ds *DiscSet, name string, b []byte, convert bool) {
	if _, err := WriteFile(ds, name, bytes.NewReader(b), false, convert); err != nil {
		t.Fatalf("%s: %+v", name, err)
	}
}

func readFile(ds *DiscSet, name string, opts ...ReadOption) ([]byte, error) {
	r, err := Open(ds, name, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}
