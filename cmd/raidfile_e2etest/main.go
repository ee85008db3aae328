// cmd/raidfile_e2etest/main.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/hlubek/readercomp"
	"github.com/mmp/bkraid/raidfile"
	u "github.com/mmp/bkraid/util"
	"github.com/pkg/errors"
)

var log *u.Logger

func main() {
	log = u.NewLogger(true /*verbose*/, false /*debug*/)
	raidfile.SetLogger(u.NewLogger(false, false))

	seed := int64(os.Getpid())
	log.Verbose("Seed = %d", seed)
	rand.Seed(seed)

	root, err := ioutil.TempDir("", "raidfile_e2e")
	if err != nil {
		log.Fatal("%s", err)
	}
	defer os.RemoveAll(root)

	blockSize := 16 + rand.Intn(64*1024)
	ds, err := raidfile.NewDiscSet(0, blockSize, filepath.Join(root, "a"),
		filepath.Join(root, "b"), filepath.Join(root, "c"))
	if err != nil {
		log.Fatal("%+v", err)
	}
	log.Verbose("%s", ds)

	files := make(map[string][]byte)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("dir%d/file%d", rand.Intn(4), i)
		// Bias toward lengths near multiples of the block size.
		n := rand.Intn(8)*blockSize + rand.Intn(blockSize+1) - rand.Intn(16)
		if n < 0 {
			n = 0
		}
		buf := make([]byte, n)
		_, _ = rand.Read(buf)
		if _, err := raidfile.WriteFile(ds, name, bytes.NewReader(buf), true, true); err != nil {
			log.Fatal("%s: %+v", name, err)
		}
		files[name] = buf
		log.Debug("%s: %d bytes", name, n)
	}

	// Everything should read back fine.
	for name, buf := range files {
		checkContents(ds, name, buf)
	}

	// Remove one component of each file and make sure the contents are
	// still available.
	for name, buf := range files {
		c := raidfile.Component(rand.Intn(int(raidfile.NumComponents)))
		if err := os.Remove(raidfile.ComponentPath(ds, name, c)); err != nil {
			log.Fatal("%s", err)
		}
		st, err := raidfile.Exists(ds, name)
		if err != nil {
			log.Fatal("%s: %+v", name, err)
		}
		if st.Type != raidfile.DegradedRecoverable {
			log.Error("%s: removed %s but state is %s", name, c, st.Type)
		}
		checkContents(ds, name, buf)
	}

	// Rewriting restores full redundancy; then a corrupted byte should
	// be caught by a parity check.
	for name, buf := range files {
		if _, err := raidfile.WriteFile(ds, name, bytes.NewReader(buf), true, true); err != nil {
			log.Fatal("%s: %+v", name, err)
		}
		if len(buf) == 0 {
			continue
		}
		res, err := raidfile.Check(ds, name)
		if err != nil || !res.ParityChecked {
			log.Error("%s: check failed %v", name, err)
			continue
		}
		if res.Digest != raidfile.DigestBytes(buf) {
			log.Error("%s: digest mismatch", name)
		}

		path := raidfile.ComponentPath(ds, name, raidfile.StripeA)
		corrupt(path)
		if _, err := raidfile.Check(ds, name); !errors.Is(err, raidfile.ErrCorrupt) {
			log.Error("%s: corruption not detected (%v)", name, err)
		}
	}

	if log.NErrors > 0 {
		os.Exit(1)
	}
	log.Verbose("%d files ok", len(files))
}

func checkContents(ds *raidfile.DiscSet, name string, buf []byte) {
	r, err := raidfile.Open(ds, name)
	if err != nil {
		log.Error("%s: %+v", name, err)
		return
	}
	defer r.Close()

	if r.Size() != int64(len(buf)) {
		log.Error("%s: size %d, expected %d", name, r.Size(), len(buf))
	}
	ok, err := readercomp.Equal(r, bytes.NewReader(buf), 4096)
	if err != nil {
		log.Error("%s: %+v", name, err)
	} else if !ok {
		log.Error("%s: contents mismatch", name)
	}
}

func corrupt(path string) {
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		log.Fatal("%s", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		log.Fatal("%s", err)
	}
	if fi.Size() == 0 {
		return
	}

	offset := rand.Int63n(fi.Size())
	var b [1]byte
	if _, err := f.ReadAt(b[:], offset); err != nil {
		log.Fatal("%s", err)
	}
	b[0] ^= byte(1 + rand.Intn(255))
	if _, err := f.WriteAt(b[:], offset); err != nil {
		log.Fatal("%s", err)
	}
}
