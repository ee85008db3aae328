// raidfile/exists_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func touch(t *testing.T, path string, size int) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(path, make([]byte, size), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestExistsRaid(t *testing.T) {
	ds := newRaidSet(t, 64)
	name := "probe"
	paths := ComponentPaths(ds, name)

	check := func(exp ExistType, mask int) {
		t.Helper()
		st, err := Exists(ds, name)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if st.Type != exp {
			t.Errorf("got %s, expected %s", st.Type, exp)
		}
		if st.Components != mask {
			t.Errorf("component mask %b, expected %b", st.Components, mask)
		}
		if st.StartDisc != RotationStart(name, 3) {
			t.Errorf("start disc %d", st.StartDisc)
		}
		if (exp == Absent) != (st.Revision == 0) {
			t.Errorf("%s with revision %d", st.Type, st.Revision)
		}
	}

	check(Absent, 0)
	touch(t, paths[Parity], 10)
	check(DegradedUnrecoverable, 4)
	touch(t, paths[StripeA], 10)
	check(DegradedRecoverable, 5)
	touch(t, paths[StripeB], 10)
	check(FullyRedundant, 7)
	os.Remove(paths[StripeA])
	check(DegradedRecoverable, 6)
	os.Remove(paths[Parity])
	check(DegradedUnrecoverable, 2)
}

func TestExistsWriteFileWins(t *testing.T) {
	ds := newRaidSet(t, 64)
	name := "stale"
	for _, p := range ComponentPaths(ds, name) {
		touch(t, p, 100)
	}
	wp, _ := WriteFilePath(ds, name)
	touch(t, wp, 17)

	st, err := Exists(ds, name)
	if err != nil {
		t.Fatal(err)
	}
	if st.Type != NonRedundant || !st.WriteFile {
		t.Errorf("got %s (write file %v), expected non-redundant write file", st.Type, st.WriteFile)
	}

	// The write file's content is what's read.
	b, err := readFile(ds, name)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(b) != 17 {
		t.Errorf("read %d bytes", len(b))
	}
}

func TestExistsNonRaid(t *testing.T) {
	ds := newNonRaidSet(t, 64)
	st, err := Exists(ds, "f")
	if err != nil || st.Type != Absent {
		t.Fatalf("%v %+v", st.Type, err)
	}
	touch(t, ComponentPath(ds, "f", StripeA), 5)
	st, err = Exists(ds, "f")
	if err != nil || st.Type != NonRedundant || st.WriteFile {
		t.Fatalf("%+v %+v", st, err)
	}
}

func TestRevision(t *testing.T) {
	ds := newRaidSet(t, 64)
	c := NewController(CoarseRevisions(true))
	if err := c.SetDiscSets(ds); err != nil {
		t.Fatal(err)
	}
	coarse, _ := c.GetDiscSet(0)

	name := "rev"
	paths := ComponentPaths(ds, name)
	mtime := time.Unix(1500000000, 123456789)
	for i, p := range paths {
		touch(t, p, 10*(i+1))
		if err := os.Chtimes(p, mtime, mtime.Add(-time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}

	// Latest mtime is that of component 0.
	fine, err := Exists(ds, name)
	if err != nil {
		t.Fatal(err)
	}
	if exp := int64(1500000000123456) + 60; fine.Revision != exp {
		t.Errorf("revision %d, expected %d", fine.Revision, exp)
	}

	st, err := Exists(coarse, name)
	if err != nil {
		t.Fatal(err)
	}
	if exp := int64(1500000000000000) + 60; st.Revision != exp {
		t.Errorf("coarse revision %d, expected %d", st.Revision, exp)
	}

	// A same-second rewrite with a different size changes the stamp.
	touch(t, paths[StripeB], 11)
	if err := os.Chtimes(paths[StripeB], mtime, mtime); err != nil {
		t.Fatal(err)
	}
	st2, err := Exists(coarse, name)
	if err != nil {
		t.Fatal(err)
	}
	if st2.Revision == st.Revision {
		t.Errorf("revision unchanged after rewrite")
	}
}

func TestStatErrorsReturned(t *testing.T) {
	ds := newRaidSet(t, 64)
	// With each root a regular file, stats below it fail with ENOTDIR
	// rather than not-exist.
	for _, d := range ds.Dirs() {
		touch(t, d, 0)
	}

	if st, err := Exists(ds, "x/y"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("exists: state %s, error %v", st.Type, err)
	}
	if _, err := Open(ds, "x/y"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("open: error %v", err)
	}
	if err := Delete(ds, "x/y"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("delete: error %v", err)
	}

	nr := newNonRaidSet(t, 64)
	touch(t, filepath.Join(nr.Dir(0), "x"), 0)
	if st, err := Exists(nr, "x/y"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("non-raid exists: state %s, error %v", st.Type, err)
	}
}
