// raidfile/paths_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"path/filepath"
	"testing"
)

func TestRotationStart(t *testing.T) {
	for _, tc := range []struct {
		name   string
		n, exp int
	}{
		{"", 3, 0},
		{"a", 3, 97 % 3},
		{"b", 3, 98 % 3},
		{"abc", 3, (97 + 98 + 99) % 3},
		{"anything", 1, 0},
		// Bytes are unsigned.
		{"\xff", 3, 255 % 3},
		{"dir/o01", 3, (100 + 105 + 114 + 47 + 111 + 48 + 49) % 3},
	} {
		if got := RotationStart(tc.name, tc.n); got != tc.exp {
			t.Errorf("RotationStart(%q, %d) = %d, expected %d", tc.name, tc.n, got, tc.exp)
		}
	}

	r := seedRand(t)
	for i := 0; i < 1000; i++ {
		name := string(randBytes(r, r.Intn(50)))
		s := RotationStart(name, 3)
		if s < 0 || s >= 3 {
			t.Fatalf("%q: rotation start %d out of range", name, s)
		}
		if s != RotationStart(name, 3) {
			t.Fatalf("%q: rotation start not stable", name)
		}
	}
}

func TestPaths(t *testing.T) {
	ds, err := NewDiscSet(0, 1024, "/r0", "/r1", "/r2")
	if err != nil {
		t.Fatal(err)
	}

	// "a" starts at directory 1.
	wp, disc := WriteFilePath(ds, "a")
	if wp != filepath.FromSlash("/r1/a.rfw") || disc != 1 {
		t.Errorf("write path %s, disc %d", wp, disc)
	}
	for c, exp := range []string{"/r1/a.rfa", "/r2/a.rfb", "/r0/a.rfp"} {
		if p := ComponentPath(ds, "a", Component(c)); p != filepath.FromSlash(exp) {
			t.Errorf("component %d: path %s, expected %s", c, p, exp)
		}
	}
	if p := ComponentPaths(ds, "a"); len(p) != 3 {
		t.Errorf("%d component paths", len(p))
	}

	// Subdirectories are kept; the whole name determines the rotation.
	name := "sub/dir/x"
	s := RotationStart(name, 3)
	if p := ds.PhysicalPath(name, 2); p != filepath.Join(ds.Dir((s+2)%3), "sub", "dir", "x") {
		t.Errorf("physical path %s", p)
	}

	c := NewController()
	if err := c.SetDiscSets(ds); err != nil {
		t.Fatal(err)
	}
	for offset := 0; offset < 6; offset++ {
		p, err := c.DiscSetPathToFileSystemPath(0, "a", offset)
		if err != nil {
			t.Fatal(err)
		}
		if exp := filepath.Join(ds.Dir((1+offset)%3), "a"); p != exp {
			t.Errorf("offset %d: %s, expected %s", offset, p, exp)
		}
	}
}

func TestNonRaidPaths(t *testing.T) {
	ds, err := NewDiscSet(3, 512, "/store")
	if err != nil {
		t.Fatal(err)
	}
	wp, disc := WriteFilePath(ds, "abc")
	if wp != filepath.FromSlash("/store/abc.rfw") || disc != 0 {
		t.Errorf("write path %s, disc %d", wp, disc)
	}
	paths := ComponentPaths(ds, "abc")
	if len(paths) != 1 || paths[0] != filepath.FromSlash("/store/abc") {
		t.Errorf("component paths %v", paths)
	}
}
