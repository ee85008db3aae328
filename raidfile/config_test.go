// raidfile/config_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

const goodYAML = `
primary:
  SetNumber: 0
  BlockSize: 2048
  Dir0: /raid/a
  Dir1: /raid/b
  Dir2: /raid/c
single:
  SetNumber: 1
  BlockSize: 4096
  Dir0: /store/one
same:
  SetNumber: 2
  BlockSize: 512
  Dir0: /store/two
  Dir1: /store/two
  Dir2: /store/two
`

const goodJSONC = `{
  // Same sets as goodYAML.
  "primary": {"SetNumber": 0, "BlockSize": 2048,
              "Dir0": "/raid/a", "Dir1": "/raid/b", "Dir2": "/raid/c"},
  "single": {"SetNumber": 1, "BlockSize": 4096, "Dir0": "/store/one"},
  /* all three the same */
  "same": {"SetNumber": 2, "BlockSize": 512,
           "Dir0": "/store/two", "Dir1": "/store/two", "Dir2": "/store/two",},
}`

func checkGoodSets(t *testing.T, c *Controller) {
	if c.NumDiscSets() != 3 {
		t.Fatalf("%d disc sets, expected 3", c.NumDiscSets())
	}
	expect := []struct {
		blockSize int
		dirs      []string
	}{
		{2048, []string{"/raid/a", "/raid/b", "/raid/c"}},
		{4096, []string{"/store/one"}},
		{512, []string{"/store/two"}},
	}
	for i, e := range expect {
		ds, err := c.GetDiscSet(i)
		if err != nil {
			t.Fatalf("set %d: %+v", i, err)
		}
		if ds.Number() != i || ds.BlockSize() != e.blockSize {
			t.Errorf("set %d: got number %d block size %d", i, ds.Number(), ds.BlockSize())
		}
		dirs := ds.Dirs()
		if len(dirs) != len(e.dirs) {
			t.Fatalf("set %d: dirs %v, expected %v", i, dirs, e.dirs)
		}
		for j := range dirs {
			if dirs[j] != e.dirs[j] {
				t.Errorf("set %d: dirs %v, expected %v", i, dirs, e.dirs)
			}
		}
		if ds.IsNonRaid() != (len(e.dirs) == 1) {
			t.Errorf("set %d: IsNonRaid %v", i, ds.IsNonRaid())
		}
	}
}

func TestConfigYAML(t *testing.T) {
	c := NewController()
	if err := c.Parse([]byte(goodYAML), FormatYAML); err != nil {
		t.Fatalf("%+v", err)
	}
	checkGoodSets(t, c)
}

func TestConfigJSONC(t *testing.T) {
	c := NewController()
	if err := c.Parse([]byte(goodJSONC), FormatJSONC); err != nil {
		t.Fatalf("%+v", err)
	}
	checkGoodSets(t, c)
}

func TestConfigLoadFile(t *testing.T) {
	dir := t.TempDir()
	for fn, contents := range map[string]string{
		"raidfile.yaml":  goodYAML,
		"raidfile.conf":  goodYAML,
		"raidfile.jsonc": goodJSONC,
		"raidfile.json":  goodJSONC,
	} {
		path := filepath.Join(dir, fn)
		if err := ioutil.WriteFile(path, []byte(contents), 0600); err != nil {
			t.Fatal(err)
		}
		c, err := Load(path)
		if err != nil {
			t.Fatalf("%s: %+v", fn, err)
		}
		checkGoodSets(t, c)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("expected error loading missing file")
	}
}

func TestConfigErrors(t *testing.T) {
	for name, cfg := range map[string]string{
		"out of sequence": `
a: {SetNumber: 1, BlockSize: 1024, Dir0: /x}`,
		"gap": `
a: {SetNumber: 0, BlockSize: 1024, Dir0: /x}
b: {SetNumber: 2, BlockSize: 1024, Dir0: /y}`,
		"two equal dirs": `
a: {SetNumber: 0, BlockSize: 1024, Dir0: /x, Dir1: /x, Dir2: /y}`,
		"two equal dirs, last pair": `
a: {SetNumber: 0, BlockSize: 1024, Dir0: /x, Dir1: /y, Dir2: /y}`,
		"dir1 without dir2": `
a: {SetNumber: 0, BlockSize: 1024, Dir0: /x, Dir1: /y}`,
		"zero block size": `
a: {SetNumber: 0, BlockSize: 0, Dir0: /x}`,
		"negative block size": `
a: {SetNumber: 0, BlockSize: -10, Dir0: /x}`,
		"non-integer block size": `
a: {SetNumber: 0, BlockSize: big, Dir0: /x}`,
		"negative set number": `
a: {SetNumber: -1, BlockSize: 1024, Dir0: /x}`,
		"missing block size": `
a: {SetNumber: 0, Dir0: /x}`,
		"missing dir0": `
a: {SetNumber: 0, BlockSize: 1024}`,
		"unknown key": `
a: {SetNumber: 0, BlockSize: 1024, Dir0: /x, Dir3: /z}`,
		"raid block size too small": `
a: {SetNumber: 0, BlockSize: 8, Dir0: /x, Dir1: /y, Dir2: /z}`,
		"not a mapping": `
- SetNumber: 0`,
		"section not a mapping": `
a: 12`,
		"syntax": `
a: {SetNumber: 0`,
	} {
		c := NewController()
		err := c.Parse([]byte(cfg), FormatYAML)
		if err == nil {
			t.Errorf("%s: expected error", name)
		} else if !errors.Is(err, ErrBadConfig) {
			t.Errorf("%s: error %v doesn't wrap ErrBadConfig", name, err)
		}
		if c.NumDiscSets() != 0 {
			t.Errorf("%s: %d sets installed after failed parse", name, c.NumDiscSets())
		}
	}
}

func TestConfigNonRaidSmallBlocks(t *testing.T) {
	// Only raid sets need room for the size field.
	c := NewController()
	if err := c.Parse([]byte("a: {SetNumber: 0, BlockSize: 1, Dir0: /x}"), FormatYAML); err != nil {
		t.Errorf("%+v", err)
	}
}

func TestConfigReload(t *testing.T) {
	c := NewController()
	if err := c.Parse([]byte(goodYAML), FormatYAML); err != nil {
		t.Fatalf("%+v", err)
	}

	// A failed reload leaves the previous table in place.
	bad := goodYAML + `
extra:
  SetNumber: 7
  BlockSize: 1024
  Dir0: /x
`
	if err := c.Parse([]byte(bad), FormatYAML); err == nil {
		t.Fatalf("expected error")
	}
	checkGoodSets(t, c)

	// A successful one replaces it wholesale.
	if err := c.Parse([]byte("only: {SetNumber: 0, BlockSize: 100, Dir0: /only}"),
		FormatYAML); err != nil {
		t.Fatalf("%+v", err)
	}
	if c.NumDiscSets() != 1 {
		t.Errorf("%d sets after reload", c.NumDiscSets())
	}
	if ds, _ := c.GetDiscSet(0); ds.BlockSize() != 100 {
		t.Errorf("block size %d after reload", ds.BlockSize())
	}
}

func TestNoSuchDiscSet(t *testing.T) {
	c := NewController()
	if err := c.Parse([]byte(goodYAML), FormatYAML); err != nil {
		t.Fatalf("%+v", err)
	}
	for _, n := range []int{-1, 3, 100} {
		_, err := c.GetDiscSet(n)
		if !errors.Is(err, ErrNoSuchDiscSet) {
			t.Errorf("set %d: unexpected error %v", n, err)
		}
		var nse *NoSuchSetError
		if !errors.As(err, &nse) {
			t.Fatalf("set %d: not a NoSuchSetError: %v", n, err)
		}
		if nse.Requested != n || nse.Configured != 3 {
			t.Errorf("set %d: got %+v", n, nse)
		}
	}

	if _, err := c.DiscSetPathToFileSystemPath(5, "x", 0); !errors.Is(err, ErrNoSuchDiscSet) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestSetDiscSets(t *testing.T) {
	a, _ := NewDiscSet(0, 1024, "/a")
	b, _ := NewDiscSet(1, 1024, "/b", "/c", "/d")
	c := NewController(CoarseRevisions(true))
	if err := c.SetDiscSets(b, a); !errors.Is(err, ErrBadConfig) {
		t.Errorf("out of order sets accepted: %v", err)
	}
	if err := c.SetDiscSets(a, b); err != nil {
		t.Fatalf("%+v", err)
	}
	ds, err := c.GetDiscSet(1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !ds.coarseRevisions {
		t.Errorf("controller options not applied to installed set")
	}
	if b.coarseRevisions {
		t.Errorf("caller's disc set was modified")
	}
}

func TestNewDiscSetErrors(t *testing.T) {
	for _, tc := range []struct {
		number, blockSize int
		dirs              []string
	}{
		{-1, 1024, []string{"/a"}},
		{0, 0, []string{"/a"}},
		{0, 1024, nil},
		{0, 1024, []string{"/a", "/b"}},
		{0, 1024, []string{"/a", "/b", "/a"}},
		{0, 1024, []string{"/a", "/b", "/c", "/d"}},
		{0, 1024, []string{""}},
		{0, SizeFieldWidth, []string{"/a", "/b", "/c"}},
	} {
		if _, err := NewDiscSet(tc.number, tc.blockSize, tc.dirs...); !errors.Is(err, ErrBadConfig) {
			t.Errorf("%+v: unexpected error %v", tc, err)
		}
	}
}
