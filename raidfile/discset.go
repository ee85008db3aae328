// raidfile/discset.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DiscSet is a redundancy group: either a single directory, where files
// are stored as-is, or three distinct directories over which files are
// striped with parity. The block size is used for all space accounting
// of files stored in the set. DiscSets are immutable once created.
type DiscSet struct {
	number    int
	blockSize int
	dirs      []string

	// coarseRevisions drops sub-second modification times from revision
	// stamps, so that behavior matches filesystems with 1s resolution.
	coarseRevisions bool
}

// NewDiscSet validates and returns a DiscSet. dirs must hold either one
// directory or three pairwise-distinct ones.
func NewDiscSet(number, blockSize int, dirs ...string) (*DiscSet, error) {
	if number < 0 {
		return nil, badConfig("set number %d is negative", number)
	}
	if blockSize <= 0 {
		return nil, badConfig("set %d: block size %d is not positive",
			number, blockSize)
	}
	switch len(dirs) {
	case 1:
	case 3:
		if dirs[0] == dirs[1] || dirs[1] == dirs[2] || dirs[0] == dirs[2] {
			return nil, badConfig("set %d: directories %q must all be different",
				number, dirs)
		}
		if blockSize <= SizeFieldWidth {
			return nil, badConfig("set %d: block size %d must be larger than %d bytes for a raid set",
				number, blockSize, SizeFieldWidth)
		}
	default:
		return nil, badConfig("set %d: %d directories given; need 1 or 3",
			number, len(dirs))
	}
	for _, d := range dirs {
		if d == "" {
			return nil, badConfig("set %d: empty directory name", number)
		}
	}

	ds := &DiscSet{number: number, blockSize: blockSize}
	ds.dirs = append(ds.dirs, dirs...)
	return ds, nil
}

func (ds *DiscSet) Number() int    { return ds.number }
func (ds *DiscSet) BlockSize() int { return ds.blockSize }

// Size returns the number of directories in the set: 1 or 3.
func (ds *DiscSet) Size() int { return len(ds.dirs) }

// IsNonRaid reports whether files in the set are stored without
// redundancy.
func (ds *DiscSet) IsNonRaid() bool { return len(ds.dirs) == 1 }

// Dir returns the i'th directory of the set.
func (ds *DiscSet) Dir(i int) string { return ds.dirs[i] }

// Dirs returns a copy of the set's directories, in configuration order.
func (ds *DiscSet) Dirs() []string {
	return append([]string(nil), ds.dirs...)
}

func (ds *DiscSet) String() string {
	if ds.IsNonRaid() {
		return fmt.Sprintf("set %d (non-raid, %d byte blocks): %s", ds.number,
			ds.blockSize, ds.dirs[0])
	}
	return fmt.Sprintf("set %d (raid, %d byte blocks): %s", ds.number,
		ds.blockSize, strings.Join(ds.dirs, ", "))
}

// WriteFileDisc returns the index of the directory holding the write
// file (and logical component 0) for the given filename.
func (ds *DiscSet) WriteFileDisc(filename string) int {
	return RotationStart(filename, len(ds.dirs))
}

// PhysicalPath returns filename placed in the directory offset places
// after the filename's rotation start, wrapping around the set.
func (ds *DiscSet) PhysicalPath(filename string, offset int) string {
	disc := (ds.WriteFileDisc(filename) + offset) % len(ds.dirs)
	if disc < 0 {
		disc += len(ds.dirs)
	}
	return filepath.Join(ds.dirs[disc], filepath.FromSlash(filename))
}
