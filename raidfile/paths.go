// raidfile/paths.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"path/filepath"
)

// Physical file naming. A logical file "name" in a raid set is stored as
// up to three components, each in a different directory of the set; the
// directory holding component 0 is chosen by RotationStart so that files
// are spread over the directories. While a file is committed but not yet
// transformed into raid storage it exists as a single write file in the
// rotation-start directory.
const (
	WriteFileExtension = ".rfw"
	StripeAExtension   = ".rfa"
	StripeBExtension   = ".rfb"
	ParityExtension    = ".rfp"
)

// Component identifies one of the three physical pieces of a file in a
// raid set.
type Component int

const (
	StripeA Component = iota
	StripeB
	Parity
	NumComponents
)

func (c Component) String() string {
	switch c {
	case StripeA:
		return "stripe-A"
	case StripeB:
		return "stripe-B"
	case Parity:
		return "parity"
	default:
		return "invalid-component"
	}
}

func (c Component) extension() string {
	return [...]string{StripeAExtension, StripeBExtension, ParityExtension}[c]
}

// RotationStart returns the sum of the byte values of filename modulo
// n. It determines physical placement, so it must never change.
func RotationStart(filename string, n int) int {
	if n <= 1 {
		return 0
	}
	var h uint64
	for i := 0; i < len(filename); i++ {
		h += uint64(filename[i])
	}
	return int(h % uint64(n))
}

// WriteFilePath returns the path of the write file for filename, along
// with the index of the directory it's in.
func WriteFilePath(ds *DiscSet, filename string) (string, int) {
	disc := ds.WriteFileDisc(filename)
	return filepath.Join(ds.dirs[disc], filepath.FromSlash(filename)) + WriteFileExtension, disc
}

// ComponentPath returns the path of the given component of filename. For
// non-raid sets, only StripeA exists; it's the plain filename in the
// set's sole directory.
func ComponentPath(ds *DiscSet, filename string, c Component) string {
	if ds.IsNonRaid() {
		return filepath.Join(ds.dirs[0], filepath.FromSlash(filename))
	}
	return ds.PhysicalPath(filename, int(c)) + c.extension()
}

// ComponentPaths returns the paths for all of the components of filename
// that the set stores: one for non-raid sets, three otherwise.
func ComponentPaths(ds *DiscSet, filename string) []string {
	if ds.IsNonRaid() {
		return []string{ComponentPath(ds, filename, StripeA)}
	}
	var paths []string
	for c := StripeA; c < NumComponents; c++ {
		paths = append(paths, ComponentPath(ds, filename, c))
	}
	return paths
}
