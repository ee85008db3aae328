// raidfile/exists.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// ExistType describes what's on disk for a logical file.
type ExistType int

const (
	// Absent: neither a write file nor any components.
	Absent ExistType = iota
	// NonRedundant: the file is a single physical file, either a pending
	// write file or the plain file of a non-raid set.
	NonRedundant
	// FullyRedundant: all three raid components are present.
	FullyRedundant
	// DegradedRecoverable: one raid component is missing.
	DegradedRecoverable
	// DegradedUnrecoverable: two raid components are missing.
	DegradedUnrecoverable
)

func (t ExistType) String() string {
	switch t {
	case Absent:
		return "absent"
	case NonRedundant:
		return "non-redundant"
	case FullyRedundant:
		return "fully-redundant"
	case DegradedRecoverable:
		return "degraded-recoverable"
	case DegradedUnrecoverable:
		return "degraded-unrecoverable"
	default:
		return "invalid"
	}
}

// Readable reports whether the file's content can be read.
func (t ExistType) Readable() bool {
	return t == NonRedundant || t == FullyRedundant || t == DegradedRecoverable
}

// FileState is the result of probing a logical file.
type FileState struct {
	Type ExistType
	// StartDisc is the rotation start for the filename: the directory
	// holding the write file and component 0.
	StartDisc int
	// Components has bit k set if logical component k is present. It's
	// only meaningful for raid sets without a write file.
	Components int
	// Revision changes whenever the file is rewritten; it's zero for
	// Absent files. It's not a version number and is not ordered.
	Revision int64
	// WriteFile is set if the state came from a pending write file.
	WriteFile bool
}

// Exists probes the on-disk state of filename in ds. It only stats
// files; content is never read.
func Exists(ds *DiscSet, filename string) (FileState, error) {
	wpath, start := WriteFilePath(ds, filename)
	st := FileState{StartDisc: start}

	fi, err := statIfExists(wpath)
	if err != nil {
		return st, err
	}
	if fi != nil {
		st.Type = NonRedundant
		st.WriteFile = true
		st.Revision = ds.revision(fi.ModTime(), fi.Size())
		return st, nil
	}

	if ds.IsNonRaid() {
		fi, err := statIfExists(ComponentPath(ds, filename, StripeA))
		if err != nil {
			return st, err
		}
		if fi != nil {
			st.Type = NonRedundant
			st.Revision = ds.revision(fi.ModTime(), fi.Size())
		}
		return st, nil
	}

	var latest time.Time
	var totalSize int64
	present := 0
	for c := StripeA; c < NumComponents; c++ {
		fi, err := statIfExists(ComponentPath(ds, filename, c))
		if err != nil {
			return st, err
		}
		if fi == nil {
			continue
		}
		present++
		st.Components |= 1 << uint(c)
		totalSize += fi.Size()
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
	}

	switch present {
	case 0:
		st.Type = Absent
		return st, nil
	case ds.Size():
		st.Type = FullyRedundant
	case ds.Size() - 1:
		st.Type = DegradedRecoverable
	default:
		st.Type = DegradedUnrecoverable
	}
	st.Revision = ds.revision(latest, totalSize)
	return st, nil
}

// statIfExists returns nil, nil if path doesn't exist.
func statIfExists(path string) (os.FileInfo, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "raidfile: stat")
	}
	return fi, nil
}

func (ds *DiscSet) revision(mtime time.Time, size int64) int64 {
	if ds.coarseRevisions {
		mtime = mtime.Truncate(time.Second)
	}
	return mtime.UnixNano()/int64(time.Microsecond) + size
}
