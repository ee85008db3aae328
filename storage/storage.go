// storage/storage.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Package storage provides the file-level interface that a backup store
// uses to persist its objects, along with implementations backed by a
// raidfile disc set and by RAM.
package storage

import (
	"io"

	"github.com/mmp/bkraid/raidfile"
	u "github.com/mmp/bkraid/util"
)

var (
	// ErrNotFound is returned (possibly wrapped) for operations on files
	// that don't exist.
	ErrNotFound = raidfile.ErrNotFound
	// ErrExists is returned by CreateFile if the file already exists.
	ErrExists = raidfile.ErrAlreadyExists
)

///////////////////////////////////////////////////////////////////////////
// Logging

var log = u.NewLogger(false, false)

func SetLogger(l *u.Logger) {
	log = l
}

///////////////////////////////////////////////////////////////////////////
// Interface to storage

// FileWriter receives the contents of a new file. Nothing is visible
// under the file's name until Commit returns successfully.
type FileWriter interface {
	io.Writer

	// Commit makes the file available to readers under its name.
	Commit() error

	// Discard abandons the file.
	Discard() error
}

// FileInfo describes a stored file.
type FileInfo struct {
	// Size is the file's length in bytes.
	Size int64
	// Blocks is the number of blocks the file uses, for quota purposes.
	Blocks int64
	// Revision changes whenever the file is rewritten.
	Revision int64
}

// FileStorage is a simple abstraction for a store of named files. File
// names use "/" as a separator, whatever the host system.
//
// Implementations may be called concurrently for different files; callers
// must serialize operations on any single file.
type FileStorage interface {
	String() string

	// LogStats reports any statistics that the FileStorage may have
	// gathered during the course of its operation.
	LogStats()

	// BlockSize returns the size of the blocks in which usage is
	// accounted.
	BlockSize() int

	// CreateFile returns a FileWriter for a new file with the given name;
	// it's an error if a file with that name already exists.
	CreateFile(name string) (FileWriter, error)

	// Open returns the contents of the given file.
	Open(name string) (io.ReadCloser, error)

	// ReadFile returns the contents of the given file. If length is zero,
	// everything from offset on is returned; otherwise the segment
	// starting at offset with given length is returned.
	ReadFile(name string, offset, length int64) ([]byte, error)

	// Exists reports whether the given file exists and can be read.
	Exists(name string) (bool, error)

	// Stat returns information about the given file.
	Stat(name string) (FileInfo, error)

	// ForFiles calls the given function for all files under the given
	// directory (recursively), stopping at the first error returned.
	// Files within a directory are visited in sorted order.
	ForFiles(dir string, f func(name string) error) error

	// Delete removes the given file.
	Delete(name string) error

	// UsageInBlocks returns the number of blocks used by all of the
	// files under the given directory.
	UsageInBlocks(dir string) (int64, error)

	// Fsck checks the validity of the stored data, reporting problems
	// through the logger set by SetLogger. It returns the number of
	// problems found.
	Fsck() int
}

///////////////////////////////////////////////////////////////////////////
// Some utility stuff

func readSegment(r io.Reader, offset, length int64) ([]byte, error) {
	if offset > 0 {
		if _, err := io.CopyN(io.Discard, r, offset); err == io.EOF {
			return nil, nil
		} else if err != nil {
			return nil, err
		}
	}
	if length == 0 {
		return io.ReadAll(r)
	}
	b := make([]byte, length)
	n, err := io.ReadFull(r, b)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		// Short reads at the end of the file are fine.
		err = nil
	}
	return b[:n], err
}

func usage(fs FileStorage, dir string) (int64, error) {
	var total int64
	err := fs.ForFiles(dir, func(name string) error {
		fi, err := fs.Stat(name)
		total += fi.Blocks
		return err
	})
	return total, err
}

func joinName(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	if dir[len(dir)-1] == '/' {
		return dir + name
	}
	return dir + "/" + name
}
