// raidfile/dir.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DirReadType selects what ReadDirectoryContents returns.
type DirReadType int

const (
	FilesOnly DirReadType = iota
	DirsOnly
)

// CreateDirectory creates dir (and any missing parents) in every
// directory of the set.
func CreateDirectory(ds *DiscSet, dir string) error {
	for _, root := range ds.dirs {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0700); err != nil {
			return errors.Wrap(err, "raidfile: create directory")
		}
	}
	return nil
}

// DirectoryExists reports whether dir exists in any directory of the set.
func DirectoryExists(ds *DiscSet, dir string) (bool, error) {
	for _, root := range ds.dirs {
		fi, err := statIfExists(filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil {
			return false, err
		}
		if fi != nil && fi.IsDir() {
			return true, nil
		}
	}
	return false, nil
}

// ReadDirectoryContents returns the sorted names of the logical files or
// subdirectories in dir. Names are merged across the set's directories
// and physical suffixes are removed, so a file is listed even if only
// some of its components survive. The temporary files used while writing
// are skipped.
func ReadDirectoryContents(ds *DiscSet, dir string, what DirReadType) ([]string, error) {
	names := make(map[string]bool)
	found := false
	for _, root := range ds.dirs {
		entries, err := ioutil.ReadDir(filepath.Join(root, filepath.FromSlash(dir)))
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return nil, errors.Wrap(err, "raidfile: read directory")
		}
		found = true

		for _, e := range entries {
			name := e.Name()
			if what == DirsOnly {
				if e.IsDir() {
					names[name] = true
				}
				continue
			}
			if !e.Mode().IsRegular() || isTempName(name) {
				continue
			}
			if logical, ok := logicalName(ds, name); ok {
				names[logical] = true
			}
		}
	}
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "set %d: directory %q", ds.Number(), dir)
	}

	var result []string
	for n := range names {
		result = append(result, n)
	}
	sort.Strings(result)
	return result, nil
}

// logicalName strips the physical suffix from a directory entry,
// returning false for entries that aren't part of a logical file.
func logicalName(ds *DiscSet, name string) (string, bool) {
	if strings.HasSuffix(name, WriteFileExtension) {
		return strings.TrimSuffix(name, WriteFileExtension), true
	}
	if ds.IsNonRaid() {
		return name, true
	}
	for c := StripeA; c < NumComponents; c++ {
		if strings.HasSuffix(name, c.extension()) {
			return strings.TrimSuffix(name, c.extension()), true
		}
	}
	return "", false
}

// isTempName reports whether a directory entry is a temporary file
// created while writing a write file or component: renameio names them
// "." + the final name + random digits.
func isTempName(name string) bool {
	if !strings.HasPrefix(name, ".") {
		return false
	}
	base := strings.TrimRightFunc(name, func(r rune) bool { return r >= '0' && r <= '9' })
	if len(base) == len(name) {
		return false
	}
	if strings.HasSuffix(base, WriteFileExtension) {
		return true
	}
	for c := StripeA; c < NumComponents; c++ {
		if strings.HasSuffix(base, c.extension()) {
			return true
		}
	}
	return false
}
