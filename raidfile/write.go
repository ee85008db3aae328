// raidfile/write.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	u "github.com/mmp/bkraid/util"
	"github.com/pkg/errors"
)

// Writer writes a new logical file. Data goes to a hidden temporary file
// in the write file's directory; nothing is visible under the write
// file's name until Commit.
type Writer struct {
	ds       *DiscSet
	filename string
	path     string
	pending  *renameio.PendingFile
	bw       *bufio.Writer
	size     int64
}

// Create starts writing filename in ds. If the file already exists
// (in any state) and allowOverwrite is false, it fails with
// ErrAlreadyExists. Any missing parent directories of the write file are
// created.
func Create(ds *DiscSet, filename string, allowOverwrite bool) (*Writer, error) {
	if !allowOverwrite {
		st, err := Exists(ds, filename)
		if err != nil {
			return nil, err
		}
		if st.Type != Absent {
			return nil, errors.Wrapf(ErrAlreadyExists, "set %d: %s (%s)",
				ds.Number(), filename, st.Type)
		}
	}

	path, _ := WriteFilePath(ds, filename)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "raidfile: create directory")
	}
	pf, err := renameio.TempFile(dir, path)
	if err != nil {
		return nil, errors.Wrap(err, "raidfile: create")
	}
	return &Writer{ds: ds, filename: filename, path: path, pending: pf,
		bw: bufio.NewWriterSize(pf, writeBufferSize(ds))}, nil
}

func writeBufferSize(ds *DiscSet) int {
	if bs := ds.BlockSize(); bs > 64*1024 {
		return bs
	}
	return 64 * 1024
}

func (w *Writer) Write(b []byte) (int, error) {
	if w.pending == nil {
		return 0, errors.New("raidfile: write after commit or discard")
	}
	n, err := w.bw.Write(b)
	w.size += int64(n)
	return n, errors.Wrap(err, "raidfile: write")
}

// Size returns the number of bytes written so far.
func (w *Writer) Size() int64 { return w.size }

// DiscUsageInBlocks returns the number of blocks the file will occupy
// once it's committed and transformed.
func (w *Writer) DiscUsageInBlocks() int64 {
	return UsageInBlocks(w.size, w.ds)
}

// Commit syncs the file and atomically renames it to the write file
// name. If convertToRaid is set, it's then transformed to its final
// representation.
func (w *Writer) Commit(convertToRaid bool) error {
	if w.pending == nil {
		return errors.New("raidfile: commit after commit or discard")
	}
	pf := w.pending
	w.pending = nil
	defer pf.Cleanup()

	if err := w.bw.Flush(); err != nil {
		return errors.Wrap(err, "raidfile: write")
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return errors.Wrap(err, "raidfile: commit")
	}
	log.Debug("%s: committed %d bytes to %s", w.filename, w.size, w.path)

	if convertToRaid {
		return TransformToRaidStorage(w.ds, w.filename)
	}
	return nil
}

// Discard abandons the file, removing the temporary file.
func (w *Writer) Discard() error {
	if w.pending == nil {
		return nil
	}
	pf := w.pending
	w.pending = nil
	return errors.Wrap(pf.Cleanup(), "raidfile: discard")
}

// TransformToRaidStorage converts a committed write file to its final
// form: three components for raid sets, or the plain file for non-raid
// sets. Each component is fully written under a temporary name before
// being renamed into place, and the write file is only removed once all
// three are in place, so a probe always sees either the write file or a
// complete set of components.
func TransformToRaidStorage(ds *DiscSet, filename string) error {
	wpath, _ := WriteFilePath(ds, filename)
	if ds.IsNonRaid() {
		err := os.Rename(wpath, ComponentPath(ds, filename, StripeA))
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "set %d: %s: no write file", ds.Number(), filename)
		}
		return errors.Wrap(err, "raidfile: transform")
	}

	f, err := os.Open(wpath)
	if os.IsNotExist(err) {
		return errors.Wrapf(ErrNotFound, "set %d: %s: no write file", ds.Number(), filename)
	} else if err != nil {
		return errors.Wrap(err, "raidfile: transform")
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "raidfile: transform")
	}

	var pending [NumComponents]*renameio.PendingFile
	var bufs [NumComponents]*bufio.Writer
	defer func() {
		for _, pf := range pending {
			if pf != nil {
				pf.Cleanup()
			}
		}
	}()
	for c := StripeA; c < NumComponents; c++ {
		path := ComponentPath(ds, filename, c)
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return errors.Wrap(err, "raidfile: create directory")
		}
		if pending[c], err = renameio.TempFile(filepath.Dir(path), path); err != nil {
			return errors.Wrap(err, "raidfile: transform")
		}
		bufs[c] = bufio.NewWriterSize(pending[c], writeBufferSize(ds))
	}

	rr := &u.ReportingReader{R: f, Msg: filename + ": transformed", Log: log}
	n, err := EncodeStripes(rr, ds.BlockSize(), bufs[StripeA], bufs[StripeB], bufs[Parity])
	if err != nil {
		return err
	}
	if n != fi.Size() {
		return errors.Errorf("raidfile: %s: encoded %d bytes but write file is %d bytes",
			filename, n, fi.Size())
	}

	for c := StripeA; c < NumComponents; c++ {
		if err := bufs[c].Flush(); err != nil {
			return errors.Wrapf(err, "raidfile: writing %s", c)
		}
		if err := pending[c].CloseAtomicallyReplace(); err != nil {
			return errors.Wrapf(err, "raidfile: committing %s", c)
		}
	}
	if err := os.Remove(wpath); err != nil {
		return errors.Wrap(err, "raidfile: removing write file")
	}
	log.Verbose("%s: transformed %s to raid storage in set %d", filename,
		u.FmtBytes(n), ds.Number())
	return nil
}

// Delete removes all physical files for filename: the write file and
// whatever components exist. It returns ErrNotFound if there were none.
func Delete(ds *DiscSet, filename string) error {
	wpath, _ := WriteFilePath(ds, filename)
	paths := append([]string{wpath}, ComponentPaths(ds, filename)...)

	found := false
	for _, p := range paths {
		err := os.Remove(p)
		if err == nil {
			found = true
		} else if !os.IsNotExist(err) {
			return errors.Wrap(err, "raidfile: delete")
		}
	}
	if !found {
		return errors.Wrapf(ErrNotFound, "set %d: %s", ds.Number(), filename)
	}
	return nil
}

// WriteFile is a convenience wrapper that writes all of r to filename and
// commits it.
func WriteFile(ds *DiscSet, filename string, r io.Reader, allowOverwrite, convertToRaid bool) (int64, error) {
	w, err := Create(ds, filename, allowOverwrite)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Discard()
		return 0, err
	}
	return w.Size(), w.Commit(convertToRaid)
}
