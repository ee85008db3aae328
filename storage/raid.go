// storage/raid.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package storage

import (
	"fmt"
	"io"
	"path"
	"sync/atomic"

	"github.com/mmp/bkraid/raidfile"
	u "github.com/mmp/bkraid/util"
	"github.com/pkg/errors"
)

type raid struct {
	ds        *raidfile.DiscSet
	scrubRate int

	bytesSaved, filesSaved int64 // updated atomically
}

// RaidOption customizes the FileStorage returned by NewRaid.
type RaidOption func(*raid)

// ScrubRate limits Fsck to reading bytesPerSecond; zero means no limit.
func ScrubRate(bytesPerSecond int) RaidOption {
	return func(r *raid) { r.scrubRate = bytesPerSecond }
}

// NewRaid returns a FileStorage that stores files in the given disc set
// of the Controller. Files are converted to raid storage as they're
// committed.
func NewRaid(ctl *raidfile.Controller, set int, opts ...RaidOption) (FileStorage, error) {
	ds, err := ctl.GetDiscSet(set)
	if err != nil {
		return nil, err
	}
	r := &raid{ds: ds}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *raid) String() string {
	return "raidfile: " + r.ds.String()
}

func (r *raid) BlockSize() int {
	return r.ds.BlockSize()
}

func (r *raid) LogStats() {
	bytes, files := atomic.LoadInt64(&r.bytesSaved), atomic.LoadInt64(&r.filesSaved)
	if files > 0 {
		log.Print("saved %s in %d files (avg %.1f B / file)",
			u.FmtBytes(bytes), files, float64(bytes)/float64(files))
	}
}

type raidWriter struct {
	*raidfile.Writer
	r *raid
}

func (w *raidWriter) Commit() error {
	if err := w.Writer.Commit(true); err != nil {
		return err
	}
	atomic.AddInt64(&w.r.bytesSaved, w.Size())
	atomic.AddInt64(&w.r.filesSaved, 1)
	return nil
}

func (r *raid) CreateFile(name string) (FileWriter, error) {
	w, err := raidfile.Create(r.ds, name, false)
	if err != nil {
		return nil, err
	}
	return &raidWriter{Writer: w, r: r}, nil
}

func (r *raid) Open(name string) (io.ReadCloser, error) {
	rd, err := raidfile.Open(r.ds, name)
	if err != nil {
		return nil, err
	}
	return rd, nil
}

func (r *raid) ReadFile(name string, offset, length int64) ([]byte, error) {
	rd, err := raidfile.Open(r.ds, name)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	b, err := readSegment(rd, offset, length)
	return b, errors.WithMessage(err, name)
}

func (r *raid) Exists(name string) (bool, error) {
	st, err := raidfile.Exists(r.ds, name)
	return st.Type.Readable(), err
}

func (r *raid) Stat(name string) (FileInfo, error) {
	rd, err := raidfile.Open(r.ds, name)
	if err != nil {
		return FileInfo{}, err
	}
	defer rd.Close()
	return FileInfo{Size: rd.Size(), Blocks: rd.DiscUsageInBlocks(),
		Revision: rd.State().Revision}, nil
}

func (r *raid) ForFiles(dir string, f func(name string) error) error {
	files, err := raidfile.ReadDirectoryContents(r.ds, dir, raidfile.FilesOnly)
	if err != nil {
		return err
	}
	dirs, err := raidfile.ReadDirectoryContents(r.ds, dir, raidfile.DirsOnly)
	if err != nil {
		return err
	}
	for _, fn := range files {
		if err := f(joinName(dir, fn)); err != nil {
			return err
		}
	}
	for _, d := range dirs {
		if err := r.ForFiles(joinName(dir, d), f); err != nil {
			return err
		}
	}
	return nil
}

func (r *raid) Delete(name string) error {
	return raidfile.Delete(r.ds, name)
}

func (r *raid) UsageInBlocks(dir string) (int64, error) {
	return usage(r, dir)
}

// Fsck scrubs every file in the disc set, reporting files that are
// degraded, unreadable or have inconsistent parity.
func (r *raid) Fsck() int {
	problems := 0
	report := func(f string, args ...interface{}) {
		log.Error(f, args...)
		problems++
	}

	throttle := u.NewThrottle(r.scrubRate)
	defer throttle.Stop()

	var checked int
	var bytes int64
	err := r.ForFiles("", func(name string) error {
		res, err := raidfile.Check(r.ds, name, raidfile.CheckThrottle(throttle))
		if err != nil {
			report("%s: %s", name, err)
			return nil
		}
		switch {
		case res.State.WriteFile:
			log.Warning("%s: write file not yet transformed to raid storage", name)
		case res.State.Type == raidfile.DegradedRecoverable:
			report("%s: degraded; only %s present", name, components(res.State.Components))
		}
		checked++
		bytes += res.Size
		log.Debug("%s: %d bytes, digest %x", path.Base(name), res.Size, res.Digest[:8])
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		report("%s: %s", r.ds, err)
	}
	log.Verbose("%s: checked %d files, %s", r, checked, u.FmtBytes(bytes))
	return problems
}

func components(mask int) string {
	s := ""
	for c := raidfile.StripeA; c < raidfile.NumComponents; c++ {
		if mask&(1<<uint(c)) != 0 {
			s += fmt.Sprintf(" %s", c)
		}
	}
	if s == "" {
		return "none"
	}
	return s[1:]
}
