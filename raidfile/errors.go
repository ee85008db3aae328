// raidfile/errors.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBadConfig is returned (wrapped with details) for any malformed
	// disc set configuration. No partial registry is ever installed.
	ErrBadConfig = errors.New("bad raidfile configuration")

	ErrNoSuchDiscSet = errors.New("no such disc set")
	ErrUnrecoverable = errors.New("raid file is not recoverable")
	ErrCorrupt       = errors.New("raid file is corrupt")
	ErrNotFound      = errors.New("raid file does not exist")
	ErrAlreadyExists = errors.New("raid file already exists")
)

// NoSuchSetError is returned by Controller.GetDiscSet for set numbers
// outside the configured range.
type NoSuchSetError struct {
	Requested  int
	Configured int
}

func (e *NoSuchSetError) Error() string {
	return fmt.Sprintf("disc set %d (%d disc sets configured): %s",
		e.Requested, e.Configured, ErrNoSuchDiscSet)
}

func (e *NoSuchSetError) Unwrap() error { return ErrNoSuchDiscSet }

// UnrecoverableError reports which components of a redundant file were
// found when too few were present to rebuild it.
type UnrecoverableError struct {
	Set      int
	Filename string
	// Present is a bitmask of the logical components that exist.
	Present int
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("set %d: %s: components present [%s]: %s", e.Set,
		e.Filename, componentList(e.Present), ErrUnrecoverable)
}

func (e *UnrecoverableError) Unwrap() error { return ErrUnrecoverable }

func componentList(mask int) string {
	s := ""
	for c := Component(0); c < NumComponents; c++ {
		if mask&(1<<uint(c)) == 0 {
			continue
		}
		if s != "" {
			s += " "
		}
		s += c.String()
	}
	return s
}

func badConfig(f string, args ...interface{}) error {
	return errors.Wrapf(ErrBadConfig, f, args...)
}
