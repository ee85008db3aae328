// raidfile/raidfile.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Package raidfile implements redundant file storage over ordinary
// directories. Each disc set is either a single directory, where files are
// stored as-is, or three directories, where each file is split into two
// data stripes plus a parity stripe so that it can be read even if any
// one of the three physical files is lost.
//
// Files are written to a single "write file", which is atomically renamed
// into place when committed; a separate transform step converts the write
// file into the three raid components. Readers always prefer the write
// file when it exists, so a half-transformed file is never visible.
//
// The package does no locking: callers must serialize access to any given
// filename themselves.
package raidfile

import (
	u "github.com/mmp/bkraid/util"
)

// Warnings go to stderr until SetLogger is called.
var log = u.NewLogger(false, false)

// SetLogger sets the logger used for warnings about degraded files and
// for verbose progress reports.
func SetLogger(l *u.Logger) {
	log = l
}
