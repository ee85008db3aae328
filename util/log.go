// util/log.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package util

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
)

// Logger provides leveled logging for the raidfile packages and tools.
// Debug and verbose output may be suppressed independently; warnings and
// errors are always written and counted so that tools can report a
// non-zero exit status after, e.g., a scrub that found problems.
//
// A nil *Logger is valid and writes everything to stderr.
type Logger struct {
	NErrors   int
	NWarnings int
	mu        sync.Mutex
	debug     io.Writer
	verbose   io.Writer
	warning   io.Writer
	err       io.Writer
	exit      func(int)
}

func NewLogger(verbose, debug bool) *Logger {
	return NewLoggerTo(os.Stderr, verbose, debug)
}

// NewLoggerTo returns a Logger that sends all enabled levels to w.
func NewLoggerTo(w io.Writer, verbose, debug bool) *Logger {
	l := &Logger{warning: w, err: w, exit: os.Exit}
	if verbose {
		l.verbose = w
	}
	if debug {
		l.debug = w
	}
	return l
}

func (l *Logger) Print(f string, args ...interface{}) {
	fmt.Printf("%s", format(2, f, args...))
}

func (l *Logger) Debug(f string, args ...interface{}) {
	if l == nil {
		fmt.Fprint(os.Stderr, format(2, f, args...))
		return
	}
	l.emit(3, l.debug, nil, f, args...)
}

func (l *Logger) Verbose(f string, args ...interface{}) {
	if l == nil {
		fmt.Fprint(os.Stderr, format(2, f, args...))
		return
	}
	l.emit(3, l.verbose, nil, f, args...)
}

func (l *Logger) Warning(f string, args ...interface{}) {
	if l == nil {
		fmt.Fprint(os.Stderr, format(2, f, args...))
		return
	}
	l.emit(3, l.warning, &l.NWarnings, f, args...)
}

func (l *Logger) Error(f string, args ...interface{}) {
	if l == nil {
		fmt.Fprint(os.Stderr, format(2, f, args...))
		return
	}
	l.emit(3, l.err, &l.NErrors, f, args...)
}

// Fatal logs the message as an error and terminates the program.
func (l *Logger) Fatal(f string, args ...interface{}) {
	if l == nil {
		fmt.Fprint(os.Stderr, format(2, f, args...))
		os.Exit(1)
	}
	l.emit(3, l.err, &l.NErrors, f, args...)
	l.exit(1)
}

// CheckError reports a fatal error if err is non-nil. An optional
// printf-style message may be given to print instead of the error.
func (l *Logger) CheckError(err error, msg ...interface{}) {
	if err == nil {
		return
	}
	f, args := "Error: %+v", []interface{}{err}
	if len(msg) > 0 {
		f, args = msg[0].(string), msg[1:]
	}
	if l == nil {
		fmt.Fprint(os.Stderr, format(2, f, args...))
		os.Exit(1)
	}
	l.emit(3, l.err, &l.NErrors, f, args...)
	l.exit(1)
}

// emit writes the formatted message to w (if non-nil), bumping the
// given counter under the lock. depth is passed through to format.
func (l *Logger) emit(depth int, w io.Writer, counter *int, f string, args ...interface{}) {
	if w == nil && counter == nil {
		return
	}
	s := format(depth, f, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if counter != nil {
		*counter++
	}
	if w != nil {
		fmt.Fprint(w, s)
	}
}

// format prefixes the message with the file and line of the caller depth
// frames up the stack.
func format(depth int, f string, args ...interface{}) string {
	_, fn, line, ok := runtime.Caller(depth)
	if !ok {
		fn, line = "???", 0
	}
	// Last two components of the path
	fnline := path.Base(path.Dir(fn)) + "/" + path.Base(fn) + fmt.Sprintf(":%d", line)
	s := fmt.Sprintf("%-25s: ", fnline)
	s += fmt.Sprintf(f, args...)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}
