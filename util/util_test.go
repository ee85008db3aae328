// util/util_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package util

import (
	"bytes"
	"errors"
	"io/ioutil"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, false, false)
	l.Debug("debug %d", 1)
	l.Verbose("verbose %d", 2)
	if buf.Len() != 0 {
		t.Errorf("disabled levels wrote %q", buf.String())
	}

	l.Warning("warning %d", 3)
	l.Error("error %d", 4)
	l.Error("error %d", 5)
	if l.NWarnings != 1 || l.NErrors != 2 {
		t.Errorf("%d warnings, %d errors", l.NWarnings, l.NErrors)
	}
	out := buf.String()
	if !strings.Contains(out, "util/util_test.go:") || !strings.Contains(out, "error 5\n") {
		t.Errorf("unexpected log output %q", out)
	}

	buf.Reset()
	l = NewLoggerTo(&buf, true, true)
	l.Debug("debug")
	l.Verbose("verbose")
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("unexpected log output %q", buf.String())
	}
}

func TestLoggerCheckError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, false, false)
	status := -1
	l.exit = func(s int) { status = s }

	l.CheckError(nil)
	if status != -1 || l.NErrors != 0 {
		t.Errorf("CheckError(nil) exited")
	}
	l.CheckError(errors.New("disc on fire"), "%s: failed", "set 0")
	if status != 1 || l.NErrors != 1 {
		t.Errorf("status %d, %d errors", status, l.NErrors)
	}
	if !strings.Contains(buf.String(), "set 0: failed") {
		t.Errorf("unexpected log output %q", buf.String())
	}
}

func TestReportingReader(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, true, false)
	rr := &ReportingReader{R: bytes.NewReader(make([]byte, 10000)), Msg: "read", Log: l, Every: 1000}
	b, err := ioutil.ReadAll(rr)
	if err != nil || len(b) != 10000 {
		t.Fatalf("read %d bytes, %v", len(b), err)
	}
	if rr.BytesRead() != 10000 {
		t.Errorf("BytesRead %d", rr.BytesRead())
	}
	rr.Close()
	if !strings.Contains(buf.String(), "Finished. read") {
		t.Errorf("no final report in %q", buf.String())
	}
}

func TestCountingWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := &CountingWriter{W: &buf}
	cw.Write([]byte("hello"))
	cw.Write([]byte(", world"))
	if cw.Count != 12 || buf.String() != "hello, world" {
		t.Errorf("count %d, wrote %q", cw.Count, buf.String())
	}
}

func TestFmtBytes(t *testing.T) {
	for _, tc := range []struct {
		n   int64
		exp string
	}{
		{0, "0 B"},
		{1024, "1024 B"},
		{1536, "1.50 kiB"},
		{3 * 1024 * 1024 * 1024, "3.00 GiB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.00 TiB"},
	} {
		if s := FmtBytes(tc.n); s != tc.exp {
			t.Errorf("FmtBytes(%d) = %q, expected %q", tc.n, s, tc.exp)
		}
	}
}
