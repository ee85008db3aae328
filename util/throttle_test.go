// util/throttle_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package util

import (
	"bytes"
	"io"
	"io/ioutil"
	"testing"
	"time"
)

func TestThrottleUnlimited(t *testing.T) {
	th := NewThrottle(0)
	defer th.Stop()
	r := bytes.NewReader(make([]byte, 1<<20))
	if th.Reader(r) != io.Reader(r) {
		t.Errorf("unlimited throttle wrapped the reader")
	}

	var nilThrottle *Throttle
	if nilThrottle.Reader(r) != io.Reader(r) {
		t.Errorf("nil throttle wrapped the reader")
	}
}

func TestThrottleRate(t *testing.T) {
	const rate = 64 * 1024
	th := NewThrottle(rate)
	defer th.Stop()

	// Half a second's worth should take at least a few ticks to come
	// through, since none is available initially.
	data := make([]byte, rate/2)
	start := time.Now()
	b, err := ioutil.ReadAll(th.Reader(bytes.NewReader(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != len(data) {
		t.Errorf("read %d bytes, expected %d", len(b), len(data))
	}
	if elapsed := time.Since(start); elapsed < 375*time.Millisecond {
		t.Errorf("read %d bytes in %s with a limit of %d bytes/s", len(b), elapsed, rate)
	}
}

func TestThrottleStop(t *testing.T) {
	th := NewThrottle(1)
	r := th.Reader(bytes.NewReader(make([]byte, 4096)))
	th.Stop()
	th.Stop()

	b, err := ioutil.ReadAll(r)
	if err != nil || len(b) != 4096 {
		t.Errorf("read %d bytes after stop, %v", len(b), err)
	}
}
