// util/throttle.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package util

import (
	"io"
	"sync"
	"time"
)

///////////////////////////////////////////////////////////////////////////
// Bandwidth-limiting io.Reader

// Throttle limits the aggregate rate at which data can be read through
// the readers it returns. Scrubbing a large disc set otherwise saturates
// the discs.
type Throttle struct {
	perSecond int

	mu        sync.Mutex
	cond      *sync.Cond
	available int
	stopped   bool

	ticker *time.Ticker
	done   chan struct{}
}

// NewThrottle returns a Throttle allowing bytesPerSecond through. A
// bytesPerSecond of zero or less gives an unlimited Throttle. Stop must
// be called when it's no longer needed.
func NewThrottle(bytesPerSecond int) *Throttle {
	t := &Throttle{perSecond: bytesPerSecond}
	t.cond = sync.NewCond(&t.mu)
	if bytesPerSecond <= 0 {
		return t
	}

	// Release 1/8th of the per-second limit every 8th of a second.
	t.ticker = time.NewTicker(125 * time.Millisecond)
	t.done = make(chan struct{})
	go func() {
		for {
			select {
			case <-t.done:
				return
			case <-t.ticker.C:
			}

			t.mu.Lock()
			t.available += (t.perSecond + 7) / 8
			// Never queue up more than one second's worth.
			if t.available > t.perSecond {
				t.available = t.perSecond
			}
			t.cond.Broadcast()
			t.mu.Unlock()
		}
	}()
	return t
}

// Stop releases the Throttle's resources; any blocked reads proceed
// without limit.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.done)
	}
	t.cond.Broadcast()
}

// Reader returns an io.Reader that reads from r subject to the
// Throttle's limit.
func (t *Throttle) Reader(r io.Reader) io.Reader {
	if t == nil || t.perSecond <= 0 {
		return r
	}
	return &throttledReader{r: r, t: t}
}

// take blocks until some bandwidth is available and claims up to n bytes
// of it.
func (t *Throttle) take(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.available <= 0 && !t.stopped {
		t.cond.Wait()
	}
	if t.stopped {
		return n
	}
	if n > t.available {
		n = t.available
	}
	t.available -= n
	return n
}

// giveBack returns unused bandwidth claimed by take.
func (t *Throttle) giveBack(n int) {
	t.mu.Lock()
	if !t.stopped {
		t.available += n
	}
	t.mu.Unlock()
}

type throttledReader struct {
	r io.Reader
	t *Throttle
}

func (tr *throttledReader) Read(dst []byte) (int, error) {
	if len(dst) == 0 {
		return tr.r.Read(dst)
	}
	n := tr.t.take(len(dst))
	read, err := tr.r.Read(dst[:n])
	if read < n {
		tr.t.giveBack(n - read)
	}
	return read, err
}
