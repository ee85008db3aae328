// raidfile/codec.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// SizeFieldWidth is the number of bytes used to record a file's length
// in its parity stripe.
const SizeFieldWidth = 8

/*
Stripe layout. A file of N bytes in a set with block size B is split into
blocks of B bytes that alternate between stripe A and stripe B; each pair
of blocks contributes one parity block, A^B. With P = N/(2B) full pairs
and r = N - 2PB bytes left over:

  stripe A: PB + min(r, B) bytes
  stripe B: PB + max(0, r-B) bytes

The tail is encoded as one more parity block over the zero-padded tail
shards. Stripe lengths alone don't determine N (stripe B's tail may be
missing), so N is also recorded in SizeFieldWidth bytes, big-endian, in
the cheapest place that leaves the parity length unambiguous:

  r == 0:                 appended to the parity
  0 < r < B, r != W:      not stored; the parity tail is r bytes
  r == W:                 parity tail padded to B, N appended
  r == B:                 parity tail of B bytes, N appended
  B < r, (r-B)+W < B:     stored in the last W bytes of stripe B's
                          zero-padded tail block before computing parity,
                          so the parity is exactly (P+1)B bytes
  otherwise:              parity tail of B bytes, N appended

(W = SizeFieldWidth.) The parity length mod B is then W when N is
appended, 0 when it's embedded, and something else when it's not stored.
The total number of blocks used by the three stripes is exactly
UsageInBlocks(N).
*/

type sizePlacement int

const (
	sizeNotStored sizePlacement = iota
	sizeAppended
	sizeEmbedded
)

type layout struct {
	size      int64
	blockSize int64
	pairs     int64 // full block pairs
	rem       int64 // bytes after the full pairs

	lenA, lenB, lenParity int64
	placement             sizePlacement
}

func layoutFor(size int64, blockSize int) layout {
	B := int64(blockSize)
	l := layout{size: size, blockSize: B}
	l.pairs = size / (2 * B)
	l.rem = size - 2*B*l.pairs
	full := l.pairs * B

	l.lenA = full + min64(l.rem, B)
	l.lenB = full + max64(0, l.rem-B)

	switch r := l.rem; {
	case r == 0:
		l.lenParity, l.placement = full+SizeFieldWidth, sizeAppended
	case r < B && r != SizeFieldWidth:
		l.lenParity, l.placement = full+r, sizeNotStored
	case r > B && (r-B)+SizeFieldWidth < B:
		l.lenParity, l.placement = full+B, sizeEmbedded
	default:
		l.lenParity, l.placement = full+B+SizeFieldWidth, sizeAppended
	}
	return l
}

// tailShardSize returns the length of the shards used to compute the
// tail's parity block, or zero if there's no tail.
func (l layout) tailShardSize() int {
	switch {
	case l.rem == 0:
		return 0
	case l.placement == sizeNotStored:
		return int(l.rem)
	default:
		return int(l.blockSize)
	}
}

func (l layout) tailLenA() int { return int(min64(l.rem, l.blockSize)) }
func (l layout) tailLenB() int { return int(max64(0, l.rem-l.blockSize)) }

// componentLength returns the expected length of the given component.
func (l layout) componentLength(c Component) int64 {
	return [...]int64{l.lenA, l.lenB, l.lenParity}[c]
}

// usageInBlocks returns the number of blocks the three stripes occupy.
func (l layout) usageInBlocks() int64 {
	var n int64
	for c := StripeA; c < NumComponents; c++ {
		n += (l.componentLength(c) + l.blockSize - 1) / l.blockSize
	}
	return n
}

func newStripeCoder() (reedsolomon.Encoder, error) {
	// Two data shards and one parity shard, with parity A^B.
	enc, err := reedsolomon.New(2, 1, reedsolomon.WithFastOneParityMatrix(),
		reedsolomon.WithMaxGoroutines(1))
	return enc, errors.Wrap(err, "raidfile: reedsolomon")
}

func putSize(b []byte, size int64) {
	binary.BigEndian.PutUint64(b, uint64(size))
}

func getSize(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// EncodeStripes reads r to EOF, writing stripe A, stripe B and the
// parity stripe to a, b and p. It returns the number of bytes read.
// blockSize must be larger than SizeFieldWidth. Memory use is a few
// blocks, regardless of the length of r.
func EncodeStripes(r io.Reader, blockSize int, a, b, p io.Writer) (int64, error) {
	if blockSize <= SizeFieldWidth {
		return 0, errors.Errorf("raidfile: block size %d too small for striping", blockSize)
	}
	enc, err := newStripeCoder()
	if err != nil {
		return 0, err
	}

	B := blockSize
	buf := make([]byte, 2*B)
	parity := make([]byte, B)
	var total int64

	for {
		n, err := io.ReadFull(r, buf)
		total += int64(n)
		if err == nil {
			shards := [][]byte{buf[:B], buf[B:], parity}
			if err := enc.Encode(shards); err != nil {
				return total, errors.Wrap(err, "raidfile: encode")
			}
			if err := writeAll([]io.Writer{a, b, p}, shards); err != nil {
				return total, err
			}
			continue
		}
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			return total, errors.Wrap(err, "raidfile: reading input")
		}
		return total, encodeTail(enc, buf[:n], layoutFor(total, B), a, b, p)
	}
}

// encodeTail writes the final partial block pair, if any, along with
// the stream length.
func encodeTail(enc reedsolomon.Encoder, tail []byte, l layout, a, b, p io.Writer) error {
	var sizeField [SizeFieldWidth]byte
	putSize(sizeField[:], l.size)

	if ts := l.tailShardSize(); ts > 0 {
		B := int(l.blockSize)
		shardA := make([]byte, ts)
		shardB := make([]byte, ts)
		parity := make([]byte, ts)
		copy(shardA, tail[:l.tailLenA()])
		copy(shardB, tail[l.tailLenA():])
		if l.placement == sizeEmbedded {
			copy(shardB[B-SizeFieldWidth:], sizeField[:])
		}

		if err := enc.Encode([][]byte{shardA, shardB, parity}); err != nil {
			return errors.Wrap(err, "raidfile: encode")
		}
		if err := writeAll([]io.Writer{a, b, p},
			[][]byte{shardA[:l.tailLenA()], shardB[:l.tailLenB()], parity}); err != nil {
			return err
		}
	}

	if l.placement == sizeAppended {
		if _, err := p.Write(sizeField[:]); err != nil {
			return errors.Wrap(err, "raidfile: writing parity")
		}
	}
	return nil
}

func writeAll(w []io.Writer, b [][]byte) error {
	for i := range w {
		if len(b[i]) == 0 {
			continue
		}
		if _, err := w[i].Write(b[i]); err != nil {
			return errors.Wrapf(err, "raidfile: writing %s", Component(i))
		}
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
