// raidfile/read.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"io"
	"os"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// ReadOption configures Open.
type ReadOption func(*Reader)

// VerifyParity makes reads of fully redundant files check every parity
// block against the data, returning ErrCorrupt on a mismatch.
func VerifyParity() ReadOption {
	return func(r *Reader) { r.verify = true }
}

// Reader returns the content of a logical file, reconstructing it on the
// fly if one of its raid components is missing.
type Reader struct {
	ds       *DiscSet
	filename string
	state    FileState
	size     int64
	verify   bool

	// Set if the file is a single physical file.
	plain *os.File

	// Raid components, indexed by Component; nil if missing.
	comps   [NumComponents]*os.File
	missing Component // NumComponents if none missing
	lay     layout
	enc     reedsolomon.Encoder
	pair    int64 // next block pair to decode
	shards  [][]byte
	bufs    [NumComponents][]byte
	out     []byte
	pending []byte
	eof     bool
}

// Open opens filename in ds for reading. It fails with ErrNotFound if
// the file doesn't exist and with an *UnrecoverableError if too many of
// its components are missing.
func Open(ds *DiscSet, filename string, opts ...ReadOption) (*Reader, error) {
	st, err := Exists(ds, filename)
	if err != nil {
		return nil, err
	}
	r := &Reader{ds: ds, filename: filename, state: st, missing: NumComponents}
	for _, o := range opts {
		o(r)
	}

	switch st.Type {
	case Absent:
		return nil, errors.Wrapf(ErrNotFound, "set %d: %s", ds.Number(), filename)
	case DegradedUnrecoverable:
		return nil, &UnrecoverableError{Set: ds.Number(), Filename: filename,
			Present: st.Components}
	case NonRedundant:
		var path string
		if st.WriteFile {
			path, _ = WriteFilePath(ds, filename)
		} else {
			path = ComponentPath(ds, filename, StripeA)
		}
		if err := r.openPlain(path); err != nil {
			return nil, err
		}
		return r, nil
	}

	if err := r.openComponents(); err != nil {
		r.Close()
		return nil, err
	}
	if r.missing != NumComponents {
		log.Warning("%s: set %d: %s missing; reconstructing from the other two components",
			filename, ds.Number(), r.missing)
	}
	return r, nil
}

func (r *Reader) openPlain(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "raidfile: open")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrap(err, "raidfile: stat")
	}
	r.plain = f
	r.size = fi.Size()
	return nil
}

func (r *Reader) openComponents() error {
	var lengths [NumComponents]int64
	for c := StripeA; c < NumComponents; c++ {
		if r.state.Components&(1<<uint(c)) == 0 {
			r.missing = c
			continue
		}
		f, err := os.Open(ComponentPath(r.ds, r.filename, c))
		if os.IsNotExist(err) {
			// Removed since the probe.
			if r.missing != NumComponents {
				return &UnrecoverableError{Set: r.ds.Number(), Filename: r.filename,
					Present: r.state.Components &^ (1 << uint(c))}
			}
			r.missing = c
			continue
		} else if err != nil {
			return errors.Wrap(err, "raidfile: open")
		}
		r.comps[c] = f
		fi, err := f.Stat()
		if err != nil {
			return errors.Wrap(err, "raidfile: stat")
		}
		lengths[c] = fi.Size()
	}

	size, err := r.recoverSize(lengths)
	if err != nil {
		return err
	}
	r.size = size
	r.lay = layoutFor(size, r.ds.BlockSize())
	for c := StripeA; c < NumComponents; c++ {
		if r.comps[c] != nil && lengths[c] != r.lay.componentLength(c) {
			return r.corrupt("%s is %d bytes; expected %d for a %d byte file",
				c, lengths[c], r.lay.componentLength(c), size)
		}
	}
	if r.verify && r.missing == NumComponents && r.lay.placement == sizeAppended {
		recorded, err := r.readParitySize(lengths[Parity])
		if err != nil {
			return err
		}
		if recorded != size {
			return r.corrupt("recorded size %d doesn't match stripe size %d", recorded, size)
		}
	}

	if r.enc, err = newStripeCoder(); err != nil {
		return err
	}
	B := r.ds.BlockSize()
	for c := range r.bufs {
		r.bufs[c] = make([]byte, B)
	}
	r.shards = make([][]byte, NumComponents)
	r.out = make([]byte, 0, 2*B)
	return nil
}

// recoverSize determines the file's length from the lengths of the
// components that are present and, when necessary, the size field.
func (r *Reader) recoverSize(lengths [NumComponents]int64) (int64, error) {
	B := int64(r.ds.BlockSize())

	switch r.missing {
	case NumComponents, Parity:
		return lengths[StripeA] + lengths[StripeB], nil
	}

	L := lengths[Parity]
	m := L % B
	if m == SizeFieldWidth {
		return r.readParitySize(L)
	}

	if r.missing == StripeA {
		// Without an appended size field, stripe A is the same length as
		// the parity.
		return L + lengths[StripeB], nil
	}

	// Stripe B is missing.
	if m != 0 {
		// The parity tail is a copy of stripe A's short tail.
		if lengths[StripeA] != L {
			return 0, r.corrupt("stripe-A is %d bytes but parity is %d", lengths[StripeA], L)
		}
		return 2*L - m, nil
	}

	// The size is embedded in stripe B's last block; rebuild it.
	if L < B || lengths[StripeA] != L {
		return 0, r.corrupt("stripe-A is %d bytes but parity is %d", lengths[StripeA], L)
	}
	shardA, shardP := make([]byte, B), make([]byte, B)
	if err := readAt(r.comps[StripeA], shardA, L-B); err != nil {
		return 0, err
	}
	if err := readAt(r.comps[Parity], shardP, L-B); err != nil {
		return 0, err
	}
	enc, err := newStripeCoder()
	if err != nil {
		return 0, err
	}
	shards := [][]byte{shardA, nil, shardP}
	if err := enc.ReconstructData(shards); err != nil {
		return 0, errors.Wrap(err, "raidfile: reconstruct")
	}
	return getSize(shards[StripeB][B-SizeFieldWidth:]), nil
}

func (r *Reader) readParitySize(parityLen int64) (int64, error) {
	if parityLen < SizeFieldWidth {
		return 0, r.corrupt("parity too short for size field")
	}
	var b [SizeFieldWidth]byte
	if err := readAt(r.comps[Parity], b[:], parityLen-SizeFieldWidth); err != nil {
		return 0, err
	}
	size := getSize(b[:])
	if size < 0 {
		return 0, r.corrupt("invalid recorded size %d", size)
	}
	return size, nil
}

func readAt(f *os.File, b []byte, off int64) error {
	_, err := f.ReadAt(b, off)
	return errors.Wrap(err, "raidfile: read")
}

func (r *Reader) corrupt(f string, args ...interface{}) error {
	return errors.Wrapf(ErrCorrupt, "set %d: %s: "+f,
		append([]interface{}{r.ds.Number(), r.filename}, args...)...)
}

// Size returns the length of the logical file in bytes.
func (r *Reader) Size() int64 { return r.size }

// State returns the result of the probe done when the file was opened.
func (r *Reader) State() FileState { return r.state }

// DiscUsageInBlocks returns the number of blocks the file uses on disc.
func (r *Reader) DiscUsageInBlocks() int64 {
	return UsageInBlocks(r.size, r.ds)
}

func (r *Reader) Read(b []byte) (int, error) {
	if r.plain != nil {
		return r.plain.Read(b)
	}
	for len(r.pending) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.decodeNext(); err != nil {
			return 0, err
		}
	}
	n := copy(b, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// decodeNext decodes the next block pair (or the tail) into r.pending.
func (r *Reader) decodeNext() error {
	l := r.lay
	B := int(l.blockSize)
	r.out = r.out[:0]

	if r.pair < l.pairs {
		if err := r.decodeShards(B, B, B, B); err != nil {
			return err
		}
		r.out = append(r.out, r.shards[StripeA]...)
		r.out = append(r.out, r.shards[StripeB]...)
		r.pair++
	} else {
		r.eof = true
		ts := l.tailShardSize()
		if ts == 0 {
			return nil
		}
		parityLen := ts
		if r.comps[Parity] == nil {
			parityLen = 0
		}
		if err := r.decodeShards(ts, l.tailLenA(), l.tailLenB(), parityLen); err != nil {
			return err
		}
		r.out = append(r.out, r.shards[StripeA][:l.tailLenA()]...)
		r.out = append(r.out, r.shards[StripeB][:l.tailLenB()]...)
	}
	r.pending = r.out
	return nil
}

// decodeShards reads the next n bytes of each present component into
// zero-padded shards of size ts and rebuilds the missing data shard, if
// any.
func (r *Reader) decodeShards(ts int, nA, nB, nP int) error {
	want := [NumComponents]int{nA, nB, nP}
	for c := StripeA; c < NumComponents; c++ {
		if r.comps[c] == nil {
			r.shards[c] = r.bufs[c][:0]
			continue
		}
		s := r.bufs[c][:ts]
		if _, err := io.ReadFull(r.comps[c], s[:want[c]]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return r.corrupt("%s truncated", c)
			}
			return errors.Wrap(err, "raidfile: read")
		}
		for i := want[c]; i < ts; i++ {
			s[i] = 0
		}
		r.shards[c] = s
	}
	if r.eof && r.lay.placement == sizeEmbedded && r.comps[StripeB] != nil {
		putSize(r.shards[StripeB][ts-SizeFieldWidth:], r.size)
	}

	switch r.missing {
	case StripeA, StripeB:
		if err := r.enc.ReconstructData(r.shards); err != nil {
			return errors.Wrap(err, "raidfile: reconstruct")
		}
	case NumComponents:
		if r.verify {
			ok, err := r.enc.Verify(r.shards)
			if err != nil {
				return errors.Wrap(err, "raidfile: verify")
			}
			if !ok {
				return r.corrupt("parity mismatch in block pair %d", r.pair)
			}
		}
	}
	return nil
}

// Close closes the underlying files.
func (r *Reader) Close() error {
	var err error
	if r.plain != nil {
		err = r.plain.Close()
	}
	for c, f := range r.comps {
		if f != nil {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
			r.comps[c] = nil
		}
	}
	return errors.Wrap(err, "raidfile: close")
}
