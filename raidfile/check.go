// raidfile/check.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"io"

	u "github.com/mmp/bkraid/util"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// DigestSize is the number of bytes in the digests returned by Check.
const DigestSize = 64

// Digest is the SHAKE256 hash of a file's contents.
type Digest [DigestSize]byte

// CheckResult summarizes a scrub of one logical file.
type CheckResult struct {
	State  FileState
	Size   int64
	Digest Digest
	// ParityChecked is set if all three components were present and
	// every parity block was verified against the data.
	ParityChecked bool
}

// CheckOption customizes Check.
type CheckOption func(*checkOptions)

type checkOptions struct {
	throttle *u.Throttle
}

// CheckThrottle limits the rate at which Check reads file contents.
func CheckThrottle(t *u.Throttle) CheckOption {
	return func(o *checkOptions) { o.throttle = t }
}

// Check reads all of filename, verifying parity when all components are
// present. A readable file with inconsistent parity or component
// lengths gives an error wrapping ErrCorrupt; a degraded-recoverable
// file is checked as far as possible and reported through State.
func Check(ds *DiscSet, filename string, opts ...CheckOption) (CheckResult, error) {
	var o checkOptions
	for _, opt := range opts {
		opt(&o)
	}

	r, err := Open(ds, filename, VerifyParity())
	if err != nil {
		return CheckResult{}, err
	}
	defer r.Close()

	res := CheckResult{
		State:         r.State(),
		Size:          r.Size(),
		ParityChecked: r.State().Type == FullyRedundant,
	}

	h := sha3.NewShake256()
	rr := &u.ReportingReader{R: o.throttle.Reader(r), Msg: filename + ": checked", Log: log}
	n, err := io.Copy(h, rr)
	if err != nil {
		return res, err
	}
	if n != res.Size {
		return res, errors.Wrapf(ErrCorrupt, "set %d: %s: read %d bytes, expected %d",
			ds.Number(), filename, n, res.Size)
	}
	h.Read(res.Digest[:])
	return res, nil
}

// DigestBytes returns the digest of b, for comparison with
// CheckResult.Digest.
func DigestBytes(b []byte) Digest {
	var d Digest
	sha3.ShakeSum256(d[:], b)
	return d
}
