// raidfile/usage.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// UsageInBlocks returns the number of blocks a file of the given size
// occupies in ds once transformed, including parity and the size field.
// Quotas are enforced with this, so it must match what EncodeStripes
// writes exactly.
func UsageInBlocks(size int64, ds *DiscSet) int64 {
	B := int64(ds.BlockSize())
	blocks := (size + B - 1) / B
	if ds.IsNonRaid() {
		return blocks
	}

	parity := (size / B) / 2
	blocks += parity

	switch bytesOver := size - parity*2*B; {
	case bytesOver == 0:
		blocks++
	case bytesOver == SizeFieldWidth:
		blocks += 2
	case bytesOver < B:
		blocks++
	case bytesOver == B || bytesOver >= 2*B-SizeFieldWidth:
		blocks += 2
	default:
		blocks++
	}
	return blocks
}

// SizeStringToBlocks parses a quota-style size: "<n>B" is a number of
// blocks, "<n>M" and "<n>G" are MiB and GiB, and anything else is parsed
// as a human-readable byte count ("10 GB", "512KiB"). Byte counts are
// rounded down to whole blocks.
func SizeStringToBlocks(s string, blockSize int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("raidfile: empty size")
	}
	B := int64(blockSize)

	num, unit := s[:len(s)-1], s[len(s)-1]
	if n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64); err == nil && n >= 0 {
		switch unit {
		case 'B':
			return n, nil
		case 'M':
			return n * humanize.MiByte / B, nil
		case 'G':
			return n * humanize.GiByte / B, nil
		}
	}

	bytes, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "raidfile: %q", s)
	}
	return int64(bytes) / B, nil
}

// BlocksToString formats a number of blocks as a human-readable size.
func BlocksToString(blocks int64, blockSize int) string {
	return humanize.IBytes(uint64(blocks) * uint64(blockSize))
}
