// cmd/raidfile/format.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package main

var formatText = `
This document describes the way that raidfile stores files in sufficient
detail that (if ever necessary) it's possible to recover them without the
raidfile source code.

# Disc sets

Files are stored in disc sets. A disc set is either a single directory or
three different directories, ideally on three different physical discs,
along with a block size that's used for space accounting and for striping.

# Non-raid sets

A file "name" in a single-directory set is stored as-is, in dir/name.

# Raid sets

In a three directory set, the "rotation start" for a file is the sum of the
byte values of its name, modulo 3. If a file is stored in dirs d[0], d[1]
and d[2], with rotation start s, then it's stored as:

	d[s]/name.rfa          stripe A
	d[(s+1)%3]/name.rfb    stripe B
	d[(s+2)%3]/name.rfp    parity

The file's contents are divided into blocks of the set's block size, B.
Blocks are assigned alternately to stripe A and stripe B, starting with
stripe A. Each pair of blocks contributes a block to the parity file that
is the bitwise XOR of the two. Thus, any one of the three files can be
recovered from the other two.

If the file's length isn't a multiple of 2B, the remaining r bytes are
split between a final block of stripe A (the first min(r, B) bytes) and
stripe B (the rest); the parity for them is computed as if both tails were
padded with zeros to the same length.

The file's length is stored as an 8-byte big-endian integer, as follows:

- If r is zero, it's appended to the parity file.
- If r is less than B and isn't 8, it's not stored; the final parity block
  is r bytes long (and is a copy of stripe A's final block).
- If r is 8 or B, the final parity block is computed over tails padded to B
  bytes and the length is appended after it.
- If r is greater than B and stripe B's final block plus 8 bytes is less
  than B, the length is stored in the last 8 bytes of stripe B's
  zero-padded final block when the parity is computed, but it isn't
  written to stripe B.
- Otherwise, the final parity block is computed over tails padded to B
  bytes and the length is appended after it.

Given a parity file of length L, the length is appended if L mod B is 8,
embedded if L mod B is zero, and not stored otherwise. When it's not
stored, the file's length is the sum of the lengths of the two stripes, or
2L - (L mod B) if stripe B is missing.

# Write files

While a file is being written, it's stored under a hidden temporary name
in d[s]. When complete, it's renamed to d[s]/name.rfw; at this point it's
a plain copy of the file's contents and takes precedence over any stripe
or parity files that may be present. Converting a write file to raid
storage writes the three components under temporary names, renames them
into place, and then removes the write file.
`
