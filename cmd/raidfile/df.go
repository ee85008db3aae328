// cmd/raidfile/df.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type dirSpace struct {
	total, free uint64
}

func statDir(dir string) (dirSpace, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return dirSpace{}, errors.Wrap(err, dir)
	}
	bs := uint64(st.Bsize)
	return dirSpace{total: uint64(st.Blocks) * bs, free: uint64(st.Bavail) * bs}, nil
}

// df reports free space for each directory of every disc set. A raid
// set can hold no more than three times its smallest directory's free
// space, less a third for parity.
func (c *command) df() error {
	for n := 0; n < c.ctl.NumDiscSets(); n++ {
		ds, err := c.ctl.GetDiscSet(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s\n", ds)

		var minFree uint64
		for i, dir := range ds.Dirs() {
			sp, err := statDir(dir)
			if err != nil {
				log.Warning("%s", err)
				continue
			}
			if i == 0 || sp.free < minFree {
				minFree = sp.free
			}
			fmt.Fprintf(c.stdout, "  %-40s %10s free of %10s\n", dir,
				humanize.IBytes(sp.free), humanize.IBytes(sp.total))
		}

		avail := minFree
		if !ds.IsNonRaid() {
			avail = 2 * minFree
		}
		blocks := int64(avail / uint64(ds.BlockSize()))
		fmt.Fprintf(c.stdout, "  available for files: %s (%d blocks)\n",
			humanize.IBytes(avail), blocks)
	}
	return nil
}
