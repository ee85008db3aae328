// cmd/raidfile/fuse.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package main

// Read-only access to a disc set via FUSE.

import (
	"io"
	"io/ioutil"
	"os"
	"strings"
	"sync"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/mmp/bkraid/storage"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

func (c *command) mount(args []string) error {
	if err := needArgs("mount", args, 1); err != nil {
		return err
	}
	st, err := storage.NewRaid(c.ctl, c.set)
	if err != nil {
		return err
	}
	root, err := buildTree(st)
	if err != nil {
		return err
	}
	return mountFUSE(args[0], root)
}

// mountFUSE exports the given tree at dir and serves it until the
// filesystem is unmounted.
func mountFUSE(dir string, root *dirNode) error {
	conn, err := fuse.Mount(
		dir,
		fuse.FSName("raidfile"),
		fuse.Subtype("raidfile"),
		fuse.VolumeName(root.storage.String()),
		fuse.ReadOnly(),
	)
	if err != nil {
		return errors.Wrap(err, "mount")
	}
	defer conn.Close()

	if err := fs.Serve(conn, root); err != nil {
		return errors.Wrap(err, "serve")
	}

	<-conn.Ready
	return conn.MountError
}

// dirNode is a directory in the mounted tree. The tree is built once at
// mount time from the names of the stored files; file attributes and
// contents are fetched as needed.
type dirNode struct {
	name    string
	storage storage.FileStorage
	dirs    []*dirNode
	files   []*fileNode
}

type fileNode struct {
	name    string // full path in storage
	storage storage.FileStorage
}

func buildTree(st storage.FileStorage) (*dirNode, error) {
	root := &dirNode{storage: st}
	err := st.ForFiles("", func(name string) error {
		root.add(strings.Split(name, "/"), name)
		return nil
	})
	return root, err
}

func (d *dirNode) add(comps []string, name string) {
	if len(comps) == 1 {
		d.files = append(d.files, &fileNode{name: name, storage: d.storage})
		return
	}

	// If we already have a dirNode for the current path component,
	// proceed recursively with it.
	for _, e := range d.dirs {
		if e.name == comps[0] {
			e.add(comps[1:], name)
			return
		}
	}
	// Otherwise add the component and recurse.
	sub := &dirNode{name: comps[0], storage: d.storage}
	d.dirs = append(d.dirs, sub)
	sub.add(comps[1:], name)
}

// Root() should only be called with the root node passed to fs.Serve;
// since dirNode also implements the additional Node and Handle
// interfaces for a directory entry, we can just return it directly.
func (d *dirNode) Root() (fs.Node, error) {
	return d, nil
}

func (d *dirNode) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0500
	return nil
}

// Implements fuse.fs.NodeStringLookuper
func (d *dirNode) Lookup(ctx context.Context, name string) (fs.Node, error) {
	for _, e := range d.dirs {
		if e.name == name {
			return e, nil
		}
	}
	for _, f := range d.files {
		if f.base() == name {
			return f, nil
		}
	}
	return nil, fuse.ENOENT
}

// Implements fuse.fs.HandleReadDirAller
func (d *dirNode) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	var de []fuse.Dirent
	for _, e := range d.dirs {
		de = append(de, fuse.Dirent{Name: e.name, Type: fuse.DT_Dir})
	}
	for _, f := range d.files {
		de = append(de, fuse.Dirent{Name: f.base(), Type: fuse.DT_File})
	}
	return de, nil
}

///////////////////////////////////////////////////////////////////////////

func (f *fileNode) base() string {
	return f.name[strings.LastIndex(f.name, "/")+1:]
}

func (f *fileNode) Attr(ctx context.Context, a *fuse.Attr) error {
	fi, err := f.storage.Stat(f.name)
	if err != nil {
		log.Warning("%s: %s", f.name, err)
		return fuse.EIO
	}
	a.Mode = 0400
	a.Size = uint64(fi.Size)
	// Attr.Blocks is in 512 byte units.
	a.Blocks = (uint64(fi.Blocks)*uint64(f.storage.BlockSize()) + 511) / 512
	// Revisions are microseconds since the epoch plus the size.
	a.Mtime = time.Unix(0, (fi.Revision-fi.Size)*1000)
	return nil
}

// Implements fuse.fs.NodeOpener
func (f *fileNode) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	return &fileHandle{file: f}, nil
}

// fileHandle keeps the file open between reads, so that sequential reads
// don't start over from the beginning of the file each time.
type fileHandle struct {
	file *fileNode

	mu     sync.Mutex
	rc     io.ReadCloser
	offset int64 // of the next byte rc will return
}

// Implements fuse.fs.HandleReader
func (h *fileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.read(req.Offset, req.Size)
	if err != nil {
		log.Warning("%s: %s", h.file.name, err)
		h.close()
		return fuse.EIO
	}
	resp.Data = b
	return nil
}

func (h *fileHandle) read(offset int64, size int) ([]byte, error) {
	// Streams only go forward; reopen to go back.
	if h.rc == nil || offset < h.offset {
		h.close()
		rc, err := h.file.storage.Open(h.file.name)
		if err != nil {
			return nil, err
		}
		h.rc = rc
	}
	if offset > h.offset {
		n, err := io.CopyN(ioutil.Discard, h.rc, offset-h.offset)
		h.offset += n
		if err == io.EOF {
			return nil, nil
		} else if err != nil {
			return nil, err
		}
	}

	b := make([]byte, size)
	n, err := io.ReadFull(h.rc, b)
	h.offset += int64(n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return b[:n], err
}

func (h *fileHandle) close() {
	if h.rc != nil {
		h.rc.Close()
	}
	h.rc, h.offset = nil, 0
}

// Implements fuse.fs.HandleReleaser
func (h *fileHandle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.close()
	return nil
}
