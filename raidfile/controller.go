// raidfile/controller.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"
)

// Controller holds the table of configured disc sets. It's normally
// created once at startup and shared by everything that stores files;
// tests may create as many independent Controllers as they like.
//
// Controller methods may be called concurrently.
type Controller struct {
	mu   sync.RWMutex
	sets []*DiscSet

	coarseRevisions bool
}

// Option configures a Controller.
type Option func(*Controller)

// CoarseRevisions makes revision stamps ignore sub-second modification
// times, as on filesystems with 1 second timestamp resolution. This
// keeps tests that depend on revision changes honest on all platforms.
func CoarseRevisions(coarse bool) Option {
	return func(c *Controller) { c.coarseRevisions = coarse }
}

// NewController returns a Controller with no disc sets.
func NewController(opts ...Option) *Controller {
	c := &Controller{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load returns a Controller initialised from the configuration file at
// path.
func Load(path string, opts ...Option) (*Controller, error) {
	c := NewController(opts...)
	if err := c.Initialise(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Initialise (re)loads the disc set table from the configuration file at
// path, replacing any existing sets. If the file is invalid, the
// existing table is left as it was.
func (c *Controller) Initialise(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading raidfile configuration")
	}
	if err := c.Parse(data, FormatForPath(path)); err != nil {
		return errors.WithMessage(err, path)
	}
	log.Verbose("%s: %d disc sets configured", path, c.NumDiscSets())
	return nil
}

// Parse replaces the disc set table with the sets described by data.
func (c *Controller) Parse(data []byte, format Format) error {
	sets, err := parseDiscSets(data, format)
	if err != nil {
		return err
	}
	c.install(sets)
	return nil
}

// SetDiscSets replaces the disc set table with the given sets, which
// must be numbered densely from zero in order.
func (c *Controller) SetDiscSets(sets ...*DiscSet) error {
	for i, ds := range sets {
		if ds.Number() != i {
			return badConfig("set number %d out of sequence; expected %d",
				ds.Number(), i)
		}
	}
	c.install(sets)
	return nil
}

func (c *Controller) install(sets []*DiscSet) {
	installed := make([]*DiscSet, len(sets))
	for i, ds := range sets {
		cp := *ds
		cp.dirs = ds.Dirs()
		cp.coarseRevisions = c.coarseRevisions
		installed[i] = &cp
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = installed
}

// NumDiscSets returns the number of configured disc sets.
func (c *Controller) NumDiscSets() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets)
}

// GetDiscSet returns the numbered disc set, or a *NoSuchSetError.
func (c *Controller) GetDiscSet(n int) (*DiscSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n < 0 || n >= len(c.sets) {
		return nil, &NoSuchSetError{Requested: n, Configured: len(c.sets)}
	}
	return c.sets[n], nil
}

// DiscSetPathToFileSystemPath returns the path of filename on the
// directory offset places after the filename's rotation start in the
// given disc set.
func (c *Controller) DiscSetPathToFileSystemPath(n int, filename string, offset int) (string, error) {
	ds, err := c.GetDiscSet(n)
	if err != nil {
		return "", err
	}
	return ds.PhysicalPath(filename, offset), nil
}
