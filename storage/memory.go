// storage/memory.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package storage

import (
	"bytes"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type memFile struct {
	data     []byte
	revision int64
}

// DefaultMemoryBlockSize is the block size used by NewMemory when none is
// given.
const DefaultMemoryBlockSize = 4096

type memory struct {
	blockSize int

	mu    sync.Mutex
	files map[string]memFile
}

// Duplicate the provided byte slice.
func dupe(src []byte) []byte {
	d := make([]byte, len(src))
	copy(d, src)
	return d
}

// NewMemory returns a FileStorage that stores all files in RAM. It's
// really only useful for testing code built on top of FileStorage, where
// we may want to save the trouble of setting up disc sets. Usage is
// accounted as for a non-raid set with the given block size; a
// non-positive blockSize selects DefaultMemoryBlockSize.
func NewMemory(blockSize int) FileStorage {
	if blockSize <= 0 {
		log.Warning("memory: invalid block size %d; using %d", blockSize,
			DefaultMemoryBlockSize)
		blockSize = DefaultMemoryBlockSize
	}
	return &memory{blockSize: blockSize, files: make(map[string]memFile)}
}

func (m *memory) String() string {
	return "memory"
}

func (m *memory) LogStats() {
}

func (m *memory) BlockSize() int {
	return m.blockSize
}

type memWriter struct {
	m    *memory
	name string
	buf  *bytes.Buffer
}

func (w *memWriter) Write(b []byte) (int, error) {
	if w.buf == nil {
		return 0, errors.New("memory: write after commit or discard")
	}
	return w.buf.Write(b)
}

func (w *memWriter) Commit() error {
	if w.buf == nil {
		return errors.New("memory: commit after commit or discard")
	}
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	w.m.files[w.name] = memFile{data: w.buf.Bytes(),
		revision: time.Now().UnixNano()/1000 + int64(w.buf.Len())}
	w.buf = nil
	return nil
}

func (w *memWriter) Discard() error {
	w.buf = nil
	return nil
}

func (m *memory) CreateFile(name string) (FileWriter, error) {
	if ok, _ := m.Exists(name); ok {
		return nil, errors.Wrapf(ErrExists, "memory: %s", name)
	}
	return &memWriter{m: m, name: name, buf: &bytes.Buffer{}}, nil
}

func (m *memory) get(name string) (memFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[name]
	if !ok {
		return f, errors.Wrapf(ErrNotFound, "memory: %s", name)
	}
	return f, nil
}

func (m *memory) Open(name string) (io.ReadCloser, error) {
	f, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return ioutil.NopCloser(bytes.NewReader(f.data)), nil
}

func (m *memory) ReadFile(name string, offset, length int64) ([]byte, error) {
	f, err := m.get(name)
	if err != nil {
		return nil, err
	}
	b, err := readSegment(bytes.NewReader(f.data), offset, length)
	return dupe(b), err
}

func (m *memory) Exists(name string) (bool, error) {
	_, err := m.get(name)
	return err == nil, nil
}

func (m *memory) Stat(name string) (FileInfo, error) {
	f, err := m.get(name)
	if err != nil {
		return FileInfo{}, err
	}
	size := int64(len(f.data))
	bs := int64(m.blockSize)
	return FileInfo{Size: size, Blocks: (size + bs - 1) / bs, Revision: f.revision}, nil
}

func (m *memory) ForFiles(dir string, f func(name string) error) error {
	prefix := joinName(dir, "")
	m.mu.Lock()
	var names []string
	for n := range m.files {
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	m.mu.Unlock()

	sort.Strings(names)
	for _, n := range names {
		if err := f(n); err != nil {
			return err
		}
	}
	return nil
}

func (m *memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return errors.Wrapf(ErrNotFound, "memory: %s", name)
	}
	delete(m.files, name)
	return nil
}

func (m *memory) UsageInBlocks(dir string) (int64, error) {
	return usage(m, dir)
}

func (m *memory) Fsck() int {
	return 0
}
