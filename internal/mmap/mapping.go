package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned by reads on a closed Mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrRange is returned when an offset or length falls outside the file.
	ErrRange = errors.New("mmap: range out of bounds")
)

// Advice is a read pattern hint passed to the kernel.
type Advice int

const (
	// Normal leaves read-ahead at the kernel default.
	Normal Advice = iota
	// Sequential is used for whole-snapshot decoding.
	Sequential
	// Random is used for point reads into a snapshot.
	Random
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func() error
}

// Open maps path read-only. Empty files map to an empty Mapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return &Mapping{}, nil
	}
	if int64(int(fi.Size())) != fi.Size() {
		return nil, ErrRange
	}

	data, unmap, err := mapFile(f, int(fi.Size()))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Close unmaps the file. Slices returned earlier must not be used afterwards.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.unmap == nil {
		return nil
	}
	return m.unmap()
}

// Size is the mapped length in bytes.
func (m *Mapping) Size() int { return len(m.data) }

// Bytes returns the mapped file, or nil once closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Slice returns length bytes starting at off without copying.
func (m *Mapping) Slice(off, length int) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 || length < 0 || off+length > len(m.data) {
		return nil, ErrRange
	}
	return m.data[off : off+length], nil
}

// Advise passes a read pattern hint for the whole mapping.
func (m *Mapping) Advise(a Advice) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return advise(m.data, a)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrRange
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
