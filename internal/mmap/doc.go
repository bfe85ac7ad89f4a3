// Package mmap maps snapshot files read-only into memory.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.Sequential)
//	catalog, _ := m.Slice(off, n)
//
// Unix platforms use mmap(2) and madvise(2). Windows uses
// CreateFileMapping/MapViewOfFile and ignores hints.
//
// A Mapping is safe for concurrent reads. Close is idempotent, but slices
// obtained from Bytes or Slice must not be used after it returns.
package mmap
