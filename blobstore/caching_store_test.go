package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBlob struct {
	mu        sync.Mutex
	data      []byte
	reads     int
	readBytes int
}

func (m *countingBlob) Close() error { return nil }
func (m *countingBlob) Size() int64  { return int64(len(m.data)) }
func (m *countingBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	m.readBytes += n
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
func (m *countingBlob) ReadRange(_ context.Context, off, n int64) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data[off : off+n])), nil
}

type countingStore struct {
	*MemoryStore
	blobs map[string]*countingBlob
}

func (m *countingStore) Open(_ context.Context, name string) (Blob, error) {
	if b, ok := m.blobs[name]; ok {
		return b, nil
	}
	return nil, ErrNotFound
}

func newCachingFixture(t *testing.T, data []byte) (*CachingStore, *countingBlob, *LRUBlockCache) {
	t.Helper()
	inner := &countingStore{
		MemoryStore: NewMemoryStore(),
		blobs:       map[string]*countingBlob{"snap": {data: data}},
	}
	c, err := NewLRUBlockCache(64)
	require.NoError(t, err)
	return NewCachingStore(inner, c, 256), inner.blobs["snap"], c
}

func TestCachingStore_ReadAt(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	store, inner, _ := newCachingFixture(t, data)
	ctx := context.Background()

	blob, err := store.Open(ctx, "snap")
	require.NoError(t, err)

	buf := make([]byte, 100)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[:100], buf)
	assert.Equal(t, 1, inner.reads)
	assert.Equal(t, 256, inner.readBytes)

	// Cached.
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reads)

	// Spans block 0 (cached) and block 1.
	n, err = blob.ReadAt(ctx, buf, 200)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[200:300], buf)
	assert.Equal(t, 2, inner.reads)
	assert.Equal(t, 512, inner.readBytes)

	// Blocks 2 and 3 are fetched with a single backend read.
	big := make([]byte, 512)
	n, err = blob.ReadAt(ctx, big, 512)
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.Equal(t, data[512:], big)
	assert.Equal(t, 3, inner.reads)
}

func TestCachingStore_ShortTail(t *testing.T) {
	store, _, _ := newCachingFixture(t, []byte("hello"))
	ctx := context.Background()

	blob, err := store.Open(ctx, "snap")
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 0)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf[:n]))

	_, err = blob.ReadAt(ctx, buf, 5)
	assert.ErrorIs(t, err, io.EOF)

	r, err := blob.ReadRange(ctx, 1, 3)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "ell", string(got))
}

func TestCachingStore_PutInvalidates(t *testing.T) {
	store, _, c := newCachingFixture(t, make([]byte, 600))
	ctx := context.Background()

	blob, err := store.Open(ctx, "snap")
	require.NoError(t, err)
	_, err = blob.ReadAt(ctx, make([]byte, 600), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	require.NoError(t, store.Put(ctx, "snap", []byte("new")))
	assert.Equal(t, 0, c.Len())
}
