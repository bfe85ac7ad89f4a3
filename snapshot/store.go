package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/docstore/blobstore"
	"github.com/hupe1980/docstore/resource"
)

const (
	// CurrentName is the pointer blob naming the latest snapshot.
	CurrentName = "CURRENT"
	// Prefix is the directory snapshots are written to.
	Prefix = "snapshots/"
	suffix = ".dss"
)

// ErrNoSnapshot is returned by Latest when nothing was checkpointed yet.
var ErrNoSnapshot = errors.New("snapshot: none")

// ErrSnapshotExists is returned by Save when a conditional store already
// holds a snapshot under the same sequence number.
var ErrSnapshotExists = errors.New("snapshot: already exists")

// Name returns the blob name of the snapshot taken at seq.
func Name(seq uint64) string {
	return fmt.Sprintf("%s%020d%s", Prefix, seq, suffix)
}

// Store persists snapshots in a blob store.
type Store struct {
	blobs blobstore.BlobStore
	rc    *resource.Controller
	opts  EncodeOptions
}

// NewStore creates a snapshot store. rc may be nil.
func NewStore(blobs blobstore.BlobStore, rc *resource.Controller, opts EncodeOptions) *Store {
	return &Store{blobs: blobs, rc: rc, opts: opts}
}

// Save encodes the catalog, uploads it and moves CURRENT to it. It returns
// the blob name and the encoded size.
func (s *Store) Save(ctx context.Context, cat Catalog) (string, int, error) {
	data, err := Encode(cat, s.opts)
	if err != nil {
		return "", 0, err
	}
	if err := s.rc.AcquireMemory(ctx, int64(len(data))); err != nil {
		return "", 0, err
	}
	defer s.rc.ReleaseMemory(int64(len(data)))

	name := Name(cat.Seq)
	if cp, ok := s.blobs.(blobstore.ConditionalPutter); ok {
		if err := s.rc.AcquireIO(ctx, len(data)); err != nil {
			return "", 0, err
		}
		if err := cp.PutIfNotExists(ctx, name, data); err != nil {
			if errors.Is(err, blobstore.ErrExists) {
				return "", 0, fmt.Errorf("%w: %s", ErrSnapshotExists, name)
			}
			return "", 0, err
		}
		if err := s.publish(ctx, name); err != nil {
			return "", 0, err
		}
		return name, len(data), nil
	}

	w, err := s.blobs.Create(ctx, name)
	if err != nil {
		return "", 0, err
	}
	if _, err := resource.NewRateLimitedWriter(ctx, w, s.rc).Write(data); err != nil {
		_ = w.Close()
		_ = s.blobs.Delete(ctx, name)
		return "", 0, err
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return "", 0, err
	}
	if err := w.Close(); err != nil {
		return "", 0, err
	}
	if err := s.publish(ctx, name); err != nil {
		return "", 0, err
	}
	return name, len(data), nil
}

// publish moves CURRENT to name.
func (s *Store) publish(ctx context.Context, name string) error {
	return s.blobs.Put(ctx, CurrentName, []byte(name))
}

// Latest loads the snapshot CURRENT points at.
func (s *Store) Latest(ctx context.Context) (*Snapshot, string, error) {
	ptr, err := blobstore.Get(ctx, s.blobs, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, "", ErrNoSnapshot
		}
		return nil, "", err
	}
	name := strings.TrimSpace(string(ptr))
	snap, err := s.Load(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return snap, name, nil
}

// Load reads and decodes the named snapshot.
func (s *Store) Load(ctx context.Context, name string) (*Snapshot, error) {
	b, err := s.blobs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	if err := s.rc.AcquireMemory(ctx, b.Size()); err != nil {
		return nil, err
	}
	defer s.rc.ReleaseMemory(b.Size())

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, err
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return snap, nil
}

// List returns the names of all stored snapshots, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx, Prefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if strings.HasSuffix(n, suffix) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Prune deletes all but the newest keep snapshots. The snapshot CURRENT
// names is never deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	names, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	current, err := blobstore.Get(ctx, s.blobs, CurrentName)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return 0, err
	}
	deleted := 0
	for i := 0; i < len(names)-keep; i++ {
		if names[i] == string(current) {
			continue
		}
		if err := s.blobs.Delete(ctx, names[i]); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
