package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/docstore/clustered"
	"github.com/hupe1980/docstore/value"
)

// MaxIndexes is the maximum number of secondary indexes per collection.
const MaxIndexes = 64

// Handle pairs a published descriptor with its entries.
type Handle struct {
	Descriptor
	idx *Index
}

// Index returns the entries of the handle.
func (h Handle) Index() *Index { return h.idx }

// catalog is an immutable snapshot of the index set.
type catalog struct {
	ready    []Handle
	building []Handle
}

// Source is the record set an index build backfills from.
// *clustered.Store implements it.
type Source interface {
	ScanBatch(after []byte, n int, fn func(clustered.Record) error) (last []byte, done bool, err error)
}

// Throttle is called before every backfill batch with the batch size. It may
// block and returns an error to abort the build.
type Throttle func(ctx context.Context, n int) error

// BuildOptions tune an index build.
type BuildOptions struct {
	BatchSize int
	Throttle  Throttle
}

// Manager owns the secondary indexes of one collection.
//
// Catalog changes serialize on catalogMu and publish a new immutable snapshot.
// Record writes call OnWrite under the collection write lock and see either
// the old or the new snapshot, never a partial one.
type Manager struct {
	catalogMu sync.Mutex
	snap      atomic.Pointer[catalog]
	version   atomic.Uint64
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	m := &Manager{}
	m.snap.Store(&catalog{})
	return m
}

// Version increases with every catalog change.
func (m *Manager) Version() uint64 { return m.version.Load() }

// Indexes returns the published descriptors in creation order.
func (m *Manager) Indexes() []Descriptor {
	c := m.snap.Load()
	out := make([]Descriptor, len(c.ready))
	for i, h := range c.ready {
		out[i] = h.Descriptor
	}
	return out
}

// Visible returns the published, non-hidden indexes.
func (m *Manager) Visible() []Handle {
	c := m.snap.Load()
	out := make([]Handle, 0, len(c.ready))
	for _, h := range c.ready {
		if !h.Hidden {
			out = append(out, h)
		}
	}
	return out
}

// Lookup resolves a reference against the published indexes, hidden ones
// included.
func (m *Manager) Lookup(ref Ref) (Handle, error) {
	for _, h := range m.snap.Load().ready {
		if ref.Matches(h.Descriptor) {
			return h, nil
		}
	}
	return Handle{}, fmt.Errorf("%w: %s", ErrIndexNotFound, ref)
}

// OnWrite maintains every index, building ones included, for a record
// change. old is nil for inserts and new is nil for deletes. Either all
// indexes change or, on a unique violation, none do.
func (m *Manager) OnWrite(old, new value.Document) error {
	c := m.snap.Load()
	changes := make([]change, 0, len(c.ready)+len(c.building))
	for _, h := range c.ready {
		ch, err := h.idx.plan(old, new, false)
		if err != nil {
			return err
		}
		changes = append(changes, ch)
	}
	for _, h := range c.building {
		ch, err := h.idx.plan(old, new, true)
		if err != nil {
			return err
		}
		changes = append(changes, ch)
	}
	for _, ch := range changes {
		ch.apply()
	}
	return nil
}

// Validate checks a descriptor against the published set. It returns the
// existing descriptor and true when an identical index already exists.
func (m *Manager) Validate(d Descriptor) (Descriptor, bool, error) {
	return validate(m.snap.Load(), d)
}

func validate(c *catalog, d Descriptor) (Descriptor, bool, error) {
	if len(d.Key) == 0 {
		return Descriptor{}, false, fmt.Errorf("%w: key pattern must not be empty", ErrBadKeyPattern)
	}
	if d.Name == "" {
		return Descriptor{}, false, fmt.Errorf("%w: index name must not be empty", ErrInvalidOptions)
	}
	if d.Unique && (d.Key.HasSpecial(SpecialHashed) || d.Key.HasGeo() || d.Key.HasSpecial(SpecialText)) {
		return Descriptor{}, false, fmt.Errorf("%w: %s indexes cannot be unique", ErrCannotCreateIndex, d.Key)
	}
	for _, h := range append(append([]Handle{}, c.ready...), c.building...) {
		sameName := h.Name == d.Name
		sameKey := h.Key.Equal(d.Key)
		switch {
		case sameName && sameKey && h.sameSpec(d):
			return h.Descriptor, true, nil
		case sameName && !sameKey:
			return Descriptor{}, false, fmt.Errorf("%w: index %q exists with key %s", ErrKeySpecsConflict, h.Name, h.Key)
		case sameKey:
			return Descriptor{}, false, fmt.Errorf("%w: index with key %s exists as %q", ErrOptionsConflict, h.Key, h.Name)
		}
	}
	if len(c.ready)+len(c.building) >= MaxIndexes {
		return Descriptor{}, false, fmt.Errorf("%w: too many indexes", ErrCannotCreateIndex)
	}
	return Descriptor{}, false, nil
}

// Create builds and publishes a new index. The backfill scans src in batches;
// writes between batches are mirrored into the building index through
// OnWrite. On failure or cancellation the partial index is discarded and the
// catalog is unchanged.
//
// created is false when an identical index already exists.
func (m *Manager) Create(ctx context.Context, d Descriptor, src Source, bo BuildOptions) (desc Descriptor, created bool, err error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	existing, exists, err := validate(m.snap.Load(), d)
	if err != nil {
		return Descriptor{}, false, err
	}
	if exists {
		return existing, false, nil
	}

	d.State = StateBuilding
	h := Handle{Descriptor: d, idx: newIndex(d)}
	m.publish(func(c *catalog) { c.building = append(c.building, h) })

	if err := backfill(ctx, h.idx, src, bo); err != nil {
		m.publish(func(c *catalog) { c.building = without(c.building, h.idx) })
		return Descriptor{}, false, err
	}

	h.idx.mu.RLock()
	mirrorErr := h.idx.mirrorErr
	h.idx.mu.RUnlock()
	if mirrorErr != nil {
		m.publish(func(c *catalog) { c.building = without(c.building, h.idx) })
		return Descriptor{}, false, mirrorErr
	}

	h.State = StateReady
	m.publish(func(c *catalog) {
		c.building = without(c.building, h.idx)
		c.ready = append(c.ready, h)
	})
	return h.Descriptor, true, nil
}

func backfill(ctx context.Context, ix *Index, src Source, bo BuildOptions) error {
	n := bo.BatchSize
	if n <= 0 {
		n = 256
	}
	var after []byte
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrBuildAborted, err)
		}
		if bo.Throttle != nil {
			if err := bo.Throttle(ctx, n); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("%w: %w", ErrBuildAborted, err)
				}
				return err
			}
		}
		last, done, err := src.ScanBatch(after, n, func(r clustered.Record) error {
			return ix.add(r.Doc)
		})
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		after = last
	}
}

// Drop removes the referenced index.
func (m *Manager) Drop(ref Ref) (Descriptor, error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	h, err := m.Lookup(ref)
	if err != nil {
		return Descriptor{}, err
	}
	m.publish(func(c *catalog) { c.ready = without(c.ready, h.idx) })
	return h.Descriptor, nil
}

// DropAll removes every index.
func (m *Manager) DropAll() {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()
	m.publish(func(c *catalog) { c.ready = nil })
}

// SetHidden toggles the hidden flag of the referenced index without
// rebuilding it. It returns the updated descriptor.
func (m *Manager) SetHidden(ref Ref, hidden bool) (Descriptor, error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	h, err := m.Lookup(ref)
	if err != nil {
		return Descriptor{}, err
	}
	if h.Hidden == hidden {
		return h.Descriptor, nil
	}
	h.Hidden = hidden
	m.publish(func(c *catalog) {
		for i := range c.ready {
			if c.ready[i].idx == h.idx {
				c.ready[i] = h
			}
		}
	})
	return h.Descriptor, nil
}

// publish copies the current snapshot, applies fn and swaps it in.
// Callers hold catalogMu.
func (m *Manager) publish(fn func(c *catalog)) {
	cur := m.snap.Load()
	next := &catalog{
		ready:    append([]Handle(nil), cur.ready...),
		building: append([]Handle(nil), cur.building...),
	}
	fn(next)
	m.snap.Store(next)
	m.version.Add(1)
}

func without(hs []Handle, ix *Index) []Handle {
	out := hs[:0:0]
	for _, h := range hs {
		if h.idx != ix {
			out = append(out, h)
		}
	}
	return out
}
