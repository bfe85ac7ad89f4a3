package docstore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hupe1980/docstore/clustered"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/value"
	"github.com/hupe1980/docstore/wal"
)

// Collection is a clustered collection: records are stored in _id order and
// secondary indexes map key tuples to _id values.
type Collection struct {
	db      *DB
	name    string
	store   *clustered.Store
	indexes *index.Manager
	planner *planner.Planner
	dropped atomic.Bool
}

func newCollection(db *DB, name string) *Collection {
	var cache *planner.Cache
	if db.opts.planCacheSize >= 0 {
		cache = planner.NewCache(db.opts.planCacheSize)
	}
	return &Collection{
		db:      db,
		name:    name,
		store:   clustered.New(),
		indexes: index.NewManager(),
		planner: planner.New(planner.WithCache(cache)),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Count returns the number of records.
func (c *Collection) Count() int { return c.store.Len() }

func (c *Collection) begin(ctx context.Context) error {
	if c.dropped.Load() {
		return errorf(ErrNamespaceNotFound, "collection %q was dropped", c.name)
	}
	return c.db.begin(ctx)
}

// hook keeps the indexes and the WAL in step with a record mutation. It runs
// under the store write lock.
func (c *Collection) hook(op wal.OperationType) clustered.Hook {
	return func(old, new value.Document) error {
		doc := new
		if doc == nil {
			doc = old
		}
		id, _ := doc.ID()
		return c.db.logged(op, c.name, id, new,
			func() error { return c.indexes.OnWrite(old, new) },
			func() { _ = c.indexes.OnWrite(new, old) },
		)
	}
}

// Insert adds a document. A missing _id is generated as an ObjectID. It
// returns the _id.
func (c *Collection) Insert(ctx context.Context, doc value.Document) (value.Value, error) {
	start := time.Now()
	id, err := c.insert(ctx, doc)
	c.db.opts.metricsCollector.RecordInsert(c.name, time.Since(start), err)
	c.db.opts.logger.LogInsert(ctx, c.name, id, err)
	return id, err
}

// InsertMany inserts documents in order and stops at the first failure. It
// returns the _id values of the inserted documents.
func (c *Collection) InsertMany(ctx context.Context, docs []value.Document) ([]value.Value, error) {
	ids := make([]value.Value, 0, len(docs))
	for _, doc := range docs {
		id, err := c.Insert(ctx, doc)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Collection) insert(ctx context.Context, doc value.Document) (value.Value, error) {
	if err := c.begin(ctx); err != nil {
		return value.Value{}, err
	}
	defer c.db.end()

	if !doc.Has(value.IDField) {
		doc = append(value.Document{{Name: value.IDField, Value: value.OID(value.NewObjectID())}}, doc...)
	}
	id, _ := doc.ID()
	if err := c.store.Insert(doc, c.hook(wal.OpPrepareInsert)); err != nil {
		return id, translateError(err)
	}
	return id, nil
}

// Get returns the document with the given _id.
func (c *Collection) Get(ctx context.Context, id value.Value) (value.Document, error) {
	if c.dropped.Load() {
		return nil, errorf(ErrNamespaceNotFound, "collection %q was dropped", c.name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := c.store.Get(id)
	return doc, translateError(err)
}

// Replace replaces the document with the given _id. doc may omit _id but
// must not change it.
func (c *Collection) Replace(ctx context.Context, id value.Value, doc value.Document) (value.Document, error) {
	return c.update(ctx, id, func(value.Document) (value.Document, error) {
		if doc.Has(value.IDField) {
			return doc.Clone(), nil
		}
		return append(value.Document{{Name: value.IDField, Value: id}}, doc...), nil
	})
}

// Update sets the given dotted paths on the document with the given _id and
// returns the new document. Setting _id to a different value fails with
// ErrImmutableKey.
func (c *Collection) Update(ctx context.Context, id value.Value, set value.Document) (value.Document, error) {
	return c.update(ctx, id, func(doc value.Document) (value.Document, error) {
		for _, f := range set {
			doc = doc.SetPath(f.Name, f.Value.Clone())
		}
		return doc, nil
	})
}

func (c *Collection) update(ctx context.Context, id value.Value, mutate clustered.Mutator) (value.Document, error) {
	start := time.Now()
	doc, err := c.replace(ctx, id, mutate)
	c.db.opts.metricsCollector.RecordUpdate(c.name, time.Since(start), err)
	c.db.opts.logger.LogUpdate(ctx, c.name, id, err)
	return doc, err
}

func (c *Collection) replace(ctx context.Context, id value.Value, mutate clustered.Mutator) (value.Document, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	defer c.db.end()
	doc, err := c.store.Update(id, mutate, c.hook(wal.OpPrepareUpdate))
	return doc, translateError(err)
}

// Delete removes the document with the given _id.
func (c *Collection) Delete(ctx context.Context, id value.Value) error {
	start := time.Now()
	err := c.delete(ctx, id)
	c.db.opts.metricsCollector.RecordDelete(c.name, time.Since(start), err)
	c.db.opts.logger.LogDelete(ctx, c.name, id, err)
	return err
}

func (c *Collection) delete(ctx context.Context, id value.Value) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	defer c.db.end()
	_, err := c.store.Delete(id, c.hook(wal.OpPrepareDelete))
	return translateError(err)
}

// CreateIndex builds an index over keys, a key pattern such as
// {a: 1, loc: "2dsphere"}. Creating an identical index again returns the
// existing descriptor.
//
// The build backfills in batches while writes continue. Builds are limited
// by the resource controller and a cancelled build fails with
// ErrIndexBuildAborted, leaving the catalog unchanged.
func (c *Collection) CreateIndex(ctx context.Context, keys value.Document, opts index.Options) (index.Descriptor, error) {
	kp, err := index.ParseKeyPattern(keys)
	if err != nil {
		return index.Descriptor{}, translateError(err)
	}
	return c.createIndex(ctx, index.NewDescriptor(kp, opts))
}

func (c *Collection) createIndex(ctx context.Context, d index.Descriptor) (index.Descriptor, error) {
	if err := c.begin(ctx); err != nil {
		return index.Descriptor{}, err
	}
	defer c.db.end()

	if err := c.db.rc.AcquireBuild(ctx); err != nil {
		return index.Descriptor{}, errorf(ErrIndexBuildAborted, "waiting for a build slot: %v", err)
	}
	defer c.db.rc.ReleaseBuild()

	start := time.Now()
	desc, created, err := c.indexes.Create(ctx, d, c.store, index.BuildOptions{Throttle: c.db.rc.ThrottleDocs})
	if err == nil && created {
		if err = c.db.logCatalog(wal.OpCreateIndex, c.name, []byte(desc.Name), indexSpec(desc)); err != nil {
			_, _ = c.indexes.Drop(index.ByName(desc.Name))
		}
	}
	if err != nil || created {
		c.db.opts.metricsCollector.RecordIndexBuild(c.name, c.store.Len(), time.Since(start), err)
		c.db.opts.logger.LogIndexBuild(ctx, c.name, d.Name, c.store.Len(), err)
	}
	if err != nil {
		return index.Descriptor{}, translateError(err)
	}
	return desc, nil
}

// DropIndex drops the index referenced by name or key pattern.
func (c *Collection) DropIndex(ctx context.Context, ref index.Ref) (index.Descriptor, error) {
	d, err := c.dropIndex(ctx, ref)
	c.db.opts.logger.LogIndexDrop(ctx, c.name, ref.String(), err)
	return d, err
}

func (c *Collection) dropIndex(ctx context.Context, ref index.Ref) (index.Descriptor, error) {
	if err := c.begin(ctx); err != nil {
		return index.Descriptor{}, err
	}
	defer c.db.end()

	h, err := c.indexes.Lookup(ref)
	if err != nil {
		return index.Descriptor{}, translateError(err)
	}
	if err := c.db.logCatalog(wal.OpDropIndex, c.name, []byte(h.Name), nil); err != nil {
		return index.Descriptor{}, err
	}
	d, err := c.indexes.Drop(index.ByName(h.Name))
	return d, translateError(err)
}

// DropIndexes drops every secondary index. The clustered _id order is not an
// index and is unaffected.
func (c *Collection) DropIndexes(ctx context.Context) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	defer c.db.end()

	for _, d := range c.indexes.Indexes() {
		if err := c.db.logCatalog(wal.OpDropIndex, c.name, []byte(d.Name), nil); err != nil {
			return err
		}
	}
	c.indexes.DropAll()
	c.db.opts.logger.LogIndexDrop(ctx, c.name, "*", nil)
	return nil
}

// HideIndex hides an index from the planner and from hints. The index is
// still maintained.
func (c *Collection) HideIndex(ctx context.Context, ref index.Ref) (index.Descriptor, error) {
	return c.setHidden(ctx, ref, true)
}

// UnhideIndex makes a hidden index usable again without a rebuild.
func (c *Collection) UnhideIndex(ctx context.Context, ref index.Ref) (index.Descriptor, error) {
	return c.setHidden(ctx, ref, false)
}

func (c *Collection) setHidden(ctx context.Context, ref index.Ref, hidden bool) (index.Descriptor, error) {
	if err := c.begin(ctx); err != nil {
		return index.Descriptor{}, err
	}
	defer c.db.end()

	before, err := c.indexes.Lookup(ref)
	if err != nil {
		return index.Descriptor{}, translateError(err)
	}
	d, err := c.indexes.SetHidden(ref, hidden)
	if err != nil {
		return index.Descriptor{}, translateError(err)
	}
	if before.Hidden == hidden {
		return d, nil
	}
	if err := c.db.logCatalog(wal.OpHideIndex, c.name, []byte(d.Name), indexSpec(d)); err != nil {
		_, _ = c.indexes.SetHidden(index.ByName(d.Name), before.Hidden)
		return index.Descriptor{}, err
	}
	return d, nil
}

// Indexes returns the descriptors of the built indexes in creation order.
func (c *Collection) Indexes() []index.Descriptor {
	return c.indexes.Indexes()
}

// IndexSpecs renders the indexes like listIndexes does.
func (c *Collection) IndexSpecs() []value.Document {
	ds := c.indexes.Indexes()
	out := make([]value.Document, len(ds))
	for i, d := range ds {
		out[i] = d.Spec()
	}
	return out
}

// isNotFound reports whether err is a missing record.
func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
