package docstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/docstore/clustered"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/snapshot"
	"github.com/hupe1980/docstore/timeseries"
	"github.com/hupe1980/docstore/value"
	"github.com/hupe1980/docstore/wal"
)

// walKey is the WAL key of a record: the BSON document {_id: id}.
func walKey(id value.Value) ([]byte, error) {
	return value.MarshalDocument(value.D(value.IDField, id))
}

func idOfKey(key []byte) (value.Value, error) {
	doc, err := value.UnmarshalDocument(key)
	if err != nil {
		return value.Value{}, err
	}
	id, ok := doc.ID()
	if !ok {
		return value.Value{}, fmt.Errorf("%w: wal key without _id", wal.ErrCorrupt)
	}
	return id, nil
}

var commitOf = map[wal.OperationType]wal.OperationType{
	wal.OpPrepareInsert: wal.OpCommitInsert,
	wal.OpPrepareUpdate: wal.OpCommitUpdate,
	wal.OpPrepareDelete: wal.OpCommitDelete,
}

// logged runs apply between a WAL prepare and commit entry. A prepare
// without commit is ignored on replay, so a failed apply needs no undo. A
// failed commit runs undo. Without a WAL only apply runs.
func (db *DB) logged(op wal.OperationType, ns string, id value.Value, doc value.Document, apply func() error, undo func()) error {
	if db.wal == nil {
		return apply()
	}
	key, err := walKey(id)
	if err != nil {
		return err
	}
	var data []byte
	if op != wal.OpPrepareDelete {
		if data, err = value.MarshalDocument(doc); err != nil {
			return err
		}
	}
	if err := db.wal.LogPrepare(op, ns, key, data); err != nil {
		return err
	}
	if err := apply(); err != nil {
		return err
	}
	if err := db.wal.LogCommit(commitOf[op], ns, key); err != nil {
		undo()
		return err
	}
	return nil
}

// logCatalog logs a catalog change. payload is encoded with the configured
// codec; nil logs no payload.
func (db *DB) logCatalog(op wal.OperationType, ns string, key []byte, payload any) error {
	if db.wal == nil {
		return nil
	}
	var data []byte
	if payload != nil {
		var err error
		if data, err = db.opts.codec.Marshal(payload); err != nil {
			return err
		}
	}
	return db.wal.LogCatalog(op, ns, key, data)
}

func indexSpec(d index.Descriptor) snapshot.Index {
	key := make([]snapshot.KeyField, len(d.Key))
	for i, kf := range d.Key {
		key[i] = snapshot.KeyField{Path: kf.Path, Type: kf.Special}
		if kf.Special == "" {
			key[i].Dir = int(kf.Dir)
		}
	}
	return snapshot.Index{Name: d.Name, Key: key, Sparse: d.Sparse, Hidden: d.Hidden, Unique: d.Unique}
}

// descriptorOf validates a persisted index spec through the same parser as
// user input.
func descriptorOf(s snapshot.Index) (index.Descriptor, error) {
	doc := make(value.Document, len(s.Key))
	for i, kf := range s.Key {
		v := value.Int(int64(kf.Dir))
		if kf.Type != "" {
			v = value.String(kf.Type)
		}
		doc[i] = value.Field{Name: kf.Path, Value: v}
	}
	kp, err := index.ParseKeyPattern(doc)
	if err != nil {
		return index.Descriptor{}, err
	}
	return index.NewDescriptor(kp, index.Options{Name: s.Name, Sparse: s.Sparse, Hidden: s.Hidden, Unique: s.Unique}), nil
}

func timeseriesSpec(o timeseries.Options) *snapshot.Timeseries {
	return &snapshot.Timeseries{
		TimeField:      o.TimeField,
		MetaField:      o.MetaField,
		Granularity:    string(o.Granularity),
		BucketMaxCount: o.BucketMaxCount,
		BucketMaxSpan:  o.BucketMaxSpan,
	}
}

func timeseriesOptions(s *snapshot.Timeseries) timeseries.Options {
	return timeseries.Options{
		TimeField:      s.TimeField,
		MetaField:      s.MetaField,
		Granularity:    timeseries.Granularity(s.Granularity),
		BucketMaxCount: s.BucketMaxCount,
		BucketMaxSpan:  s.BucketMaxSpan,
	}
}

// capture collects the catalog and records of every collection. Callers
// hold ckpt exclusively, so no mutation or index build is in flight.
func (db *DB) capture() snapshot.Catalog {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var cat snapshot.Catalog
	for name, v := range db.views {
		cat.Collections = append(cat.Collections, snapshot.Collection{
			Name:       name,
			Timeseries: timeseriesSpec(v.schema.Options()),
		})
	}
	for name, c := range db.colls {
		sc := snapshot.Collection{Name: name}
		for _, d := range c.indexes.Indexes() {
			sc.Indexes = append(sc.Indexes, indexSpec(d))
		}
		// Stored documents are never modified in place.
		c.store.Ascend(func(r clustered.Record) bool {
			sc.Docs = append(sc.Docs, r.Doc)
			return true
		})
		cat.Collections = append(cat.Collections, sc)
	}
	sort.Slice(cat.Collections, func(i, j int) bool { return cat.Collections[i].Name < cat.Collections[j].Name })
	return cat
}

// restore loads the latest snapshot, if any, and returns its name.
// Collections are rebuilt concurrently.
func (db *DB) restore(ctx context.Context) (string, error) {
	if db.snaps == nil {
		return "", nil
	}
	snap, name, err := db.snaps.Latest(ctx)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			return "", nil
		}
		return "", err
	}
	db.seq = snap.Catalog.Seq

	var views []snapshot.Collection
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, sc := range snap.Catalog.Collections {
		if sc.Timeseries != nil {
			views = append(views, sc)
			continue
		}
		c := newCollection(db, sc.Name)
		db.colls[sc.Name] = c
		g.Go(func() error {
			if err := c.load(gctx, sc); err != nil {
				return fmt.Errorf("restore %s: %w", sc.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return name, err
	}

	for _, sc := range views {
		schema, err := timeseries.NewSchema(timeseriesOptions(sc.Timeseries))
		if err != nil {
			return name, fmt.Errorf("restore %s: %w", sc.Name, err)
		}
		buckets, ok := db.colls[BucketsPrefix+sc.Name]
		if !ok {
			buckets = newCollection(db, BucketsPrefix+sc.Name)
		}
		db.attachViewLocked(sc.Name, schema, buckets)
	}
	return name, nil
}

// load fills an empty collection from a snapshot. Indexes are rebuilt after
// the records are in place.
func (c *Collection) load(ctx context.Context, sc snapshot.Collection) error {
	for _, doc := range sc.Docs {
		if err := c.store.Insert(doc, nil); err != nil {
			return err
		}
	}
	for _, s := range sc.Indexes {
		d, err := descriptorOf(s)
		if err != nil {
			return err
		}
		if _, _, err := c.indexes.Create(ctx, d, c.store, index.BuildOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// replay applies the committed WAL entries and returns how many were
// applied. Replay is idempotent: entries already covered by the snapshot
// are absorbed.
func (db *DB) replay(ctx context.Context, w *wal.WAL) (int, error) {
	n := 0
	err := w.ReplayCommitted(func(e wal.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := db.apply(ctx, e); err != nil {
			return fmt.Errorf("%s %s: %w", e.Type, e.Namespace, err)
		}
		n++
		return nil
	})
	return n, err
}

func (db *DB) apply(ctx context.Context, e wal.Entry) error {
	switch e.Type {
	case wal.OpCreateCollection:
		var sc snapshot.Collection
		if err := db.opts.codec.Unmarshal(e.Data, &sc); err != nil {
			return err
		}
		if _, exists := db.colls[e.Namespace]; exists {
			return nil
		}
		if _, exists := db.views[e.Namespace]; exists {
			return nil
		}
		if sc.Timeseries == nil {
			db.colls[e.Namespace] = newCollection(db, e.Namespace)
			return nil
		}
		schema, err := timeseries.NewSchema(timeseriesOptions(sc.Timeseries))
		if err != nil {
			return err
		}
		db.attachViewLocked(e.Namespace, schema, newCollection(db, BucketsPrefix+e.Namespace))
		return nil

	case wal.OpDropCollection:
		db.dropLocked(e.Namespace)
		return nil
	}

	c, ok := db.colls[e.Namespace]
	if !ok {
		return errorf(ErrNamespaceNotFound, "collection %q does not exist", e.Namespace)
	}

	switch e.Type {
	case wal.OpCreateIndex, wal.OpHideIndex:
		var s snapshot.Index
		if err := db.opts.codec.Unmarshal(e.Data, &s); err != nil {
			return err
		}
		if e.Type == wal.OpHideIndex {
			_, err := c.indexes.SetHidden(index.ByName(s.Name), s.Hidden)
			return err
		}
		d, err := descriptorOf(s)
		if err != nil {
			return err
		}
		_, _, err = c.indexes.Create(ctx, d, c.store, index.BuildOptions{})
		return err

	case wal.OpDropIndex:
		_, err := c.indexes.Drop(index.ByName(string(e.Key)))
		if errors.Is(err, index.ErrIndexNotFound) {
			return nil
		}
		return err

	case wal.OpInsert, wal.OpUpdate:
		doc, err := value.UnmarshalDocument(e.Data)
		if err != nil {
			return err
		}
		id, _ := doc.ID()
		_, err = c.store.Update(id, func(value.Document) (value.Document, error) { return doc, nil }, c.indexes.OnWrite)
		if errors.Is(err, clustered.ErrNotFound) {
			return c.store.Insert(doc, c.indexes.OnWrite)
		}
		return err

	case wal.OpDelete:
		id, err := idOfKey(e.Key)
		if err != nil {
			return err
		}
		_, err = c.store.Delete(id, c.indexes.OnWrite)
		if errors.Is(err, clustered.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}
