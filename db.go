package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/docstore/resource"
	"github.com/hupe1980/docstore/snapshot"
	"github.com/hupe1980/docstore/timeseries"
	"github.com/hupe1980/docstore/wal"
)

// BucketsPrefix prefixes the name of the bucket collection backing a
// time-series view.
const BucketsPrefix = "system.buckets."

// DB is a set of named collections and time-series views.
type DB struct {
	opts  options
	rc    *resource.Controller
	snaps *snapshot.Store
	wal   *wal.WAL

	// ckpt is held shared by every mutation and exclusively by Checkpoint
	// and Close, so a snapshot and the WAL truncation cover the same state.
	ckpt sync.RWMutex
	seq  uint64 // sequence of the last snapshot, guarded by ckpt

	mu    sync.RWMutex
	colls map[string]*Collection
	views map[string]*TimeseriesCollection

	ckptCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Open creates a database. With a blob store it restores the latest
// snapshot, and with a WAL it replays the mutations logged since.
func Open(ctx context.Context, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)
	db := &DB{
		opts:   o,
		rc:     resource.NewController(o.resource),
		colls:  make(map[string]*Collection),
		views:  make(map[string]*TimeseriesCollection),
		ckptCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	if o.blobs != nil {
		db.snaps = snapshot.NewStore(o.blobs, db.rc, snapshot.EncodeOptions{
			Compression: o.compression,
			Codec:       o.codec,
		})
	}

	restored, err := db.restore(ctx)
	if err != nil {
		o.logger.LogRecovery(ctx, restored, 0, err)
		return nil, err
	}

	if o.walPath != "" {
		walOpts := append([]func(*wal.Options){func(wo *wal.Options) { wo.Path = o.walPath }}, o.walOptions...)
		w, err := wal.New(walOpts...)
		if err != nil {
			return nil, err
		}
		// db.wal stays nil during replay so replayed mutations are not
		// logged again.
		n, err := db.replay(ctx, w)
		o.logger.LogRecovery(ctx, restored, n, err)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		db.wal = w
		if db.snaps != nil {
			w.SetCheckpointCallback(db.requestCheckpoint)
			db.wg.Add(1)
			go db.checkpointWorker()
		}
	} else if restored != "" {
		o.logger.LogRecovery(ctx, restored, 0, nil)
	}
	return db, nil
}

// begin admits a mutation. Callers must call end.
func (db *DB) begin(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	db.ckpt.RLock()
	if db.closed.Load() {
		db.ckpt.RUnlock()
		return ErrClosed
	}
	return nil
}

func (db *DB) end() { db.ckpt.RUnlock() }

func validateName(name string) error {
	switch {
	case name == "":
		return errorf(ErrInvalidOptions, "collection name must not be empty")
	case strings.ContainsAny(name, "$\x00"):
		return errorf(ErrInvalidOptions, "invalid collection name %q", name)
	case strings.HasPrefix(name, "system."):
		return errorf(ErrInvalidOptions, "collection names must not start with system.: %q", name)
	}
	return nil
}

// CreateCollection creates a clustered collection.
func (db *DB) CreateCollection(ctx context.Context, name string) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := db.begin(ctx); err != nil {
		return nil, err
	}
	defer db.end()

	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkFreeLocked(name); err != nil {
		return nil, err
	}
	c := newCollection(db, name)
	if err := db.logCatalog(wal.OpCreateCollection, name, nil, snapshot.Collection{Name: name}); err != nil {
		return nil, err
	}
	db.colls[name] = c
	return c, nil
}

// CreateTimeseries creates a time-series view and its bucket collection
// system.buckets.<name>. Zero bucket limits in opts take the database
// defaults set with WithBucketLimits.
func (db *DB) CreateTimeseries(ctx context.Context, name string, opts timeseries.Options) (*TimeseriesCollection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if opts.BucketMaxCount == 0 {
		opts.BucketMaxCount = db.opts.bucketMaxCount
	}
	if opts.BucketMaxSpan == 0 {
		opts.BucketMaxSpan = db.opts.bucketMaxSpan
	}
	schema, err := timeseries.NewSchema(opts)
	if err != nil {
		return nil, translateError(err)
	}
	if err := db.begin(ctx); err != nil {
		return nil, err
	}
	defer db.end()

	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkFreeLocked(name); err != nil {
		return nil, err
	}
	if err := db.checkFreeLocked(BucketsPrefix + name); err != nil {
		return nil, err
	}
	spec := snapshot.Collection{Name: name, Timeseries: timeseriesSpec(schema.Options())}
	if err := db.logCatalog(wal.OpCreateCollection, name, nil, spec); err != nil {
		return nil, err
	}
	return db.attachViewLocked(name, schema, newCollection(db, BucketsPrefix+name)), nil
}

func (db *DB) checkFreeLocked(name string) error {
	if _, ok := db.colls[name]; ok {
		return errorf(ErrNamespaceExists, "collection %q already exists", name)
	}
	if _, ok := db.views[name]; ok {
		return errorf(ErrNamespaceExists, "time-series collection %q already exists", name)
	}
	return nil
}

func (db *DB) attachViewLocked(name string, schema *timeseries.Schema, buckets *Collection) *TimeseriesCollection {
	v := &TimeseriesCollection{
		db:      db,
		name:    name,
		schema:  schema,
		buckets: buckets,
		catalog: timeseries.NewCatalog(schema),
	}
	db.colls[buckets.name] = buckets
	db.views[name] = v
	return v
}

// Collection returns a clustered collection. Bucket collections are
// reachable under their system.buckets name.
func (db *DB) Collection(name string) (*Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.colls[name]
	if !ok {
		if _, isView := db.views[name]; isView {
			return nil, errorf(ErrNamespaceNotFound, "%q is a time-series collection", name)
		}
		return nil, errorf(ErrNamespaceNotFound, "collection %q does not exist", name)
	}
	return c, nil
}

// Timeseries returns a time-series view.
func (db *DB) Timeseries(name string) (*TimeseriesCollection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.views[name]
	if !ok {
		return nil, errorf(ErrNamespaceNotFound, "time-series collection %q does not exist", name)
	}
	return v, nil
}

// CollectionNames returns the names of all collections and views, sorted.
func (db *DB) CollectionNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.colls)+len(db.views))
	for n := range db.colls {
		names = append(names, n)
	}
	for n := range db.views {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DropCollection drops a collection. Dropping a time-series view, or its
// bucket collection, drops both.
func (db *DB) DropCollection(ctx context.Context, name string) error {
	if err := db.begin(ctx); err != nil {
		return err
	}
	defer db.end()

	db.mu.Lock()
	defer db.mu.Unlock()
	view := name
	if strings.HasPrefix(name, BucketsPrefix) {
		view = strings.TrimPrefix(name, BucketsPrefix)
	}
	_, isView := db.views[view]
	_, isColl := db.colls[name]
	if !isView && !isColl {
		return errorf(ErrNamespaceNotFound, "collection %q does not exist", name)
	}
	if isView {
		name = view
	}
	if err := db.logCatalog(wal.OpDropCollection, name, nil, nil); err != nil {
		return err
	}
	db.dropLocked(name)
	return nil
}

func (db *DB) dropLocked(name string) {
	if v, ok := db.views[name]; ok {
		v.dropped.Store(true)
		delete(db.views, name)
		name = v.buckets.name
	}
	if c, ok := db.colls[name]; ok {
		c.dropped.Store(true)
		c.indexes.DropAll()
		delete(db.colls, name)
	}
}

// Checkpoint writes a snapshot of every collection to the blob store and
// truncates the WAL. It returns the snapshot name.
func (db *DB) Checkpoint(ctx context.Context) (string, error) {
	if db.snaps == nil {
		return "", ErrNoBlobStore
	}
	if db.closed.Load() {
		return "", ErrClosed
	}
	start := time.Now()
	name, size, err := db.checkpoint(ctx)
	db.opts.metricsCollector.RecordCheckpoint(size, time.Since(start), err)
	db.opts.logger.LogCheckpoint(ctx, name, size, err)
	return name, err
}

func (db *DB) checkpoint(ctx context.Context) (string, int, error) {
	db.ckpt.Lock()
	defer db.ckpt.Unlock()

	cat := db.capture()
	cat.Seq = db.seq + 1
	cat.Created = time.Now().UTC()

	name, size, err := db.snaps.Save(ctx, cat)
	if err != nil {
		return "", 0, err
	}
	db.seq = cat.Seq
	if db.wal != nil {
		if err := db.wal.Checkpoint(); err != nil {
			return name, size, fmt.Errorf("truncate wal: %w", err)
		}
	}
	if db.opts.keepSnapshots > 0 {
		if _, err := db.snaps.Prune(ctx, db.opts.keepSnapshots); err != nil {
			db.opts.logger.WarnContext(ctx, "snapshot prune failed", "error", err)
		}
	}
	return name, size, nil
}

// requestCheckpoint is the WAL auto-checkpoint callback. It runs with a
// mutation in flight, so the checkpoint itself happens on the worker.
func (db *DB) requestCheckpoint() error {
	select {
	case db.ckptCh <- struct{}{}:
	default:
	}
	return nil
}

func (db *DB) checkpointWorker() {
	defer db.wg.Done()
	for {
		select {
		case <-db.stopCh:
			return
		case <-db.ckptCh:
			_, _ = db.Checkpoint(context.Background())
		}
	}
}

// Close waits for in-flight mutations and closes the WAL. It does not
// checkpoint.
func (db *DB) Close() error {
	if db == nil || !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(db.stopCh)
	db.wg.Wait()

	db.ckpt.Lock()
	defer db.ckpt.Unlock()
	var firstErr error
	if db.wal != nil {
		if err := db.wal.Close(); err != nil && !errors.Is(err, wal.ErrClosed) {
			firstErr = err
		}
	}
	return firstErr
}
