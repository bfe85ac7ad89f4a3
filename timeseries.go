package docstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/timeseries"
	"github.com/hupe1980/docstore/value"
)

// TimeseriesCollection is a view over a bucket collection. Events are grouped
// into bucket documents and indexes created on the view are translated into
// indexes on the bucket collection, sharing their names.
type TimeseriesCollection struct {
	db      *DB
	name    string
	schema  *timeseries.Schema
	buckets *Collection
	dropped atomic.Bool

	// mu serializes bucket catalog changes with the bucket writes they plan.
	mu      sync.Mutex
	catalog *timeseries.Catalog
}

// Name returns the view name.
func (v *TimeseriesCollection) Name() string { return v.name }

// Options returns the validated time-series options.
func (v *TimeseriesCollection) Options() timeseries.Options { return v.schema.Options() }

// Buckets returns the bucket collection backing the view.
func (v *TimeseriesCollection) Buckets() *Collection { return v.buckets }

func (v *TimeseriesCollection) check() error {
	if v.dropped.Load() {
		return errorf(ErrNamespaceNotFound, "time-series collection %q was dropped", v.name)
	}
	return nil
}

// Insert adds an event. The event must carry the time field as a date; a
// missing _id is generated. It returns the event _id.
func (v *TimeseriesCollection) Insert(ctx context.Context, event value.Document) (value.Value, error) {
	start := time.Now()
	id, err := v.insert(ctx, event)
	v.db.opts.metricsCollector.RecordInsert(v.name, time.Since(start), err)
	v.db.opts.logger.LogInsert(ctx, v.name, id, err)
	return id, err
}

// InsertMany inserts events in order and stops at the first failure.
func (v *TimeseriesCollection) InsertMany(ctx context.Context, events []value.Document) ([]value.Value, error) {
	ids := make([]value.Value, 0, len(events))
	for _, ev := range events {
		id, err := v.Insert(ctx, ev)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (v *TimeseriesCollection) insert(ctx context.Context, event value.Document) (value.Value, error) {
	if err := v.check(); err != nil {
		return value.Value{}, err
	}
	if !event.Has(value.IDField) {
		event = append(value.Document{{Name: value.IDField, Value: value.OID(value.NewObjectID())}}, event...)
	}
	id, _ := event.ID()

	v.mu.Lock()
	defer v.mu.Unlock()
	for retried := false; ; retried = true {
		w, err := v.catalog.Add(event)
		if err != nil {
			return id, translateError(err)
		}
		if w.Created {
			_, err = v.buckets.insert(ctx, w.Doc)
		} else {
			_, err = v.buckets.replace(ctx, w.ID, func(value.Document) (value.Document, error) { return w.Doc, nil })
		}
		if err == nil {
			v.catalog.Commit(w)
			return id, nil
		}
		// The open bucket was removed through the bucket collection.
		if !w.Created && !retried && isNotFound(err) {
			v.catalog.Forget(w)
			continue
		}
		return id, err
	}
}

// CreateIndex validates a view key pattern, translates it and builds the
// bucket index. Sparse indexes over measurement fields fail with
// ErrInvalidOptions and create nothing. The view form of the descriptor is
// returned.
func (v *TimeseriesCollection) CreateIndex(ctx context.Context, keys value.Document, opts index.Options) (index.Descriptor, error) {
	if err := v.check(); err != nil {
		return index.Descriptor{}, err
	}
	kp, err := index.ParseKeyPattern(keys)
	if err != nil {
		return index.Descriptor{}, translateError(err)
	}
	d, err := v.schema.BucketIndex(kp, opts)
	if err != nil {
		return index.Descriptor{}, translateError(err)
	}
	phys, err := v.buckets.createIndex(ctx, d)
	if err != nil {
		return index.Descriptor{}, err
	}
	view, err := v.schema.ViewIndex(phys)
	return view, translateError(err)
}

// bucketRef translates a view reference. Names are shared between the view
// and the bucket collection; key patterns are translated.
func (v *TimeseriesCollection) bucketRef(ref index.Ref) (index.Ref, error) {
	if !ref.IsKey() {
		return ref, nil
	}
	kp, err := v.schema.Translate(ref.Key())
	if err != nil {
		return index.Ref{}, translateError(err)
	}
	return index.ByKey(kp), nil
}

func (v *TimeseriesCollection) viewIndex(d index.Descriptor, err error) (index.Descriptor, error) {
	if err != nil {
		return index.Descriptor{}, err
	}
	view, err := v.schema.ViewIndex(d)
	if err != nil {
		// Created directly on the bucket collection.
		return d, nil
	}
	return view, nil
}

// DropIndex drops an index referenced by name or by view key pattern.
func (v *TimeseriesCollection) DropIndex(ctx context.Context, ref index.Ref) (index.Descriptor, error) {
	if err := v.check(); err != nil {
		return index.Descriptor{}, err
	}
	br, err := v.bucketRef(ref)
	if err != nil {
		return index.Descriptor{}, err
	}
	return v.viewIndex(v.buckets.DropIndex(ctx, br))
}

// HideIndex hides an index on the view and the bucket collection at once:
// both resolve to the same bucket index.
func (v *TimeseriesCollection) HideIndex(ctx context.Context, ref index.Ref) (index.Descriptor, error) {
	return v.setHidden(ctx, ref, true)
}

// UnhideIndex reverses HideIndex.
func (v *TimeseriesCollection) UnhideIndex(ctx context.Context, ref index.Ref) (index.Descriptor, error) {
	return v.setHidden(ctx, ref, false)
}

func (v *TimeseriesCollection) setHidden(ctx context.Context, ref index.Ref, hidden bool) (index.Descriptor, error) {
	if err := v.check(); err != nil {
		return index.Descriptor{}, err
	}
	br, err := v.bucketRef(ref)
	if err != nil {
		return index.Descriptor{}, err
	}
	return v.viewIndex(v.buckets.setHidden(ctx, br, hidden))
}

// Indexes returns the view form of the bucket indexes. Bucket indexes that
// no view pattern translates to are omitted.
func (v *TimeseriesCollection) Indexes() []index.Descriptor {
	var out []index.Descriptor
	for _, d := range v.buckets.Indexes() {
		if view, err := v.schema.ViewIndex(d); err == nil {
			out = append(out, view)
		}
	}
	return out
}

// Find returns the events matching filter. Meta and time predicates select
// buckets; every predicate is then applied to the unpacked events.
func (v *TimeseriesCollection) Find(ctx context.Context, filter value.Document, opts FindOptions) ([]value.Document, error) {
	events, _, err := v.find(ctx, filter, opts)
	return events, err
}

// Explain runs the query like Find and describes the bucket plan below an
// UNPACK_BUCKET stage.
func (v *TimeseriesCollection) Explain(ctx context.Context, filter value.Document, opts FindOptions) (planner.Explain, error) {
	_, e, err := v.find(ctx, filter, opts)
	return e, err
}

func (v *TimeseriesCollection) find(ctx context.Context, filter value.Document, opts FindOptions) ([]value.Document, planner.Explain, error) {
	start := time.Now()
	events, e, err := v.run(ctx, filter, opts)
	v.db.opts.metricsCollector.RecordFind(v.name, planner.StageUnpackBucket, false, len(events), time.Since(start), err)
	return events, e, err
}

func (v *TimeseriesCollection) run(ctx context.Context, filter value.Document, opts FindOptions) ([]value.Document, planner.Explain, error) {
	if err := v.check(); err != nil {
		return nil, planner.Explain{}, err
	}
	req, err := opts.request(filter)
	if err != nil {
		return nil, planner.Explain{}, err
	}
	hint := req.Hint
	if hint.Key() != nil {
		kp, err := v.schema.Translate(hint.Key())
		if err != nil {
			return nil, planner.Explain{}, translateError(err)
		}
		hint = hint.WithKey(kp)
	}

	buckets, plan, st, err := v.buckets.execute(ctx, planner.Request{
		Filter:    v.schema.BucketFilter(req.Filter),
		Hint:      hint,
		Direction: req.Direction,
	})
	if err != nil {
		return nil, planner.Explain{}, err
	}

	events, err := v.unpack(buckets, req.Filter, req.Projection, req.Limit)
	if err != nil {
		return nil, planner.Explain{}, err
	}
	st.NReturned = len(events)

	e := planner.NewExplain(v.name, plan, st)
	e.Filter = req.Filter.String()
	e.IndexOnly = false
	stages := []string{planner.StageUnpackBucket}
	if !req.Projection.IsEmpty() {
		stages = append([]string{planner.StageProjection}, stages...)
	}
	e.Stages = append(stages, e.Stages...)
	return events, e, nil
}

func (v *TimeseriesCollection) unpack(buckets []value.Document, f query.Filter, p query.Projection, limit int) ([]value.Document, error) {
	var out []value.Document
	for _, b := range buckets {
		events, err := v.schema.Unpack(b)
		if err != nil {
			return nil, translateError(err)
		}
		for _, ev := range events {
			if !f.MatchesDocument(ev) {
				continue
			}
			out = append(out, p.Apply(ev))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}
