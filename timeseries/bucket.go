package timeseries

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/value"
)

// bucket is the state of an open bucket.
type bucket struct {
	id       value.ObjectID
	start    time.Time
	end      time.Time
	count    int
	meta     value.Value
	hasMeta  bool
	min, max value.Document
	columns  value.Document // field -> {"0": v, "1": v, ...}
}

func (b *bucket) clone() *bucket {
	c := *b
	c.min = b.min.Clone()
	c.max = b.max.Clone()
	c.columns = b.columns.Clone()
	return &c
}

// add appends an event. The meta field is stored once per bucket and is not
// part of the columns.
func (b *bucket) add(s *Schema, ev value.Document) {
	pos := strconv.Itoa(b.count)
	for _, f := range ev {
		if f.Name == s.opts.MetaField {
			continue
		}
		col, _ := b.columns.Get(f.Name)
		b.columns = b.columns.Set(f.Name, value.Doc(append(col.D.Clone(), value.Field{Name: pos, Value: f.Value.Clone()})))

		if f.Name == s.opts.TimeField {
			continue
		}
		if cur, ok := b.min.Get(f.Name); !ok || keycodec.Compare(f.Value, cur) < 0 {
			b.min = b.min.Set(f.Name, f.Value.Clone())
		}
		if cur, ok := b.max.Get(f.Name); !ok || keycodec.Compare(f.Value, cur) > 0 {
			b.max = b.max.Set(f.Name, f.Value.Clone())
		}
	}
	t, _ := ev.Get(s.opts.TimeField)
	if cur, ok := b.max.Get(s.opts.TimeField); !ok || t.I64 > cur.I64 {
		b.max = b.max.Set(s.opts.TimeField, t)
	}
	b.count++
}

// document renders the bucket document.
//
//	{_id, control: {version, min, max, count}, meta, data}
func (b *bucket) document(s *Schema) value.Document {
	min := value.D(s.opts.TimeField, value.Date(b.start))
	for _, f := range b.min {
		if f.Name != s.opts.TimeField {
			min = append(min, f)
		}
	}
	doc := value.D(
		value.IDField, value.OID(b.id),
		bucketControl, value.D(
			"version", 1,
			"min", min,
			"max", b.max.Clone(),
			bucketCount, b.count,
		),
	)
	if b.hasMeta {
		doc = append(doc, value.Field{Name: bucketMeta, Value: b.meta.Clone()})
	}
	return append(doc, value.Field{Name: bucketData, Value: value.Doc(b.columns.Clone())})
}

// Write is a pending bucket mutation produced by Catalog.Add.
type Write struct {
	// ID of the bucket document.
	ID value.Value
	// Doc is the full bucket document after the event is added.
	Doc value.Document
	// Created reports whether the bucket is new and Doc must be inserted
	// rather than replace the existing document.
	Created bool

	key  string
	next *bucket
}

// Catalog groups events into open buckets by meta value. Add and Commit must
// be serialized by the caller, which applies each Write to the bucket
// collection in between.
type Catalog struct {
	schema *Schema

	mu   sync.Mutex
	open map[string]*bucket
}

// NewCatalog creates an empty bucket catalog.
func NewCatalog(s *Schema) *Catalog {
	return &Catalog{schema: s, open: make(map[string]*bucket)}
}

// Add places an event into a bucket. An _id is generated for events without
// one. The catalog is unchanged until Commit.
func (c *Catalog) Add(ev value.Document) (Write, error) {
	s := c.schema
	t, ok := ev.Get(s.opts.TimeField)
	if !ok || t.Kind != value.KindDate {
		return Write{}, fmt.Errorf("%w: %q must be a date", ErrBadEvent, s.opts.TimeField)
	}
	ev = ev.Clone()
	if !ev.Has(value.IDField) {
		ev = append(value.Document{{Name: value.IDField, Value: value.OID(value.NewObjectID())}}, ev...)
	}
	if id, _ := ev.ID(); id.Kind == value.KindArray {
		return Write{}, fmt.Errorf("%w: _id must not be an array", ErrBadEvent)
	}

	var meta value.Value
	hasMeta := false
	if s.opts.MetaField != "" {
		meta, hasMeta = ev.Get(s.opts.MetaField)
	}
	key := string(keycodec.Encode(meta))

	c.mu.Lock()
	cur := c.open[key]
	c.mu.Unlock()

	ts, _ := t.AsTime()
	var next *bucket
	created := cur == nil || !cur.fits(ts, s.opts.BucketMaxCount)
	if created {
		start := ts.Truncate(s.opts.Granularity.rounding()).UTC()
		next = &bucket{
			id:      bucketID(start),
			start:   start,
			end:     start.Add(s.opts.BucketMaxSpan),
			meta:    meta,
			hasMeta: hasMeta,
		}
	} else {
		next = cur.clone()
	}
	next.add(s, ev)

	return Write{
		ID:      value.OID(next.id),
		Doc:     next.document(s),
		Created: created,
		key:     key,
		next:    next,
	}, nil
}

func (b *bucket) fits(t time.Time, maxCount int) bool {
	return b.count < maxCount && !t.Before(b.start) && t.Before(b.end)
}

// Commit makes w the open bucket of its meta value.
func (c *Catalog) Commit(w Write) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open[w.key] = w.next
}

// Forget closes the open bucket w was planned against, so the next event with
// the same meta value starts a new bucket.
func (c *Catalog) Forget(w Write) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.open, w.key)
}

// Reset closes every open bucket.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.open)
}

// Len returns the number of open buckets.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// bucketID returns an ObjectID whose timestamp is the bucket start. The
// remaining bytes come from a fresh ObjectID to keep ids unique.
func bucketID(start time.Time) value.ObjectID {
	id := value.ObjectIDFromTime(start)
	fresh := value.NewObjectID()
	copy(id[4:], fresh[4:])
	return id
}

// Unpack returns the events stored in a bucket document in insertion order.
func (s *Schema) Unpack(bucketDoc value.Document) ([]value.Document, error) {
	n, ok := bucketDoc.Lookup(bucketControl + "." + bucketCount)
	count, isInt := n.AsInt64()
	if !ok || !isInt || count < 0 {
		return nil, fmt.Errorf("%w: missing control.count", ErrBadBucket)
	}
	data, _ := bucketDoc.Get(bucketData)
	meta, hasMeta := bucketDoc.Get(bucketMeta)

	events := make([]value.Document, count)
	for i := range events {
		pos := strconv.Itoa(i)
		ev := make(value.Document, 0, len(data.D)+1)
		for _, col := range data.D {
			if v, ok := col.Value.D.Get(pos); ok {
				ev = append(ev, value.Field{Name: col.Name, Value: v.Clone()})
			}
		}
		if hasMeta && s.opts.MetaField != "" {
			ev = append(ev, value.Field{Name: s.opts.MetaField, Value: meta.Clone()})
		}
		events[i] = ev
	}
	return events, nil
}
