package clustered

import (
	"bytes"
	"context"

	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/value"
)

// Bound is one edge of a key range over encoded keys. A nil Key means unbounded.
type Bound struct {
	Key       []byte
	Inclusive bool
}

// Range is an interval over encoded primary keys.
type Range struct {
	Low  Bound
	High Bound
}

// All is the unbounded range.
var All = Range{}

// KeyRange builds a Range from primary key values. Missing values
// (value.Value{}) leave the corresponding edge unbounded.
func KeyRange(low value.Value, lowInclusive bool, high value.Value, highInclusive bool) Range {
	var r Range
	if !low.IsMissing() {
		r.Low = Bound{Key: keycodec.Encode(low), Inclusive: lowInclusive}
	}
	if !high.IsMissing() {
		r.High = Bound{Key: keycodec.Encode(high), Inclusive: highInclusive}
	}
	return r
}

func (r Range) aboveLow(key []byte) bool {
	if r.Low.Key == nil {
		return true
	}
	c := bytes.Compare(key, r.Low.Key)
	return c > 0 || (c == 0 && r.Low.Inclusive)
}

func (r Range) belowHigh(key []byte) bool {
	if r.High.Key == nil {
		return true
	}
	c := bytes.Compare(key, r.High.Key)
	return c < 0 || (c == 0 && r.High.Inclusive)
}

// Contains reports whether key lies within the range.
func (r Range) Contains(key []byte) bool { return r.aboveLow(key) && r.belowHigh(key) }

// Cursor is a lazy, restartable scan over a key range.
//
// Records are read in batches. Each batch re-seeks strictly after the last
// returned key, so records that exist for the whole scan are returned exactly
// once even when other records are inserted or deleted between batches.
type Cursor struct {
	s     *Store
	r     Range
	dir   keycodec.Direction
	batch int

	buf  []Record
	pos  int
	last []byte
	done bool
}

// Scan returns a cursor over r in the given direction.
func (s *Store) Scan(r Range, dir keycodec.Direction) *Cursor {
	if dir != keycodec.Descending {
		dir = keycodec.Ascending
	}
	return &Cursor{s: s, r: r, dir: dir, batch: s.opts.batchSize}
}

// Next returns the next record. ok is false once the range is exhausted or
// ctx is done; Err reports the latter.
func (c *Cursor) Next(ctx context.Context) (rec Record, ok bool, err error) {
	if c.pos >= len(c.buf) {
		if c.done {
			return Record{}, false, nil
		}
		if err := ctx.Err(); err != nil {
			return Record{}, false, err
		}
		c.fill()
		if len(c.buf) == 0 {
			c.done = true
			return Record{}, false, nil
		}
	}
	rec = c.buf[c.pos]
	c.pos++
	c.last = rec.Key
	return rec, true, nil
}

// Resume returns the key after which the next batch will start. A cursor
// created with ResumeAfter continues from that point.
func (c *Cursor) Resume() []byte { return c.last }

// ResumeAfter positions the cursor strictly after key.
func (c *Cursor) ResumeAfter(key []byte) *Cursor {
	c.last = key
	c.buf = nil
	c.pos = 0
	c.done = false
	return c
}

func (c *Cursor) fill() {
	c.buf = c.buf[:0]
	c.pos = 0

	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	if c.dir == keycodec.Ascending {
		iter := func(r Record) bool {
			if c.last != nil && bytes.Compare(r.Key, c.last) <= 0 {
				return true
			}
			if !c.r.aboveLow(r.Key) {
				return true
			}
			if !c.r.belowHigh(r.Key) {
				c.done = true
				return false
			}
			c.buf = append(c.buf, r)
			return len(c.buf) < c.batch
		}
		switch {
		case c.last != nil:
			c.s.tree.AscendGreaterOrEqual(Record{Key: c.last}, iter)
		case c.r.Low.Key != nil:
			c.s.tree.AscendGreaterOrEqual(Record{Key: c.r.Low.Key}, iter)
		default:
			c.s.tree.Ascend(iter)
		}
	} else {
		iter := func(r Record) bool {
			if c.last != nil && bytes.Compare(r.Key, c.last) >= 0 {
				return true
			}
			if !c.r.belowHigh(r.Key) {
				return true
			}
			if !c.r.aboveLow(r.Key) {
				c.done = true
				return false
			}
			c.buf = append(c.buf, r)
			return len(c.buf) < c.batch
		}
		switch {
		case c.last != nil:
			c.s.tree.DescendLessOrEqual(Record{Key: c.last}, iter)
		case c.r.High.Key != nil:
			c.s.tree.DescendLessOrEqual(Record{Key: c.r.High.Key}, iter)
		default:
			c.s.tree.Descend(iter)
		}
	}
	if len(c.buf) < c.batch {
		c.done = true
	}
}
