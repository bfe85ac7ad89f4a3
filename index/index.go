package index

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/btree"

	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/value"
)

// Entry is a secondary index entry: a key tuple and a reference to the
// primary key of the record. Entries never hold a copy of the record.
//
// Tuple holds the raw field values in pattern order; a missing field is the
// zero Value and is keyed as null.
type Entry struct {
	Key   []byte
	Tuple []value.Value
	PK    value.Value
}

func lessEntry(a, b Entry) bool { return bytes.Compare(a.Key, b.Key) < 0 }

// Span is a range over entry keys: Start is inclusive, End exclusive.
// A nil End means unbounded.
type Span struct {
	Start []byte
	End   []byte
}

// Index holds the ordered entries of one descriptor.
type Index struct {
	key    KeyPattern
	dirs   []keycodec.Direction
	sparse bool
	unique bool

	mu   sync.RWMutex
	tree *btree.BTreeG[Entry]

	// mirrorErr records a unique violation seen while mirroring writes into a
	// building index. The build fails when it is set.
	mirrorErr error
}

func newIndex(d Descriptor) *Index {
	return &Index{
		key:    d.Key,
		dirs:   d.Key.Directions(),
		sparse: d.Sparse,
		unique: d.Unique,
		tree:   btree.NewG(32, lessEntry),
	}
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Len()
}

// KeyPattern returns the index key pattern.
func (ix *Index) KeyPattern() KeyPattern { return ix.key }

// Tuple computes the key tuple of doc. ok is false when the document is not
// indexed: sparse indexes skip documents missing every indexed field, and geo
// indexes skip documents missing every geo field.
func (ix *Index) Tuple(doc value.Document) (tuple []value.Value, ok bool) {
	tuple = make([]value.Value, len(ix.key))
	anyPresent, geoPresent := false, false
	for i, f := range ix.key {
		v, present := doc.Lookup(f.Path)
		if !present {
			continue
		}
		anyPresent = true
		if f.IsGeo() {
			geoPresent = true
		}
		if f.Special == SpecialHashed {
			v = value.Int(int64(xxhash.Sum64(keycodec.Encode(v))))
		}
		tuple[i] = v
	}
	if ix.sparse && !anyPresent {
		return nil, false
	}
	if ix.key.HasGeo() && !geoPresent {
		return nil, false
	}
	return tuple, true
}

func (ix *Index) entry(doc value.Document) (Entry, bool, error) {
	tuple, ok := ix.Tuple(doc)
	if !ok {
		return Entry{}, false, nil
	}
	pk, present := doc.ID()
	if !present {
		return Entry{}, false, fmt.Errorf("document has no _id")
	}
	key := keycodec.EncodeTuple(tuple, ix.dirs)
	key = keycodec.Append(key, pk)
	return Entry{Key: key, Tuple: tuple, PK: pk}, true, nil
}

// tupleLen returns the length of the tuple prefix of an entry key.
func tupleLen(e Entry) int {
	return len(e.Key) - len(keycodec.Encode(e.PK))
}

// conflictLocked returns the primary key of another record with the same key
// tuple, if any.
func (ix *Index) conflictLocked(e Entry) (value.Value, bool) {
	prefix := e.Key[:tupleLen(e)]
	var other value.Value
	found := false
	ix.tree.AscendGreaterOrEqual(Entry{Key: prefix}, func(cur Entry) bool {
		if !bytes.HasPrefix(cur.Key, prefix) {
			return false
		}
		if bytes.Equal(cur.Key, e.Key) {
			return true
		}
		other, found = cur.PK, true
		return false
	})
	return other, found
}

// duplicateError reports a unique violation. Missing components key as null.
func (ix *Index) duplicateError(e Entry, other value.Value) error {
	tuple := make([]value.Value, len(e.Tuple))
	for i, v := range e.Tuple {
		if v.IsMissing() {
			v = value.Null()
		}
		tuple[i] = v
	}
	return fmt.Errorf("%w: %s dup key %s (existing _id %s)",
		ErrDuplicateKey, ix.key.DefaultName(), value.Array(tuple...), other)
}

// change is a planned modification of one index.
type change struct {
	ix       *Index
	del, add *Entry
}

// plan computes the entries to remove and add for a write without modifying
// the index. Unique violations are returned here so that a write touching
// several indexes can fail before any of them changes.
func (ix *Index) plan(old, new value.Document, building bool) (change, error) {
	c := change{ix: ix}
	if old != nil {
		e, ok, err := ix.entry(old)
		if err != nil {
			return change{}, err
		}
		if ok {
			c.del = &e
		}
	}
	if new != nil {
		e, ok, err := ix.entry(new)
		if err != nil {
			return change{}, err
		}
		if ok {
			c.add = &e
		}
	}
	if c.del != nil && c.add != nil && bytes.Equal(c.del.Key, c.add.Key) {
		// Index key unchanged: only refresh the stored tuple.
		c.del = nil
	}
	if c.add != nil && ix.unique {
		ix.mu.RLock()
		other, dup := ix.conflictLocked(*c.add)
		ix.mu.RUnlock()
		if dup {
			err := ix.duplicateError(*c.add, other)
			if !building {
				return change{}, err
			}
			ix.mu.Lock()
			if ix.mirrorErr == nil {
				ix.mirrorErr = err
			}
			ix.mu.Unlock()
		}
	}
	return c, nil
}

func (c change) apply() {
	if c.del == nil && c.add == nil {
		return
	}
	c.ix.mu.Lock()
	defer c.ix.mu.Unlock()
	if c.del != nil {
		c.ix.tree.Delete(*c.del)
	}
	if c.add != nil {
		c.ix.tree.ReplaceOrInsert(*c.add)
	}
}

// add indexes a document during backfill. Re-adding an existing entry is a
// no-op, so documents mirrored by concurrent writes may be visited again.
func (ix *Index) add(doc value.Document) error {
	c, err := ix.plan(nil, doc, false)
	if err != nil {
		return err
	}
	c.apply()
	return nil
}

// Seek calls fn for the entries inside each span, in ascending key order or,
// when reverse is set, descending order with the spans visited last to first.
// fn returns false to stop.
func (ix *Index) Seek(spans []Span, reverse bool, fn func(Entry) bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !reverse {
		for _, s := range spans {
			cont := true
			iter := func(e Entry) bool {
				cont = fn(e)
				return cont
			}
			if s.End == nil {
				ix.tree.AscendGreaterOrEqual(Entry{Key: s.Start}, iter)
			} else {
				ix.tree.AscendRange(Entry{Key: s.Start}, Entry{Key: s.End}, iter)
			}
			if !cont {
				return
			}
		}
		return
	}

	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		cont := true
		iter := func(e Entry) bool {
			if bytes.Compare(e.Key, s.Start) < 0 {
				return false
			}
			if s.End != nil && bytes.Compare(e.Key, s.End) >= 0 {
				return true
			}
			cont = fn(e)
			return cont
		}
		if s.End == nil {
			ix.tree.Descend(iter)
		} else {
			ix.tree.DescendLessOrEqual(Entry{Key: s.End}, iter)
		}
		if !cont {
			return
		}
	}
}

// Ascend calls fn for every entry in key order.
func (ix *Index) Ascend(fn func(Entry) bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ix.tree.Ascend(fn)
}
