package clustered

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/value"
)

var (
	// ErrDuplicateKey is returned when inserting a record whose primary key exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound is returned when a primary key does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrImmutableKey is returned when an update changes the primary key.
	ErrImmutableKey = errors.New("primary key is immutable")
	// ErrMissingID is returned when a record has no primary key.
	ErrMissingID = errors.New("record has no _id")
	// ErrInvalidID is returned when the primary key has an unsupported kind.
	ErrInvalidID = errors.New("invalid _id")
)

// Hook is invoked under the store write lock after a mutation has been
// validated and before it becomes visible. old is nil for inserts and new is
// nil for deletes. A non-nil error aborts the mutation.
//
// Secondary index maintenance runs here so that a record and its index
// entries change as one unit.
type Hook func(old, new value.Document) error

// Record is a stored document together with its primary key.
// Doc must not be modified by callers.
type Record struct {
	Key []byte
	ID  value.Value
	Doc value.Document
}

func lessRecord(a, b Record) bool { return bytes.Compare(a.Key, b.Key) < 0 }

// Store keeps records ordered by the encoding of their primary key.
//
// There is no separate primary key index: the btree holding the records is
// the only structure, so a lookup by _id is a single tree search.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[Record]
	opts options
}

type options struct {
	degree    int
	batchSize int
}

// Option configures a Store.
type Option func(*options)

// WithDegree sets the btree degree.
func WithDegree(d int) Option {
	return func(o *options) {
		if d >= 2 {
			o.degree = d
		}
	}
}

// WithBatchSize sets the default number of records a cursor reads per batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// New creates an empty store.
func New(optFns ...Option) *Store {
	o := options{degree: 32, batchSize: 128}
	for _, fn := range optFns {
		fn(&o)
	}
	return &Store{
		tree: btree.NewG(o.degree, lessRecord),
		opts: o,
	}
}

// EncodeID returns the clustered key of a primary key value.
func EncodeID(id value.Value) ([]byte, error) {
	switch id.Kind {
	case value.KindInvalid:
		return nil, ErrMissingID
	case value.KindArray:
		return nil, fmt.Errorf("%w: arrays are not allowed as _id", ErrInvalidID)
	}
	return keycodec.Encode(id), nil
}

func recordOf(doc value.Document) (Record, error) {
	id, ok := doc.ID()
	if !ok {
		return Record{}, ErrMissingID
	}
	key, err := EncodeID(id)
	if err != nil {
		return Record{}, err
	}
	return Record{Key: key, ID: id, Doc: doc}, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Insert adds a new record. The document is copied.
func (s *Store) Insert(doc value.Document, hook Hook) error {
	rec, err := recordOf(doc.Clone())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tree.Has(rec) {
		return fmt.Errorf("%w: _id %s", ErrDuplicateKey, rec.ID)
	}
	if hook != nil {
		if err := hook(nil, rec.Doc); err != nil {
			return err
		}
	}
	s.tree.ReplaceOrInsert(rec)
	return nil
}

// Get returns a copy of the record with the given primary key.
func (s *Store) Get(id value.Value) (value.Document, error) {
	key, err := EncodeID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tree.Get(Record{Key: key})
	if !ok {
		return nil, fmt.Errorf("%w: _id %s", ErrNotFound, id)
	}
	return rec.Doc.Clone(), nil
}

// Mutator computes the replacement of a record. It receives a private copy.
type Mutator func(doc value.Document) (value.Document, error)

// Update replaces the record with the given primary key by the result of
// mutate. Changing _id fails with ErrImmutableKey and leaves the record
// untouched. It returns the new document.
func (s *Store) Update(id value.Value, mutate Mutator, hook Hook) (value.Document, error) {
	key, err := EncodeID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tree.Get(Record{Key: key})
	if !ok {
		return nil, fmt.Errorf("%w: _id %s", ErrNotFound, id)
	}

	next, err := mutate(old.Doc.Clone())
	if err != nil {
		return nil, err
	}
	rec, err := recordOf(next)
	if err != nil {
		if errors.Is(err, ErrMissingID) {
			return nil, fmt.Errorf("%w: _id was removed", ErrImmutableKey)
		}
		return nil, err
	}
	if !bytes.Equal(rec.Key, old.Key) || rec.ID.Kind != old.ID.Kind {
		return nil, fmt.Errorf("%w: _id %s would change to %s", ErrImmutableKey, old.ID, rec.ID)
	}

	if hook != nil {
		if err := hook(old.Doc, rec.Doc); err != nil {
			return nil, err
		}
	}
	s.tree.ReplaceOrInsert(rec)
	return rec.Doc.Clone(), nil
}

// Delete removes the record with the given primary key and returns it.
func (s *Store) Delete(id value.Value, hook Hook) (value.Document, error) {
	key, err := EncodeID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tree.Get(Record{Key: key})
	if !ok {
		return nil, fmt.Errorf("%w: _id %s", ErrNotFound, id)
	}
	if hook != nil {
		if err := hook(old.Doc, nil); err != nil {
			return nil, err
		}
	}
	s.tree.Delete(old)
	return old.Doc, nil
}

// Ascend calls fn for every record in key order while holding the read lock.
// fn must not call back into the store.
func (s *Store) Ascend(fn func(Record) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.Ascend(fn)
}

// ScanBatch calls fn for up to n records whose key is strictly greater than
// after (nil starts at the beginning) and returns the key of the last record
// visited. done is true once the end of the store is reached.
//
// The read lock is held for the whole batch, so writers are excluded while fn
// runs and resume between batches. Index builds use this to backfill.
func (s *Store) ScanBatch(after []byte, n int, fn func(Record) error) (last []byte, done bool, err error) {
	if n <= 0 {
		n = s.opts.batchSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	last = after
	visited := 0
	done = true
	iter := func(r Record) bool {
		if after != nil && bytes.Equal(r.Key, after) {
			return true
		}
		if visited == n {
			done = false
			return false
		}
		if err = fn(r); err != nil {
			return false
		}
		visited++
		last = r.Key
		return true
	}
	if after == nil {
		s.tree.Ascend(iter)
	} else {
		s.tree.AscendGreaterOrEqual(Record{Key: after}, iter)
	}
	if err != nil {
		return nil, false, err
	}
	return last, done, nil
}
