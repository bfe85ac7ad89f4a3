package planner

import (
	"bytes"
	"context"
	"errors"

	"github.com/hupe1980/docstore/clustered"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/value"
)

// execBatch is the number of index entries read per index lock acquisition.
// Records are fetched after the lock is released.
const execBatch = 128

// Records is the clustered record set a plan executes against.
// *clustered.Store implements it.
type Records interface {
	Get(id value.Value) (value.Document, error)
	Scan(r clustered.Range, dir keycodec.Direction) *clustered.Cursor
}

// Stats are execution counters.
type Stats struct {
	NReturned    int
	KeysExamined int
	DocsExamined int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.NReturned += o.NReturned
	s.KeysExamined += o.KeysExamined
	s.DocsExamined += o.DocsExamined
}

// Execute runs a plan and returns the projected documents.
func Execute(ctx context.Context, p *Plan, recs Records) ([]value.Document, Stats, error) {
	e := executor{plan: p, recs: recs}
	var err error
	switch p.Stage {
	case StageIXScan:
		err = e.indexScan(ctx)
	case StageClusteredIXScan:
		err = e.clusteredScan(ctx, p.KeyRanges)
	default:
		err = e.clusteredScan(ctx, []clustered.Range{clustered.All})
	}
	if err != nil {
		return nil, e.stats, err
	}
	return e.out, e.stats, nil
}

type executor struct {
	plan  *Plan
	recs  Records
	out   []value.Document
	stats Stats
}

// emit appends a result and reports whether the limit is reached.
func (e *executor) emit(doc value.Document) bool {
	e.out = append(e.out, doc)
	e.stats.NReturned++
	return e.plan.Limit > 0 && len(e.out) >= e.plan.Limit
}

func (e *executor) project(doc value.Document) value.Document {
	if e.plan.Projection.IsEmpty() {
		return doc.Clone()
	}
	return e.plan.Projection.Apply(doc)
}

func (e *executor) clusteredScan(ctx context.Context, ranges []clustered.Range) error {
	order := ranges
	if e.plan.Direction == keycodec.Descending {
		order = make([]clustered.Range, len(ranges))
		for i := range ranges {
			order[len(ranges)-1-i] = ranges[i]
		}
	}
	idOnly := e.plan.IndexOnly && e.plan.Stage == StageClusteredIXScan

	for _, r := range order {
		cur := e.recs.Scan(r, e.plan.Direction)
		for {
			rec, ok, err := cur.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if idOnly {
				e.stats.KeysExamined++
				get := idGetter(rec.ID)
				if !e.plan.Filter.Matches(get) {
					continue
				}
				if e.emit(e.plan.Projection.ApplyGetter(get)) {
					return nil
				}
				continue
			}
			if e.plan.Stage == StageClusteredIXScan {
				e.stats.KeysExamined++
			}
			e.stats.DocsExamined++
			if !e.plan.Filter.MatchesDocument(rec.Doc) {
				continue
			}
			if e.emit(e.project(rec.Doc)) {
				return nil
			}
		}
	}
	return nil
}

func (e *executor) indexScan(ctx context.Context) error {
	ix := e.plan.Index.Index()
	kp := e.plan.Index.Key
	reverse := e.plan.Direction == keycodec.Descending
	spans := append([]index.Span(nil), e.plan.SeekRanges...)

	for len(spans) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := make([]index.Entry, 0, execBatch)
		ix.Seek(spans, reverse, func(ent index.Entry) bool {
			batch = append(batch, ent)
			return len(batch) < execBatch
		})
		if len(batch) == 0 {
			return nil
		}

		for _, ent := range batch {
			e.stats.KeysExamined++
			if !e.inBounds(ent) {
				continue
			}
			if e.plan.IndexOnly {
				get := entryGetter(kp, ent)
				if !e.plan.Filter.Matches(get) {
					continue
				}
				if e.emit(e.plan.Projection.ApplyGetter(get)) {
					return nil
				}
				continue
			}

			doc, err := e.recs.Get(ent.PK)
			if err != nil {
				if errors.Is(err, clustered.ErrNotFound) {
					// Deleted after the batch was read.
					continue
				}
				return err
			}
			e.stats.DocsExamined++
			if !e.plan.Filter.MatchesDocument(doc) {
				continue
			}
			if e.emit(e.project(doc)) {
				return nil
			}
		}

		if len(batch) < execBatch {
			return nil
		}
		spans = resume(spans, batch[len(batch)-1].Key, reverse)
	}
	return nil
}

// inBounds checks every key component against its bounds.
func (e *executor) inBounds(ent index.Entry) bool {
	for i, b := range e.plan.Bounds {
		if b.IsFull() {
			continue
		}
		if !b.Contains(keycodec.Encode(ent.Tuple[i])) {
			return false
		}
	}
	return true
}

// resume trims spans to the keys not yet visited after last.
func resume(spans []index.Span, last []byte, reverse bool) []index.Span {
	var out []index.Span
	if !reverse {
		next := append(append([]byte(nil), last...), 0x00)
		for _, s := range spans {
			if s.End != nil && bytes.Compare(s.End, next) <= 0 {
				continue
			}
			if bytes.Compare(s.Start, next) < 0 {
				s.Start = next
			}
			out = append(out, s)
		}
		return out
	}
	for _, s := range spans {
		if bytes.Compare(s.Start, last) >= 0 {
			continue
		}
		if s.End == nil || bytes.Compare(s.End, last) > 0 {
			s.End = last
		}
		out = append(out, s)
	}
	return out
}

func idGetter(id value.Value) query.Getter {
	return func(path string) (value.Value, bool) {
		if path == value.IDField {
			return id, true
		}
		return value.Value{}, false
	}
}

// entryGetter resolves fields from an index entry. Missing fields were keyed
// as null but are reported as absent.
func entryGetter(kp index.KeyPattern, ent index.Entry) query.Getter {
	return func(path string) (value.Value, bool) {
		if path == value.IDField {
			return ent.PK, true
		}
		pos := kp.Position(path)
		if pos < 0 || ent.Tuple[pos].IsMissing() {
			return value.Value{}, false
		}
		return ent.Tuple[pos], true
	}
}
