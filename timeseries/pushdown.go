package timeseries

import (
	"github.com/hupe1980/docstore/query"
)

// BucketFilter derives a filter over bucket documents that selects every
// bucket which may hold an event matching f. Meta predicates are renamed,
// time comparisons become control.min/control.max bounds and all other
// predicates are left to the event filter applied after unpacking.
func (s *Schema) BucketFilter(f query.Filter) query.Filter {
	var out query.Filter
	for _, p := range f.Preds {
		switch s.Classify(p.Path) {
		case Meta:
			p.Path = s.metaPath(p.Path)
			out.Preds = append(out.Preds, p)
		case Time:
			out.Preds = append(out.Preds, s.timeBounds(p)...)
		}
	}
	return out
}

func (s *Schema) timeBounds(p query.Predicate) []query.Predicate {
	lo := func(op query.Op) query.Predicate { return query.Predicate{Path: s.minTime, Op: op, Value: p.Value} }
	hi := func(op query.Op) query.Predicate { return query.Predicate{Path: s.maxTime, Op: op, Value: p.Value} }
	switch p.Op {
	case query.OpGt:
		return []query.Predicate{hi(query.OpGt)}
	case query.OpGte:
		return []query.Predicate{hi(query.OpGte)}
	case query.OpLt:
		return []query.Predicate{lo(query.OpLt)}
	case query.OpLte:
		return []query.Predicate{lo(query.OpLte)}
	case query.OpEq:
		return []query.Predicate{lo(query.OpLte), hi(query.OpGte)}
	}
	return nil
}
