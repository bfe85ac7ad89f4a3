package planner

import (
	"fmt"
	"sort"

	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/value"
)

// Planner chooses access paths.
type Planner struct {
	cache *Cache
}

// Option configures a Planner.
type Option func(*Planner)

// WithCache sets the plan cache. A nil cache disables caching.
func WithCache(c *Cache) Option {
	return func(p *Planner) { p.cache = c }
}

// New creates a planner with a default-sized cache.
func New(optFns ...Option) *Planner {
	p := &Planner{cache: NewCache(DefaultCacheSize)}
	for _, fn := range optFns {
		fn(p)
	}
	return p
}

// Cache returns the plan cache, which may be nil.
func (p *Planner) Cache() *Cache { return p.cache }

// Plan chooses the access path for req.
//
// A hint is honoured exactly: a hidden or unknown index fails with ErrBadHint
// and a hinted sparse or geo index returns only the documents it holds.
// Without a hint, _id predicates use the clustered key, otherwise the best
// visible index whose leading component is restricted by the filter is used,
// falling back to a collection scan.
func (p *Planner) Plan(cat Catalog, req Request) (*Plan, error) {
	if !req.Hint.IsZero() {
		return planHinted(cat, req)
	}

	key := shapeKey(req)
	version := cat.Version()
	if ch, ok := p.cache.get(key, version); ok {
		if plan, ok := fromCache(cat, req, ch); ok {
			return plan, nil
		}
	}

	plan := choose(cat, req)
	p.cache.put(key, cachedChoice{version: version, stage: plan.Stage, index: plan.IndexName()})
	return plan, nil
}

func planHinted(cat Catalog, req Request) (*Plan, error) {
	if req.Hint.IsNatural() {
		req.Direction = req.Hint.Natural()
		return build(req, StageCollScan, index.Handle{}), nil
	}
	h, err := cat.Lookup(req.Hint.Ref())
	if err != nil {
		return nil, fmt.Errorf("%w: hint provided does not correspond to an existing index: %s", ErrBadHint, req.Hint)
	}
	if h.Hidden {
		return nil, fmt.Errorf("%w: hint provided does not correspond to an existing index: %s is hidden", ErrBadHint, req.Hint)
	}
	return build(req, StageIXScan, h), nil
}

func fromCache(cat Catalog, req Request, ch cachedChoice) (*Plan, bool) {
	switch ch.stage {
	case StageCollScan:
		return build(req, ch.stage, index.Handle{}), true
	case StageClusteredIXScan:
		if req.Filter.BoundsFor(value.IDField).IsFull() {
			return nil, false
		}
		return build(req, ch.stage, index.Handle{}), true
	case StageIXScan:
		h, err := cat.Lookup(index.ByName(ch.index))
		if err != nil || h.Hidden {
			return nil, false
		}
		// Operands can change eligibility within a shape, e.g. {a: null}
		// on a sparse index.
		if _, ok := score(req, h); !ok {
			return nil, false
		}
		return build(req, StageIXScan, h), true
	}
	return nil, false
}

type candidate struct {
	h         index.Handle
	prefix    int // leading components restricted by the filter
	points    int // leading components restricted to points
	indexOnly bool
}

func choose(cat Catalog, req Request) *Plan {
	if !req.Filter.BoundsFor(value.IDField).IsFull() {
		return build(req, StageClusteredIXScan, index.Handle{})
	}

	var cands []candidate
	for _, h := range cat.Visible() {
		c, ok := score(req, h)
		if ok {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return build(req, StageCollScan, index.Handle{})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.indexOnly != b.indexOnly {
			return a.indexOnly
		}
		if a.points != b.points {
			return a.points > b.points
		}
		if a.prefix != b.prefix {
			return a.prefix > b.prefix
		}
		if len(a.h.Key) != len(b.h.Key) {
			return len(a.h.Key) < len(b.h.Key)
		}
		return a.h.Name < b.h.Name
	})
	return build(req, StageIXScan, cands[0].h)
}

// score rates an index for req. Indexes with special components are only
// used when hinted. Sparse indexes are only used when the filter excludes
// documents that lack every indexed field.
func score(req Request, h index.Handle) (candidate, bool) {
	for _, kf := range h.Key {
		if !kf.Coverable() {
			return candidate{}, false
		}
	}

	c := candidate{h: h}
	for _, kf := range h.Key {
		b := req.Filter.BoundsFor(kf.Path)
		if b.IsFull() {
			break
		}
		c.prefix++
		if c.points == c.prefix-1 && allPoints(b) {
			c.points++
		}
	}
	if c.prefix == 0 {
		return candidate{}, false
	}
	if h.Sparse {
		nullKey := keycodec.Encode(value.Null())
		excludesMissing := false
		for _, kf := range h.Key {
			if !req.Filter.BoundsFor(kf.Path).Contains(nullKey) {
				excludesMissing = true
				break
			}
		}
		if !excludesMissing {
			return candidate{}, false
		}
	}
	c.indexOnly = coverable(req, h.Key)
	return c, true
}

func allPoints(b query.Bounds) bool {
	for _, iv := range b {
		if !iv.IsPoint() {
			return false
		}
	}
	return len(b) > 0
}
