package planner

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/hupe1980/docstore/clustered"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/value"
)

// Stage names used in plans and explain output.
const (
	StageCollScan          = "COLLSCAN"
	StageClusteredIXScan   = "CLUSTERED_IXSCAN"
	StageIXScan            = "IXSCAN"
	StageFetch             = "FETCH"
	StageProjectionCovered = "PROJECTION_COVERED"
	StageProjection        = "PROJECTION_DEFAULT"
	StageUnpackBucket      = "UNPACK_BUCKET"
)

// maxSeekPoints caps the number of point prefixes expanded into separate
// seek spans for compound keys.
const maxSeekPoints = 64

// Catalog is the index set a plan is chosen from. *index.Manager implements it.
type Catalog interface {
	Visible() []index.Handle
	Lookup(ref index.Ref) (index.Handle, error)
	Version() uint64
}

// Request describes a find.
type Request struct {
	Filter     query.Filter
	Projection query.Projection
	Hint       Hint
	// Direction of the scan: 1 (default) or -1.
	Direction int
	Limit     int
}

func (r Request) dir() keycodec.Direction {
	if r.Direction < 0 {
		return keycodec.Descending
	}
	return keycodec.Ascending
}

// Plan is the chosen access path of a query.
type Plan struct {
	Stage      string
	Index      index.Handle
	IndexOnly  bool
	Direction  keycodec.Direction
	Bounds     []query.Bounds // per key component, or one entry for _id
	SeekRanges []index.Span
	KeyRanges  []clustered.Range
	Filter     query.Filter
	Projection query.Projection
	Limit      int
}

// IndexName returns the name of the scanned index, if any.
func (p *Plan) IndexName() string {
	if p.Stage == StageIXScan {
		return p.Index.Name
	}
	return ""
}

// Stages returns the plan stages from the root down.
func (p *Plan) Stages() []string {
	var out []string
	switch {
	case p.IndexOnly && p.Stage == StageIXScan:
		out = append(out, StageProjectionCovered)
	case !p.Projection.IsEmpty():
		out = append(out, StageProjection)
	}
	if p.Stage == StageIXScan && !p.IndexOnly {
		out = append(out, StageFetch)
	}
	return append(out, p.Stage)
}

// build fills the access-path specific parts of a plan.
func build(req Request, stage string, h index.Handle) *Plan {
	p := &Plan{
		Stage:      stage,
		Index:      h,
		Direction:  req.dir(),
		Filter:     req.Filter,
		Projection: req.Projection,
		Limit:      req.Limit,
	}
	switch stage {
	case StageClusteredIXScan:
		b := req.Filter.BoundsFor(value.IDField)
		p.Bounds = []query.Bounds{b}
		p.KeyRanges = clusteredRanges(b)
		p.IndexOnly = idOnly(req)
	case StageIXScan:
		p.Bounds = componentBounds(req.Filter, h.Key)
		p.SeekRanges = seekSpans(p.Bounds, h.Key)
		p.IndexOnly = coverable(req, h.Key)
	}
	return p
}

// componentBounds returns the filter bounds for each key component. Special
// components store derived keys and are never restricted.
func componentBounds(f query.Filter, kp index.KeyPattern) []query.Bounds {
	out := make([]query.Bounds, len(kp))
	for i, kf := range kp {
		if !kf.Coverable() {
			out[i] = query.Bounds{query.FullInterval()}
			continue
		}
		out[i] = f.BoundsFor(kf.Path)
	}
	return out
}

// coverable reports whether the index key alone can evaluate the filter and
// produce the projection. _id counts only when it is a key component.
func coverable(req Request, kp index.KeyPattern) bool {
	if !req.Projection.IsInclusion() {
		return false
	}
	has := func(path string) bool {
		pos := kp.Position(path)
		return pos >= 0 && kp[pos].Coverable()
	}
	for _, path := range req.Projection.Fields() {
		if !has(path) {
			return false
		}
	}
	for _, path := range req.Filter.Paths() {
		if !has(path) {
			return false
		}
	}
	return true
}

// idOnly reports whether a clustered scan needs nothing but the primary key.
func idOnly(req Request) bool {
	if !req.Projection.IsInclusion() {
		return false
	}
	for _, path := range req.Projection.Fields() {
		if path != value.IDField {
			return false
		}
	}
	for _, path := range req.Filter.Paths() {
		if path != value.IDField {
			return false
		}
	}
	return true
}

func clusteredRanges(b query.Bounds) []clustered.Range {
	out := make([]clustered.Range, len(b))
	for i, iv := range b {
		out[i] = clustered.Range{
			Low:  clustered.Bound{Key: iv.Low, Inclusive: iv.LowInc},
			High: clustered.Bound{Key: iv.High, Inclusive: iv.HighInc},
		}
	}
	return out
}

// seekSpans turns per-component bounds into entry-key spans.
//
// Components are appended while every earlier component is a point, which is
// the classic compound seek. The spans are a superset of the matching keys:
// every examined key is still checked against the bounds of each component.
func seekSpans(bounds []query.Bounds, kp index.KeyPattern) []index.Span {
	for _, b := range bounds {
		if len(b) == 0 {
			return nil
		}
	}

	prefixes := [][]byte{nil}
	var spans []index.Span
	for i, b := range bounds {
		dir := kp[i].Dir
		allPoints := true
		for _, iv := range b {
			if !iv.IsPoint() {
				allPoints = false
				break
			}
		}
		last := i == len(bounds)-1
		if allPoints && !last && len(prefixes)*len(b) <= maxSeekPoints {
			next := make([][]byte, 0, len(prefixes)*len(b))
			for _, p := range prefixes {
				for _, iv := range b {
					next = append(next, append(clone(p), edge(iv.Low, dir)...))
				}
			}
			prefixes = next
			continue
		}

		ivs := []query.Interval(b)
		if len(prefixes)*len(b) > maxSeekPoints {
			ivs = []query.Interval{b.Hull()}
		}
		for _, p := range prefixes {
			for _, iv := range ivs {
				start, end := iv.Low, iv.High
				if dir == keycodec.Descending {
					start, end = end, start
				}
				spans = append(spans, index.Span{
					Start: append(clone(p), edge(start, dir)...),
					End:   prefixEnd(append(clone(p), edge(end, dir)...)),
				})
			}
		}
		return normalizeSpans(spans)
	}
	return nil
}

func edge(e []byte, dir keycodec.Direction) []byte {
	out := clone(e)
	if dir == keycodec.Descending {
		keycodec.Invert(out)
	}
	return out
}

func clone(b []byte) []byte {
	out := make([]byte, len(b), len(b)+16)
	copy(out, b)
	return out
}

// prefixEnd returns the smallest key greater than every key starting with p,
// or nil when there is none.
func prefixEnd(p []byte) []byte {
	out := clone(p)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

func normalizeSpans(spans []index.Span) []index.Span {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return bytes.Compare(spans[i].Start, spans[j].Start) < 0 })
	out := []index.Span{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if last.End == nil {
			continue
		}
		if bytes.Compare(s.Start, last.End) <= 0 {
			if s.End == nil || bytes.Compare(s.End, last.End) > 0 {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// String summarizes the plan.
func (p *Plan) String() string {
	if p.Stage == StageIXScan {
		return fmt.Sprintf("%v %s %s", p.Stages(), p.Index.Name, p.Index.Key)
	}
	return fmt.Sprintf("%v", p.Stages())
}
