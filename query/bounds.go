package query

import (
	"bytes"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/value"
)

// Interval is a range over ascending keycodec encodings.
type Interval struct {
	Low     []byte
	LowInc  bool
	High    []byte
	HighInc bool
}

// FullInterval covers every value from MinKey to MaxKey.
func FullInterval() Interval {
	return Interval{Low: keycodec.MinEncoding, LowInc: true, High: keycodec.MaxEncoding, HighInc: true}
}

// Point returns the single-value interval [v, v].
func Point(v value.Value) Interval {
	e := keycodec.Encode(v)
	return Interval{Low: e, LowInc: true, High: e, HighInc: true}
}

// Contains reports whether the ascending encoding enc lies in the interval.
func (iv Interval) Contains(enc []byte) bool {
	c := bytes.Compare(enc, iv.Low)
	if c < 0 || (c == 0 && !iv.LowInc) {
		return false
	}
	c = bytes.Compare(enc, iv.High)
	return c < 0 || (c == 0 && iv.HighInc)
}

// IsEmpty reports whether no encoding can lie in the interval.
func (iv Interval) IsEmpty() bool {
	c := bytes.Compare(iv.Low, iv.High)
	return c > 0 || (c == 0 && !(iv.LowInc && iv.HighInc))
}

// IsPoint reports whether the interval holds exactly one value.
func (iv Interval) IsPoint() bool {
	return iv.LowInc && iv.HighInc && bytes.Equal(iv.Low, iv.High)
}

func (iv Interval) intersect(o Interval) Interval {
	out := iv
	if c := bytes.Compare(o.Low, iv.Low); c > 0 || (c == 0 && !o.LowInc) {
		out.Low, out.LowInc = o.Low, o.LowInc
	}
	if c := bytes.Compare(o.High, iv.High); c < 0 || (c == 0 && !o.HighInc) {
		out.High, out.HighInc = o.High, o.HighInc
	}
	return out
}

// Bounds is an ordered union of disjoint intervals for one field path.
// An empty Bounds matches nothing.
type Bounds []Interval

// Contains reports whether enc lies in any interval.
func (b Bounds) Contains(enc []byte) bool {
	for _, iv := range b {
		if iv.Contains(enc) {
			return true
		}
	}
	return false
}

// IsFull reports whether the bounds do not restrict the field.
func (b Bounds) IsFull() bool {
	return len(b) == 1 && bytes.Equal(b[0].Low, keycodec.MinEncoding) && b[0].LowInc &&
		bytes.Equal(b[0].High, keycodec.MaxEncoding) && b[0].HighInc
}

// Hull returns the smallest single interval containing all of b.
func (b Bounds) Hull() Interval {
	if len(b) == 0 {
		return Interval{Low: keycodec.MaxEncoding, High: keycodec.MinEncoding}
	}
	return Interval{Low: b[0].Low, LowInc: b[0].LowInc, High: b[len(b)-1].High, HighInc: b[len(b)-1].HighInc}
}

// String renders the bounds for explain output.
func (b Bounds) String() string {
	parts := make([]string, len(b))
	for i, iv := range b {
		var sb strings.Builder
		if iv.LowInc {
			sb.WriteByte('[')
		} else {
			sb.WriteByte('(')
		}
		sb.WriteString(formatEdge(iv.Low))
		sb.WriteString(", ")
		sb.WriteString(formatEdge(iv.High))
		if iv.HighInc {
			sb.WriteByte(']')
		} else {
			sb.WriteByte(')')
		}
		parts[i] = sb.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatEdge(e []byte) string {
	if len(e) == 1 {
		return "class:" + hex.EncodeToString(e)
	}
	return "0x" + hex.EncodeToString(e)
}

// BoundsFor computes the bounds the filter imposes on path. Predicates that
// cannot be expressed as intervals ($ne, $nin, $exists:true) leave the field
// unrestricted and are checked after the seek.
func (f Filter) BoundsFor(path string) Bounds {
	out := Bounds{FullInterval()}
	for _, p := range f.Preds {
		if p.Path != path {
			continue
		}
		out = out.intersect(p.bounds())
		if len(out) == 0 {
			return out
		}
	}
	return out
}

func (p Predicate) bounds() Bounds {
	switch p.Op {
	case OpEq:
		return Bounds{Point(p.Value)}
	case OpIn:
		ivs := make(Bounds, 0, len(p.Values))
		for _, v := range p.Values {
			ivs = append(ivs, Point(v))
		}
		return ivs.normalize()
	case OpGt, OpGte, OpLt, OpLte:
		if isNullish(p.Value) {
			if p.Op == OpGte || p.Op == OpLte {
				return Bounds{Point(value.Null())}
			}
			return Bounds{}
		}
		e := keycodec.Encode(p.Value)
		lo, hi := keycodec.ClassBounds(p.Value)
		switch p.Op {
		case OpGt:
			return Bounds{{Low: e, LowInc: false, High: hi, HighInc: false}}
		case OpGte:
			return Bounds{{Low: e, LowInc: true, High: hi, HighInc: false}}
		case OpLt:
			return Bounds{{Low: lo, LowInc: true, High: e, HighInc: false}}
		default:
			return Bounds{{Low: lo, LowInc: true, High: e, HighInc: true}}
		}
	case OpExists:
		if !p.Value.B {
			// Missing fields are keyed as null.
			return Bounds{Point(value.Null())}
		}
	}
	return Bounds{FullInterval()}
}

func (b Bounds) intersect(o Bounds) Bounds {
	var out Bounds
	for _, x := range b {
		for _, y := range o {
			iv := x.intersect(y)
			if !iv.IsEmpty() {
				out = append(out, iv)
			}
		}
	}
	return out.normalize()
}

// normalize sorts intervals and merges overlapping ones.
func (b Bounds) normalize() Bounds {
	if len(b) < 2 {
		return b
	}
	sort.Slice(b, func(i, j int) bool {
		c := bytes.Compare(b[i].Low, b[j].Low)
		if c != 0 {
			return c < 0
		}
		return b[i].LowInc && !b[j].LowInc
	})
	out := Bounds{b[0]}
	for _, iv := range b[1:] {
		last := &out[len(out)-1]
		c := bytes.Compare(iv.Low, last.High)
		if c < 0 || (c == 0 && (iv.LowInc || last.HighInc)) {
			if h := bytes.Compare(iv.High, last.High); h > 0 || (h == 0 && iv.HighInc) {
				last.High, last.HighInc = iv.High, iv.HighInc
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
