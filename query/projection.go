package query

import (
	"fmt"
	"strings"

	"github.com/hupe1980/docstore/value"
)

// Projection selects the fields returned by a find.
//
// Inclusion projections ({a: 1, b: 1}) return the listed paths plus _id unless
// _id is excluded. {_id: 1} alone is an inclusion projection returning only
// _id. Exclusion projections ({a: 0}) return everything else. Only inclusion
// projections can be answered from index keys.
type Projection struct {
	fields    []string
	exclusion bool
	excludeID bool
	includeID bool // _id listed explicitly with a true value
}

// ParseProjection converts a projection document. An empty document selects
// whole documents.
func ParseProjection(doc value.Document) (Projection, error) {
	var p Projection
	mode := 0 // 1 include, -1 exclude
	for _, f := range doc {
		if f.Name == "" || strings.HasPrefix(f.Name, "$") {
			return Projection{}, fmt.Errorf("%w: bad field %q", ErrInvalidProjection, f.Name)
		}
		include, err := truthy(f.Value)
		if err != nil {
			return Projection{}, fmt.Errorf("%w: %s: %w", ErrInvalidProjection, f.Name, err)
		}
		if f.Name == value.IDField {
			p.excludeID = !include
			p.includeID = include
			continue
		}
		m := -1
		if include {
			m = 1
		}
		if mode != 0 && mode != m {
			return Projection{}, fmt.Errorf("%w: cannot mix inclusion and exclusion", ErrInvalidProjection)
		}
		mode = m
		p.fields = append(p.fields, f.Name)
	}
	p.exclusion = mode == -1
	if mode == 0 && p.excludeID {
		// {_id: 0} alone excludes only _id.
		p.exclusion = true
	}
	return p, nil
}

func truthy(v value.Value) (bool, error) {
	switch v.Kind {
	case value.KindBool:
		return v.B, nil
	case value.KindInt, value.KindFloat:
		f, _ := v.AsFloat64()
		return f != 0, nil
	default:
		return false, fmt.Errorf("expected 0/1 or boolean, got %s", v.Kind)
	}
}

// IsEmpty reports whether the projection returns whole documents.
func (p Projection) IsEmpty() bool {
	return len(p.fields) == 0 && !p.excludeID && !p.includeID
}

// IsInclusion reports whether the projection lists the fields to return.
func (p Projection) IsInclusion() bool {
	return !p.exclusion && (len(p.fields) > 0 || p.includeID)
}

// IncludesID reports whether _id is part of the output.
func (p Projection) IncludesID() bool { return !p.excludeID }

// Fields returns the paths an inclusion projection needs, including _id when
// it is returned.
func (p Projection) Fields() []string {
	if !p.IsInclusion() {
		return nil
	}
	out := make([]string, 0, len(p.fields)+1)
	if !p.excludeID {
		out = append(out, value.IDField)
	}
	return append(out, p.fields...)
}

// Apply projects a full document.
func (p Projection) Apply(doc value.Document) value.Document {
	switch {
	case p.IsEmpty():
		return doc
	case p.exclusion:
		out := doc.Clone()
		if p.excludeID {
			out = out.Delete(value.IDField)
		}
		for _, f := range p.fields {
			out = deletePath(out, f)
		}
		return out
	default:
		return p.ApplyGetter(doc.Lookup)
	}
}

// ApplyGetter builds the output of an inclusion projection from a field
// resolver. Covered plans resolve fields from index keys.
func (p Projection) ApplyGetter(get Getter) value.Document {
	var out value.Document
	for _, path := range p.Fields() {
		v, ok := get(path)
		if !ok {
			continue
		}
		out = out.SetPath(path, v.Clone())
	}
	if out == nil {
		out = value.Document{}
	}
	return out
}

func deletePath(d value.Document, path string) value.Document {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return d.Delete(head)
	}
	child, ok := d.Get(head)
	if !ok || child.Kind != value.KindDocument {
		return d
	}
	return d.Set(head, value.Doc(deletePath(child.D, rest)))
}

// String renders the projection.
func (p Projection) String() string {
	var parts []string
	switch {
	case p.excludeID:
		parts = append(parts, "_id: 0")
	case p.includeID:
		parts = append(parts, "_id: 1")
	}
	n := "1"
	if p.exclusion {
		n = "0"
	}
	for _, f := range p.fields {
		parts = append(parts, f+": "+n)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
