package index

import (
	"github.com/hupe1980/docstore/value"
)

// State is the lifecycle state of an index.
type State uint8

const (
	// StateBuilding indexes receive writes but are not visible to queries.
	StateBuilding State = iota
	// StateReady indexes are published.
	StateReady
)

// String returns the state name.
func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "building"
}

// Descriptor describes an index.
type Descriptor struct {
	Name   string
	Key    KeyPattern
	Sparse bool
	Hidden bool
	Unique bool
	State  State
}

// NewDescriptor combines a key pattern with options, filling the default name.
func NewDescriptor(key KeyPattern, opts Options) Descriptor {
	name := opts.Name
	if name == "" {
		name = key.DefaultName()
	}
	return Descriptor{
		Name:   name,
		Key:    key,
		Sparse: opts.Sparse,
		Hidden: opts.Hidden,
		Unique: opts.Unique,
	}
}

// Options returns the user options of the descriptor.
func (d Descriptor) Options() Options {
	return Options{Name: d.Name, Sparse: d.Sparse, Hidden: d.Hidden, Unique: d.Unique}
}

// sameSpec reports whether two descriptors would build the same index.
// Hidden is a runtime toggle and does not change what is built.
func (d Descriptor) sameSpec(o Descriptor) bool {
	return d.Name == o.Name && d.Key.Equal(o.Key) && d.Sparse == o.Sparse && d.Unique == o.Unique
}

// Spec renders the descriptor like listIndexes does.
func (d Descriptor) Spec() value.Document {
	doc := value.D("v", 2, "key", d.Key.Document(), "name", d.Name)
	if d.Sparse {
		doc = append(doc, value.Field{Name: "sparse", Value: value.Bool(true)})
	}
	if d.Hidden {
		doc = append(doc, value.Field{Name: "hidden", Value: value.Bool(true)})
	}
	if d.Unique {
		doc = append(doc, value.Field{Name: "unique", Value: value.Bool(true)})
	}
	return doc
}

// Ref identifies an index by name or by key pattern.
type Ref struct {
	name  string
	key   KeyPattern
	byKey bool
}

// ByName refers to an index by its name.
func ByName(name string) Ref { return Ref{name: name} }

// ByKey refers to an index by exact key pattern equality.
func ByKey(kp KeyPattern) Ref { return Ref{key: kp, byKey: true} }

// IsKey reports whether the reference is by key pattern.
func (r Ref) IsKey() bool { return r.byKey }

// Name returns the referenced name. Empty for key references.
func (r Ref) Name() string { return r.name }

// Key returns the referenced key pattern. Nil for name references.
func (r Ref) Key() KeyPattern { return r.key }

// Matches reports whether d is the referenced index.
func (r Ref) Matches(d Descriptor) bool {
	if r.byKey {
		return d.Key.Equal(r.key)
	}
	return d.Name == r.name
}

// String renders the reference for error messages.
func (r Ref) String() string {
	if r.byKey {
		return r.key.String()
	}
	return r.name
}
