package value

import (
	"strconv"
	"strings"
)

// IDField is the primary key field name.
const IDField = "_id"

// Field is a single named value inside a Document.
type Field struct {
	Name  string
	Value Value
}

// Document is an ordered list of fields.
//
// Field order is significant: key patterns and projections rely on it.
type Document []Field

// D builds a Document from alternating name/value pairs.
//
//	value.D("a", value.Int(1), "b", value.String("x"))
//
// It panics on malformed input and is intended for literals.
func D(pairs ...any) Document {
	if len(pairs)%2 != 0 {
		panic("value.D: odd number of arguments")
	}
	d := make(Document, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic("value.D: field name must be a string")
		}
		v, err := FromAny(pairs[i+1])
		if err != nil {
			panic(err)
		}
		d = append(d, Field{Name: name, Value: v})
	}
	return d
}

// Get returns the value of a top-level field.
func (d Document) Get(name string) (Value, bool) {
	for i := range d {
		if d[i].Name == name {
			return d[i].Value, true
		}
	}
	return Value{}, false
}

// Has reports whether a top-level field exists.
func (d Document) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// ID returns the primary key.
func (d Document) ID() (Value, bool) { return d.Get(IDField) }

// Lookup resolves a dotted path ("a.b.c"). Numeric path segments index into arrays.
func (d Document) Lookup(path string) (Value, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := d.Get(head)
	if !ok {
		return Value{}, false
	}
	if !nested {
		return v, true
	}
	return v.lookup(rest)
}

func (v Value) lookup(path string) (Value, bool) {
	switch v.Kind {
	case KindDocument:
		return v.D.Lookup(path)
	case KindArray:
		head, rest, nested := strings.Cut(path, ".")
		i, err := strconv.Atoi(head)
		if err != nil || i < 0 || i >= len(v.A) {
			return Value{}, false
		}
		if !nested {
			return v.A[i], true
		}
		return v.A[i].lookup(rest)
	default:
		return Value{}, false
	}
}

// Set returns the document with a top-level field replaced or appended.
// An existing field is replaced in place.
func (d Document) Set(name string, v Value) Document {
	for i := range d {
		if d[i].Name == name {
			d[i].Value = v
			return d
		}
	}
	return append(d, Field{Name: name, Value: v})
}

// SetPath sets a dotted path, creating intermediate documents as needed.
// Non-document intermediates are overwritten.
func (d Document) SetPath(path string, v Value) Document {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return d.Set(head, v)
	}
	child, ok := d.Get(head)
	var sub Document
	if ok && child.Kind == KindDocument {
		sub = child.D
	}
	return d.Set(head, Doc(sub.SetPath(rest, v)))
}

// Delete returns the document without the named top-level field.
func (d Document) Delete(name string) Document {
	for i := range d {
		if d[i].Name == name {
			return append(d[:i:i], d[i+1:]...)
		}
	}
	return d
}

// Names returns the top-level field names in order.
func (d Document) Names() []string {
	names := make([]string, len(d))
	for i := range d {
		names[i] = d[i].Name
	}
	return names
}

// Clone creates a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	c := make(Document, len(d))
	for i := range d {
		c[i] = Field{Name: d[i].Name, Value: d[i].Value.Clone()}
	}
	return c
}

// String renders the document in a shell-like form.
func (d Document) String() string {
	var sb strings.Builder
	d.write(&sb)
	return sb.String()
}

func (d Document) write(sb *strings.Builder) {
	sb.WriteByte('{')
	for i := range d {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d[i].Name)
		sb.WriteString(": ")
		d[i].Value.write(sb)
	}
	sb.WriteByte('}')
}
