package index

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/value"
)

// Special index types accepted in key patterns.
const (
	Special2DSphere = "2dsphere"
	Special2D       = "2d"
	SpecialHashed   = "hashed"
	SpecialText     = "text"
)

var specials = map[string]struct{}{
	Special2DSphere: {},
	Special2D:       {},
	SpecialHashed:   {},
	SpecialText:     {},
}

// KeyField is one component of a key pattern. Special is empty for ordinary
// ascending/descending components.
type KeyField struct {
	Path    string
	Dir     keycodec.Direction
	Special string
}

// IsGeo reports whether the component is a geo index type.
func (f KeyField) IsGeo() bool {
	return f.Special == Special2DSphere || f.Special == Special2D
}

// Coverable reports whether the index key stores the field value itself.
// Special components store derived keys and cannot answer projections.
func (f KeyField) Coverable() bool { return f.Special == "" }

// Value returns the pattern value of the component: 1, -1 or the type name.
func (f KeyField) Value() value.Value {
	if f.Special != "" {
		return value.String(f.Special)
	}
	return value.Int(int64(f.Dir))
}

func (f KeyField) token() string {
	if f.Special != "" {
		return f.Special
	}
	return strconv.Itoa(int(f.Dir))
}

// KeyPattern is an ordered list of key components.
type KeyPattern []KeyField

// ParseKeyPattern validates a key pattern document such as {a: 1, loc: "2dsphere"}.
func ParseKeyPattern(doc value.Document) (KeyPattern, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: key pattern must not be empty", ErrBadKeyPattern)
	}
	kp := make(KeyPattern, 0, len(doc))
	seen := make(map[string]struct{}, len(doc))
	for _, f := range doc {
		if err := validatePath(f.Name); err != nil {
			return nil, err
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrBadKeyPattern, f.Name)
		}
		seen[f.Name] = struct{}{}

		kf := KeyField{Path: f.Name, Dir: keycodec.Ascending}
		switch f.Value.Kind {
		case value.KindInt, value.KindFloat:
			n, _ := f.Value.AsFloat64()
			switch {
			case math.IsNaN(n) || n == 0:
				return nil, fmt.Errorf("%w: direction for %q must be non-zero", ErrBadKeyPattern, f.Name)
			case n < 0:
				kf.Dir = keycodec.Descending
			}
		case value.KindString:
			if _, ok := specials[f.Value.S]; !ok {
				return nil, fmt.Errorf("%w: unknown index type %q for %q", ErrBadKeyPattern, f.Value.S, f.Name)
			}
			kf.Special = f.Value.S
		default:
			return nil, fmt.Errorf("%w: value for %q must be a number or index type, got %s", ErrBadKeyPattern, f.Name, f.Value.Kind)
		}
		kp = append(kp, kf)
	}
	return kp, nil
}

// MustParseKeyPattern is like ParseKeyPattern but panics on error.
func MustParseKeyPattern(doc value.Document) KeyPattern {
	kp, err := ParseKeyPattern(doc)
	if err != nil {
		panic(err)
	}
	return kp
}

func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty field name", ErrBadKeyPattern)
	}
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			return fmt.Errorf("%w: empty path segment in %q", ErrBadKeyPattern, p)
		}
		if strings.HasPrefix(seg, "$") {
			return fmt.Errorf("%w: field %q must not start with '$'", ErrBadKeyPattern, p)
		}
	}
	return nil
}

// Document returns the pattern as a document.
func (kp KeyPattern) Document() value.Document {
	d := make(value.Document, len(kp))
	for i, f := range kp {
		d[i] = value.Field{Name: f.Path, Value: f.Value()}
	}
	return d
}

// Equal reports whether two patterns have the same components in the same order.
func (kp KeyPattern) Equal(o KeyPattern) bool {
	if len(kp) != len(o) {
		return false
	}
	for i := range kp {
		if kp[i] != o[i] {
			return false
		}
	}
	return true
}

// Paths returns the field paths in pattern order.
func (kp KeyPattern) Paths() []string {
	out := make([]string, len(kp))
	for i, f := range kp {
		out[i] = f.Path
	}
	return out
}

// Position returns the component index of path or -1.
func (kp KeyPattern) Position(path string) int {
	for i, f := range kp {
		if f.Path == path {
			return i
		}
	}
	return -1
}

// Directions returns the component directions. Special components are ascending.
func (kp KeyPattern) Directions() []keycodec.Direction {
	out := make([]keycodec.Direction, len(kp))
	for i, f := range kp {
		out[i] = f.Dir
	}
	return out
}

// HasGeo reports whether any component is a geo index type.
func (kp KeyPattern) HasGeo() bool {
	for _, f := range kp {
		if f.IsGeo() {
			return true
		}
	}
	return false
}

// HasSpecial reports whether any component has the given special type.
func (kp KeyPattern) HasSpecial(t string) bool {
	for _, f := range kp {
		if f.Special == t {
			return true
		}
	}
	return false
}

// DefaultName derives the index name the way the shell does: a_1_b_-1.
func (kp KeyPattern) DefaultName() string {
	parts := make([]string, 0, 2*len(kp))
	for _, f := range kp {
		parts = append(parts, f.Path, f.token())
	}
	return strings.Join(parts, "_")
}

// String renders the pattern as a document.
func (kp KeyPattern) String() string { return kp.Document().String() }
