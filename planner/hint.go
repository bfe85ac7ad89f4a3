package planner

import (
	"errors"
	"fmt"

	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/value"
)

// ErrBadHint is returned when a hint names a hidden or nonexistent index or
// is malformed.
var ErrBadHint = errors.New("bad hint")

// Hint forces the access path of a query.
type Hint struct {
	name    string
	key     index.KeyPattern
	natural int
}

// HintName hints an index by name.
func HintName(name string) Hint { return Hint{name: name} }

// HintKey hints an index by key pattern.
func HintKey(kp index.KeyPattern) Hint { return Hint{key: kp} }

// HintNatural forces a collection scan in the given direction (1 or -1).
func HintNatural(dir int) Hint {
	if dir < 0 {
		return Hint{natural: -1}
	}
	return Hint{natural: 1}
}

// ParseHint decodes a hint given as an index name, a key pattern document or
// {$natural: ±1}.
func ParseHint(v value.Value) (Hint, error) {
	switch v.Kind {
	case value.KindInvalid:
		return Hint{}, nil
	case value.KindString:
		if v.S == "" {
			return Hint{}, fmt.Errorf("%w: empty index name", ErrBadHint)
		}
		return HintName(v.S), nil
	case value.KindDocument:
		if len(v.D) == 1 && v.D[0].Name == "$natural" {
			n, ok := v.D[0].Value.AsFloat64()
			if !ok || n == 0 {
				return Hint{}, fmt.Errorf("%w: $natural must be 1 or -1", ErrBadHint)
			}
			return HintNatural(int(n)), nil
		}
		kp, err := index.ParseKeyPattern(v.D)
		if err != nil {
			return Hint{}, fmt.Errorf("%w: %w", ErrBadHint, err)
		}
		return HintKey(kp), nil
	default:
		return Hint{}, fmt.Errorf("%w: hint must be a string or document, got %s", ErrBadHint, v.Kind)
	}
}

// IsZero reports whether no hint is set.
func (h Hint) IsZero() bool { return h.name == "" && h.key == nil && h.natural == 0 }

// IsNatural reports whether the hint forces a collection scan.
func (h Hint) IsNatural() bool { return h.natural != 0 }

// Natural returns the direction of a $natural hint.
func (h Hint) Natural() int { return h.natural }

// Key returns the key pattern of a key hint.
func (h Hint) Key() index.KeyPattern { return h.key }

// Name returns the index name of a name hint.
func (h Hint) Name() string { return h.name }

// WithKey returns a key hint with a replaced pattern. Time-series views use
// it to translate logical hints.
func (h Hint) WithKey(kp index.KeyPattern) Hint { return Hint{key: kp} }

// Ref converts an index hint into an index reference.
func (h Hint) Ref() index.Ref {
	if h.key != nil {
		return index.ByKey(h.key)
	}
	return index.ByName(h.name)
}

// String renders the hint.
func (h Hint) String() string {
	switch {
	case h.natural != 0:
		return fmt.Sprintf("{$natural: %d}", h.natural)
	case h.key != nil:
		return h.key.String()
	default:
		return h.name
	}
}
