package index

import (
	"fmt"
	"sort"

	"github.com/hupe1980/docstore/value"
)

// Options are the user-settable properties of an index.
type Options struct {
	// Name defaults to the key pattern's DefaultName.
	Name string
	// Sparse indexes skip documents in which every indexed field is absent.
	Sparse bool
	// Hidden indexes are maintained but never used for planning or hints.
	Hidden bool
	// Unique indexes reject a second document with the same key.
	Unique bool
}

// ParseOptions decodes an options document. Unknown keys and values of the
// wrong type are rejected with ErrInvalidOptions.
func ParseOptions(doc value.Document) (Options, error) {
	var o Options
	for _, f := range doc {
		switch f.Name {
		case "name":
			s, ok := f.Value.AsString()
			if !ok || s == "" {
				return Options{}, fmt.Errorf("%w: name must be a nonempty string", ErrInvalidOptions)
			}
			o.Name = s
		case "sparse":
			b, err := boolOption(f)
			if err != nil {
				return Options{}, err
			}
			o.Sparse = b
		case "hidden":
			b, err := boolOption(f)
			if err != nil {
				return Options{}, err
			}
			o.Hidden = b
		case "unique":
			b, err := boolOption(f)
			if err != nil {
				return Options{}, err
			}
			o.Unique = b
		default:
			return Options{}, fmt.Errorf("%w: unknown option %q", ErrInvalidOptions, f.Name)
		}
	}
	return o, nil
}

// ParseOptionsMap decodes options given as a map.
func ParseOptionsMap(m map[string]any) (Options, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := make(value.Document, 0, len(m))
	for _, k := range keys {
		v, err := value.FromAny(m[k])
		if err != nil {
			return Options{}, fmt.Errorf("%w: %s: %w", ErrInvalidOptions, k, err)
		}
		doc = append(doc, value.Field{Name: k, Value: v})
	}
	return ParseOptions(doc)
}

func boolOption(f value.Field) (bool, error) {
	switch f.Value.Kind {
	case value.KindBool:
		return f.Value.B, nil
	case value.KindInt, value.KindFloat:
		n, _ := f.Value.AsFloat64()
		return n != 0, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidOptions, f.Name)
	}
}

// Document renders the non-default options.
func (o Options) Document() value.Document {
	var d value.Document
	if o.Name != "" {
		d = append(d, value.Field{Name: "name", Value: value.String(o.Name)})
	}
	if o.Sparse {
		d = append(d, value.Field{Name: "sparse", Value: value.Bool(true)})
	}
	if o.Hidden {
		d = append(d, value.Field{Name: "hidden", Value: value.Bool(true)})
	}
	if o.Unique {
		d = append(d, value.Field{Name: "unique", Value: value.Bool(true)})
	}
	return d
}
