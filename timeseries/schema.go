package timeseries

import (
	"fmt"
	"strings"

	"github.com/hupe1980/docstore/index"
)

// FieldClass classifies a view field path.
type FieldClass uint8

const (
	Measurement FieldClass = iota
	Time
	Meta
)

// String returns the class name.
func (c FieldClass) String() string {
	switch c {
	case Time:
		return "time"
	case Meta:
		return "meta"
	default:
		return "measurement"
	}
}

// Bucket document field names.
const (
	bucketControl = "control"
	bucketMin     = "control.min."
	bucketMax     = "control.max."
	bucketMeta    = "meta"
	bucketData    = "data"
	bucketCount   = "count"
)

// Schema is the field layout of one time-series collection. It is fixed at
// creation.
type Schema struct {
	opts       Options
	metaPrefix string
	minTime    string
	maxTime    string
}

// NewSchema validates opts and derives the schema.
func NewSchema(opts Options) (*Schema, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	s := &Schema{
		opts:    o,
		minTime: bucketMin + o.TimeField,
		maxTime: bucketMax + o.TimeField,
	}
	if o.MetaField != "" {
		s.metaPrefix = o.MetaField + "."
	}
	return s, nil
}

// Options returns the validated options.
func (s *Schema) Options() Options { return s.opts }

// Classify returns the class of a view path. Paths under the meta field are
// meta, the time field itself is time and everything else is a measurement.
func (s *Schema) Classify(path string) FieldClass {
	switch {
	case path == s.opts.TimeField:
		return Time
	case s.opts.MetaField != "" && (path == s.opts.MetaField || strings.HasPrefix(path, s.metaPrefix)):
		return Meta
	default:
		return Measurement
	}
}

// metaPath maps a meta view path to its bucket path.
func (s *Schema) metaPath(path string) string {
	if path == s.opts.MetaField {
		return bucketMeta
	}
	return bucketMeta + "." + strings.TrimPrefix(path, s.metaPrefix)
}

// Translate rewrites a view key pattern into the bucket key pattern.
//
// Meta components keep their position with the meta field renamed to meta.
// An ascending time component becomes control.min and control.max ascending,
// a descending one control.max and control.min descending. Measurement
// components index the bucket data column.
func (s *Schema) Translate(kp index.KeyPattern) (index.KeyPattern, error) {
	out := make(index.KeyPattern, 0, len(kp)+1)
	for _, kf := range kp {
		switch s.Classify(kf.Path) {
		case Meta:
			kf.Path = s.metaPath(kf.Path)
			out = append(out, kf)
		case Time:
			if kf.Special != "" {
				return nil, fmt.Errorf("%w: %s index on the time field %q", ErrInvalidOptions, kf.Special, kf.Path)
			}
			lo, hi := kf, kf
			lo.Path, hi.Path = s.minTime, s.maxTime
			if kf.Dir > 0 {
				out = append(out, lo, hi)
			} else {
				out = append(out, hi, lo)
			}
		default:
			if kf.Special != "" {
				return nil, fmt.Errorf("%w: %s index on the measurement field %q", ErrInvalidOptions, kf.Special, kf.Path)
			}
			kf.Path = bucketData + "." + kf.Path
			out = append(out, kf)
		}
	}
	return out, nil
}

// Invert is the left inverse of Translate. Bucket patterns that Translate
// cannot produce fail with ErrNotTranslatable.
func (s *Schema) Invert(kp index.KeyPattern) (index.KeyPattern, error) {
	out := make(index.KeyPattern, 0, len(kp))
	for i := 0; i < len(kp); i++ {
		kf := kp[i]
		switch {
		case s.opts.MetaField != "" && (kf.Path == bucketMeta || strings.HasPrefix(kf.Path, bucketMeta+".")):
			if kf.Path == bucketMeta {
				kf.Path = s.opts.MetaField
			} else {
				kf.Path = s.opts.MetaField + strings.TrimPrefix(kf.Path, bucketMeta)
			}
			out = append(out, kf)
		case kf.Path == s.minTime || kf.Path == s.maxTime:
			want := s.maxTime
			if kf.Path == s.maxTime {
				want = s.minTime
			}
			asc := kf.Path == s.minTime
			if i+1 >= len(kp) || kp[i+1] != (index.KeyField{Path: want, Dir: kf.Dir}) ||
				kf.Special != "" || asc != (kf.Dir > 0) {
				return nil, fmt.Errorf("%w: %s", ErrNotTranslatable, kp)
			}
			kf.Path = s.opts.TimeField
			out = append(out, kf)
			i++
		case strings.HasPrefix(kf.Path, bucketData+"."):
			kf.Path = strings.TrimPrefix(kf.Path, bucketData+".")
			if kf.Special != "" || s.Classify(kf.Path) != Measurement {
				return nil, fmt.Errorf("%w: %s", ErrNotTranslatable, kp)
			}
			out = append(out, kf)
		default:
			return nil, fmt.Errorf("%w: %s", ErrNotTranslatable, kp)
		}
	}
	return out, nil
}

// Validate checks a view index before translation. Sparse indexes must not
// contain measurement fields and unique indexes are not supported.
func (s *Schema) Validate(kp index.KeyPattern, opts index.Options) error {
	if opts.Unique {
		return fmt.Errorf("%w: unique indexes are not supported on time-series collections", ErrInvalidOptions)
	}
	if opts.Sparse {
		for _, kf := range kp {
			if s.Classify(kf.Path) == Measurement {
				return fmt.Errorf("%w: %q", ErrSparseMeasurement, kf.Path)
			}
		}
	}
	return nil
}

// BucketIndex validates and translates a view index into the descriptor of
// the bucket index backing it. The index name is derived from the view
// pattern so that the view and the bucket collection share it.
func (s *Schema) BucketIndex(kp index.KeyPattern, opts index.Options) (index.Descriptor, error) {
	if err := s.Validate(kp, opts); err != nil {
		return index.Descriptor{}, err
	}
	phys, err := s.Translate(kp)
	if err != nil {
		return index.Descriptor{}, err
	}
	if opts.Name == "" {
		opts.Name = kp.DefaultName()
	}
	return index.NewDescriptor(phys, opts), nil
}

// ViewIndex returns the view form of a bucket index descriptor.
func (s *Schema) ViewIndex(d index.Descriptor) (index.Descriptor, error) {
	kp, err := s.Invert(d.Key)
	if err != nil {
		return index.Descriptor{}, err
	}
	d.Key = kp
	return d, nil
}
