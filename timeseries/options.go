package timeseries

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/docstore/value"
)

// Granularity controls bucket time windows.
type Granularity string

const (
	GranularitySeconds Granularity = "seconds"
	GranularityMinutes Granularity = "minutes"
	GranularityHours   Granularity = "hours"
)

// DefaultBucketMaxCount is the default number of events per bucket.
const DefaultBucketMaxCount = 1000

// Options configure a time-series collection.
type Options struct {
	TimeField   string
	MetaField   string // optional
	Granularity Granularity
	// BucketMaxCount caps the events per bucket.
	BucketMaxCount int
	// BucketMaxSpan caps the time range of a bucket. Zero derives it from
	// the granularity.
	BucketMaxSpan time.Duration
}

// rounding returns the unit bucket start times are truncated to.
func (g Granularity) rounding() time.Duration {
	switch g {
	case GranularityMinutes:
		return time.Hour
	case GranularityHours:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

func (g Granularity) maxSpan() time.Duration {
	switch g {
	case GranularityMinutes:
		return 24 * time.Hour
	case GranularityHours:
		return 30 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// withDefaults validates o and fills defaults.
func (o Options) withDefaults() (Options, error) {
	if err := validField("timeField", o.TimeField); err != nil {
		return Options{}, err
	}
	if o.MetaField != "" {
		if err := validField("metaField", o.MetaField); err != nil {
			return Options{}, err
		}
		if o.MetaField == o.TimeField {
			return Options{}, fmt.Errorf("%w: timeField and metaField must differ", ErrInvalidOptions)
		}
	}
	switch o.Granularity {
	case "":
		o.Granularity = GranularitySeconds
	case GranularitySeconds, GranularityMinutes, GranularityHours:
	default:
		return Options{}, fmt.Errorf("%w: unknown granularity %q", ErrInvalidOptions, o.Granularity)
	}
	if o.BucketMaxCount < 0 || o.BucketMaxSpan < 0 {
		return Options{}, fmt.Errorf("%w: bucket limits must not be negative", ErrInvalidOptions)
	}
	if o.BucketMaxCount == 0 {
		o.BucketMaxCount = DefaultBucketMaxCount
	}
	if o.BucketMaxSpan == 0 {
		o.BucketMaxSpan = o.Granularity.maxSpan()
	}
	return o, nil
}

func validField(opt, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: %s is required", ErrInvalidOptions, opt)
	case name == value.IDField:
		return fmt.Errorf("%w: %s must not be _id", ErrInvalidOptions, opt)
	case strings.Contains(name, "."), strings.HasPrefix(name, "$"):
		return fmt.Errorf("%w: %s must be a top-level field name, got %q", ErrInvalidOptions, opt, name)
	}
	return nil
}

// Document renders the options like collection info does.
func (o Options) Document() value.Document {
	d := value.D("timeField", o.TimeField)
	if o.MetaField != "" {
		d = append(d, value.Field{Name: "metaField", Value: value.String(o.MetaField)})
	}
	return append(d,
		value.Field{Name: "granularity", Value: value.String(string(o.Granularity))},
		value.Field{Name: "bucketMaxCount", Value: value.Int(int64(o.BucketMaxCount))},
		value.Field{Name: "bucketMaxSpanSeconds", Value: value.Int(int64(o.BucketMaxSpan / time.Second))},
	)
}
