package timeseries

import (
	"errors"
	"fmt"

	"github.com/hupe1980/docstore/index"
)

var (
	// ErrInvalidOptions is returned for illegal collection or index options.
	// It wraps index.ErrInvalidOptions.
	ErrInvalidOptions = fmt.Errorf("%w: time-series", index.ErrInvalidOptions)

	// ErrSparseMeasurement is returned when a sparse index names a
	// measurement field.
	ErrSparseMeasurement = fmt.Errorf("%w: sparse indexes are not allowed on measurement fields", ErrInvalidOptions)

	// ErrNotTranslatable is returned by Invert for bucket indexes that do not
	// correspond to a view index.
	ErrNotTranslatable = errors.New("timeseries: bucket index has no view form")

	// ErrBadEvent is returned for events without a valid time field.
	ErrBadEvent = errors.New("timeseries: bad event")

	// ErrBadBucket is returned when a bucket document cannot be unpacked.
	ErrBadBucket = errors.New("timeseries: malformed bucket")
)
