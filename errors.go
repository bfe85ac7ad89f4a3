package docstore

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hupe1980/docstore/clustered"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/timeseries"
	"github.com/hupe1980/docstore/value"
)

// Code is a numeric error code. The values match the server error codes of
// the same name.
type Code int

const (
	CodeBadValue              Code = 2
	CodeNamespaceNotFound     Code = 26
	CodeIndexNotFound         Code = 27
	CodeNotFound              Code = 47
	CodeNamespaceExists       Code = 48
	CodeImmutableKeyViolation Code = 66
	CodeCannotCreateIndex     Code = 67
	CodeInvalidOptions        Code = 72
	CodeIndexOptionsConflict  Code = 85
	CodeIndexKeySpecsConflict Code = 86
	CodeIndexBuildAborted     Code = 276
	CodeDuplicateKey          Code = 11000
)

var codeNames = map[Code]string{
	CodeBadValue:              "BadValue",
	CodeNamespaceNotFound:     "NamespaceNotFound",
	CodeIndexNotFound:         "IndexNotFound",
	CodeNotFound:              "NotFound",
	CodeNamespaceExists:       "NamespaceExists",
	CodeImmutableKeyViolation: "ImmutableKeyViolation",
	CodeCannotCreateIndex:     "CannotCreateIndex",
	CodeInvalidOptions:        "InvalidOptions",
	CodeIndexOptionsConflict:  "IndexOptionsConflict",
	CodeIndexKeySpecsConflict: "IndexKeySpecsConflict",
	CodeIndexBuildAborted:     "IndexBuildAborted",
	CodeDuplicateKey:          "DuplicateKey",
}

// String returns the code name.
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "Code(" + strconv.Itoa(int(c)) + ")"
}

// Error is a coded error. The exported Err* values are the only instances;
// returned errors wrap one of them, so callers match with errors.Is and read
// the code with CodeOf.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrBadValue              = &Error{Code: CodeBadValue, Message: "bad value"}
	ErrNamespaceNotFound     = &Error{Code: CodeNamespaceNotFound, Message: "namespace not found"}
	ErrIndexNotFound         = &Error{Code: CodeIndexNotFound, Message: "index not found"}
	ErrNotFound              = &Error{Code: CodeNotFound, Message: "not found"}
	ErrNamespaceExists       = &Error{Code: CodeNamespaceExists, Message: "namespace exists"}
	ErrImmutableKey          = &Error{Code: CodeImmutableKeyViolation, Message: "immutable key violation"}
	ErrCannotCreateIndex     = &Error{Code: CodeCannotCreateIndex, Message: "cannot create index"}
	ErrInvalidOptions        = &Error{Code: CodeInvalidOptions, Message: "invalid options"}
	ErrIndexOptionsConflict  = &Error{Code: CodeIndexOptionsConflict, Message: "index options conflict"}
	ErrIndexKeySpecsConflict = &Error{Code: CodeIndexKeySpecsConflict, Message: "index key specs conflict"}
	ErrIndexBuildAborted     = &Error{Code: CodeIndexBuildAborted, Message: "index build aborted"}
	ErrDuplicateKey          = &Error{Code: CodeDuplicateKey, Message: "duplicate key"}
)

var (
	// ErrClosed is returned by operations on a closed database.
	ErrClosed = errors.New("docstore: closed")
	// ErrNoBlobStore is returned by Checkpoint when no blob store is configured.
	ErrNoBlobStore = errors.New("docstore: no blob store configured")
)

// CodeOf returns the code of err, or 0 when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// errorf wraps a public error with a formatted message.
func errorf(base *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

// translateError maps package errors to coded public errors. Errors that
// already carry a code are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}

	switch {
	// Integrity.
	case errors.Is(err, clustered.ErrDuplicateKey), errors.Is(err, index.ErrDuplicateKey):
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	case errors.Is(err, clustered.ErrImmutableKey):
		return fmt.Errorf("%w: %w", ErrImmutableKey, err)

	// Reference.
	case errors.Is(err, clustered.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, index.ErrIndexNotFound):
		return fmt.Errorf("%w: %w", ErrIndexNotFound, err)

	// Index catalog.
	case errors.Is(err, index.ErrOptionsConflict):
		return fmt.Errorf("%w: %w", ErrIndexOptionsConflict, err)
	case errors.Is(err, index.ErrKeySpecsConflict):
		return fmt.Errorf("%w: %w", ErrIndexKeySpecsConflict, err)
	case errors.Is(err, index.ErrBuildAborted):
		return fmt.Errorf("%w: %w", ErrIndexBuildAborted, err)
	case errors.Is(err, index.ErrCannotCreateIndex):
		return fmt.Errorf("%w: %w", ErrCannotCreateIndex, err)

	// Validation. timeseries.ErrInvalidOptions wraps index.ErrInvalidOptions.
	case errors.Is(err, index.ErrInvalidOptions), errors.Is(err, timeseries.ErrSparseMeasurement):
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)

	// Usage.
	case errors.Is(err, planner.ErrBadHint),
		errors.Is(err, index.ErrBadKeyPattern),
		errors.Is(err, query.ErrInvalidFilter),
		errors.Is(err, query.ErrInvalidProjection),
		errors.Is(err, clustered.ErrMissingID),
		errors.Is(err, clustered.ErrInvalidID),
		errors.Is(err, timeseries.ErrNotTranslatable),
		errors.Is(err, timeseries.ErrBadEvent),
		errors.Is(err, timeseries.ErrBadBucket),
		errors.Is(err, value.ErrInvalidBinData):
		return fmt.Errorf("%w: %w", ErrBadValue, err)
	}
	return err
}
