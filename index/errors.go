package index

import "errors"

var (
	// ErrIndexNotFound is returned when no index matches a reference.
	ErrIndexNotFound = errors.New("index not found")
	// ErrBadKeyPattern is returned for malformed key patterns.
	ErrBadKeyPattern = errors.New("bad index key pattern")
	// ErrInvalidOptions is returned for unknown or malformed index options.
	ErrInvalidOptions = errors.New("invalid index options")
	// ErrOptionsConflict is returned when an index with the same key exists
	// with different options or a different name.
	ErrOptionsConflict = errors.New("index options conflict")
	// ErrKeySpecsConflict is returned when an index with the same name exists
	// with a different key pattern.
	ErrKeySpecsConflict = errors.New("index key specs conflict")
	// ErrDuplicateKey is returned when a unique index would contain a key twice.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrBuildAborted is returned when an index build is cancelled.
	ErrBuildAborted = errors.New("index build aborted")
	// ErrCannotCreateIndex is returned for descriptors that are valid on their
	// own but cannot be built, such as a unique hashed index.
	ErrCannotCreateIndex = errors.New("cannot create index")
)
