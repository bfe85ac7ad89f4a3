package wal

import (
	"time"
)

// DurabilityMode defines the fsync behavior for WAL writes.
type DurabilityMode int

const (
	// DurabilityAsync represents asynchronous durability.
	// No fsync, fastest writes but risk of data loss on crash.
	DurabilityAsync DurabilityMode = iota

	// DurabilityGroupCommit represents group commit durability.
	// Batched fsync at regular intervals.
	DurabilityGroupCommit

	// DurabilitySync represents synchronous durability.
	// fsync after every operation.
	DurabilitySync
)

// OperationType represents the type of operation in the WAL.
type OperationType uint8

const (
	// OpInsert represents an insert operation.
	OpInsert OperationType = iota
	// OpUpdate represents an update operation.
	OpUpdate
	// OpDelete represents a delete operation.
	OpDelete
	// OpCheckpoint represents a checkpoint marker.
	OpCheckpoint

	// Prepare/Commit protocol (atomic recovery):
	// A Prepare entry records the intended mutation; a Commit entry marks it as durable.
	// Recovery must apply only committed operations.

	// OpPrepareInsert represents a prepare insert operation.
	OpPrepareInsert
	// OpPrepareUpdate represents a prepare update operation.
	OpPrepareUpdate
	// OpPrepareDelete represents a prepare delete operation.
	OpPrepareDelete
	// OpCommitInsert represents a commit insert operation.
	OpCommitInsert
	// OpCommitUpdate represents a commit update operation.
	OpCommitUpdate
	// OpCommitDelete represents a commit delete operation.
	OpCommitDelete

	// Catalog operations are single self-committing entries.

	// OpCreateCollection records a new collection. Data holds its options.
	OpCreateCollection
	// OpDropCollection records a dropped collection.
	OpDropCollection
	// OpCreateIndex records a built index. Data holds its descriptor.
	OpCreateIndex
	// OpDropIndex records a dropped index. Key holds its name.
	OpDropIndex
	// OpHideIndex records a hidden flag change. Data holds the descriptor.
	OpHideIndex
)

var opNames = [...]string{
	"insert", "update", "delete", "checkpoint",
	"prepare-insert", "prepare-update", "prepare-delete",
	"commit-insert", "commit-update", "commit-delete",
	"create-collection", "drop-collection", "create-index", "drop-index", "hide-index",
}

// String returns the operation name.
func (t OperationType) String() string {
	if int(t) < len(opNames) {
		return opNames[t]
	}
	return "unknown"
}

// IsCatalog reports whether t is a catalog operation.
func (t OperationType) IsCatalog() bool { return t >= OpCreateCollection && t <= OpHideIndex }

// commit returns the commit type matching a prepare type, or t itself.
func (t OperationType) commit() OperationType {
	switch t {
	case OpPrepareInsert:
		return OpCommitInsert
	case OpPrepareUpdate:
		return OpCommitUpdate
	case OpPrepareDelete:
		return OpCommitDelete
	}
	return t
}

func (t OperationType) hasPayload() bool {
	return t == OpPrepareInsert || t == OpPrepareUpdate || t.IsCatalog()
}

// Entry represents a single entry in the WAL.
type Entry struct {
	Type      OperationType
	SeqNum    uint64 // Sequence number for ordering
	Namespace string
	Key       []byte // Encoded primary key or index name
	Data      []byte // BSON document or encoded catalog payload
}

// Options contains configuration for the WAL.
type Options struct {
	// Path is the directory where WAL files are stored.
	Path string

	// Compress enables zstd compression.
	Compress bool

	// CompressionLevel sets the zstd compression level (1-22).
	CompressionLevel int

	// AutoCheckpointOps triggers automatic checkpoint after N committed operations.
	// Set to 0 to disable operation-based checkpoints.
	AutoCheckpointOps int

	// AutoCheckpointMB triggers automatic checkpoint when WAL exceeds N megabytes.
	// Set to 0 to disable size-based checkpoints.
	AutoCheckpointMB int

	// DurabilityMode controls fsync behavior (Async, GroupCommit, Sync).
	DurabilityMode DurabilityMode

	// GroupCommitInterval is the maximum time to wait before fsync in GroupCommit mode.
	GroupCommitInterval time.Duration

	// GroupCommitMaxOps is the maximum operations to batch before fsync in GroupCommit mode.
	GroupCommitMaxOps int
}

// DefaultOptions returns default WAL options.
var DefaultOptions = Options{
	Path:                ".",
	Compress:            false,
	CompressionLevel:    3,
	AutoCheckpointOps:   10000,
	AutoCheckpointMB:    100,
	DurabilityMode:      DurabilityGroupCommit,
	GroupCommitInterval: 10 * time.Millisecond,
	GroupCommitMaxOps:   100,
}
