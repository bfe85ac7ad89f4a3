package docstore

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/docstore/value"
)

// Logger wraps slog.Logger with docstore-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithNamespace adds a namespace field to the logger.
func (l *Logger) WithNamespace(ns string) *Logger {
	return &Logger{
		Logger: l.Logger.With("ns", ns),
	}
}

// WithIndex adds an index name field to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, ns string, id value.Value, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"ns", ns,
			"id", id.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"ns", ns,
			"id", id.String(),
		)
	}
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, ns string, id value.Value, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"ns", ns,
			"id", id.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"ns", ns,
			"id", id.String(),
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, ns string, id value.Value, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"ns", ns,
			"id", id.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"ns", ns,
			"id", id.String(),
		)
	}
}

// LogIndexBuild logs an index build. docs is the number of records scanned.
func (l *Logger) LogIndexBuild(ctx context.Context, ns, name string, docs int, err error) {
	if err != nil {
		l.WarnContext(ctx, "index build failed",
			"ns", ns,
			"index", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index built",
			"ns", ns,
			"index", name,
			"docs", docs,
		)
	}
}

// LogIndexDrop logs an index drop.
func (l *Logger) LogIndexDrop(ctx context.Context, ns, name string, err error) {
	if err != nil {
		l.WarnContext(ctx, "index drop failed",
			"ns", ns,
			"index", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index dropped",
			"ns", ns,
			"index", name,
		)
	}
}

// LogCheckpoint logs a checkpoint.
func (l *Logger) LogCheckpoint(ctx context.Context, snapshot string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed",
			"snapshot", snapshot,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "checkpoint saved",
			"snapshot", snapshot,
			"bytes", size,
		)
	}
}

// LogRecovery logs a snapshot restore followed by WAL replay.
func (l *Logger) LogRecovery(ctx context.Context, snapshot string, entriesReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recovery failed",
			"snapshot", snapshot,
			"entries_replayed", entriesReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "recovery completed",
			"snapshot", snapshot,
			"entries_replayed", entriesReplayed,
		)
	}
}
