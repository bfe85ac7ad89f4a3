package docstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// observability package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordInsert is called after each insert. ns is the collection or
	// time-series view written to.
	RecordInsert(ns string, duration time.Duration, err error)

	// RecordUpdate is called after each update or replacement.
	RecordUpdate(ns string, duration time.Duration, err error)

	// RecordDelete is called after each delete.
	RecordDelete(ns string, duration time.Duration, err error)

	// RecordFind is called after each find. stage is the leaf stage of the
	// winning plan and returned the number of documents produced.
	RecordFind(ns, stage string, indexOnly bool, returned int, duration time.Duration, err error)

	// RecordIndexBuild is called after each index build with the number of
	// records the backfill scanned.
	RecordIndexBuild(ns string, docs int, duration time.Duration, err error)

	// RecordCheckpoint is called after each checkpoint with the encoded
	// snapshot size.
	RecordCheckpoint(bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(string, time.Duration, error)                  {}
func (NoopMetricsCollector) RecordUpdate(string, time.Duration, error)                  {}
func (NoopMetricsCollector) RecordDelete(string, time.Duration, error)                  {}
func (NoopMetricsCollector) RecordFind(string, string, bool, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordIndexBuild(string, int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordCheckpoint(int, time.Duration, error)                 {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	UpdateCount      atomic.Int64
	UpdateErrors     atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	FindCount        atomic.Int64
	FindErrors       atomic.Int64
	FindIndexOnly    atomic.Int64
	FindReturned     atomic.Int64
	FindTotalNanos   atomic.Int64
	IndexBuildCount  atomic.Int64
	IndexBuildErrors atomic.Int64
	IndexBuildDocs   atomic.Int64
	CheckpointCount  atomic.Int64
	CheckpointErrors atomic.Int64
	CheckpointBytes  atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(_ string, duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(_ string, _ time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ string, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordFind implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFind(_, _ string, indexOnly bool, returned int, duration time.Duration, err error) {
	b.FindCount.Add(1)
	b.FindTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FindErrors.Add(1)
		return
	}
	if indexOnly {
		b.FindIndexOnly.Add(1)
	}
	b.FindReturned.Add(int64(returned))
}

// RecordIndexBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexBuild(_ string, docs int, _ time.Duration, err error) {
	b.IndexBuildCount.Add(1)
	if err != nil {
		b.IndexBuildErrors.Add(1)
		return
	}
	b.IndexBuildDocs.Add(int64(docs))
}

// RecordCheckpoint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheckpoint(bytes int, _ time.Duration, err error) {
	b.CheckpointCount.Add(1)
	if err != nil {
		b.CheckpointErrors.Add(1)
		return
	}
	b.CheckpointBytes.Add(int64(bytes))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:      b.InsertCount.Load(),
		InsertErrors:     b.InsertErrors.Load(),
		InsertAvgNanos:   avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		UpdateCount:      b.UpdateCount.Load(),
		UpdateErrors:     b.UpdateErrors.Load(),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		FindCount:        b.FindCount.Load(),
		FindErrors:       b.FindErrors.Load(),
		FindIndexOnly:    b.FindIndexOnly.Load(),
		FindReturned:     b.FindReturned.Load(),
		FindAvgNanos:     avg(b.FindTotalNanos.Load(), b.FindCount.Load()),
		IndexBuildCount:  b.IndexBuildCount.Load(),
		IndexBuildErrors: b.IndexBuildErrors.Load(),
		IndexBuildDocs:   b.IndexBuildDocs.Load(),
		CheckpointCount:  b.CheckpointCount.Load(),
		CheckpointErrors: b.CheckpointErrors.Load(),
		CheckpointBytes:  b.CheckpointBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount      int64
	InsertErrors     int64
	InsertAvgNanos   int64
	UpdateCount      int64
	UpdateErrors     int64
	DeleteCount      int64
	DeleteErrors     int64
	FindCount        int64
	FindErrors       int64
	FindIndexOnly    int64
	FindReturned     int64
	FindAvgNanos     int64
	IndexBuildCount  int64
	IndexBuildErrors int64
	IndexBuildDocs   int64
	CheckpointCount  int64
	CheckpointErrors int64
	CheckpointBytes  int64
}
