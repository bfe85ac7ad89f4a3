package docstore

import (
	"log/slog"
	"time"

	"github.com/hupe1980/docstore/blobstore"
	"github.com/hupe1980/docstore/codec"
	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/resource"
	"github.com/hupe1980/docstore/snapshot"
	"github.com/hupe1980/docstore/wal"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	walPath          string
	walOptions       []func(*wal.Options)
	blobs            blobstore.BlobStore
	compression      snapshot.Compression
	keepSnapshots    int
	resource         resource.Config
	planCacheSize    int
	bucketMaxCount   int
	bucketMaxSpan    time.Duration
}

// Option configures Open.
type Option func(*options)

// WithCodec configures the codec used for the catalog section of snapshots
// and the index specs logged to the WAL.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithWAL configures write-ahead logging for durability. Every committed
// record mutation and catalog change is logged before Open returns it as
// applied, and Open replays the log on restart.
//
// Example:
//
//	db, _ := docstore.Open(ctx,
//	    docstore.WithWAL("./wal", func(o *wal.Options) {
//	        o.DurabilityMode = wal.DurabilitySync
//	        o.Compress = true
//	    }),
//	)
func WithWAL(path string, optFns ...func(*wal.Options)) Option {
	return func(o *options) {
		o.walPath = path
		o.walOptions = optFns
	}
}

// WithBlobStore configures where Checkpoint writes snapshots. Open restores
// the snapshot CURRENT points at before replaying the WAL.
//
// When WAL auto-checkpoint thresholds (AutoCheckpointOps, AutoCheckpointMB)
// are set, checkpoints are also taken in the background.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobs = store
	}
}

// WithSnapshotCompression sets the compression of new snapshots.
func WithSnapshotCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithSnapshotRetention keeps the newest n snapshots after each checkpoint
// and deletes older ones. n <= 0 keeps all.
func WithSnapshotRetention(n int) Option {
	return func(o *options) {
		o.keepSnapshots = n
	}
}

// WithResourceConfig limits index build concurrency, backfill rate and
// snapshot I/O.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resource = cfg
	}
}

// WithPlanCacheSize sets the number of query shapes cached per collection.
// A negative size disables plan caching.
func WithPlanCacheSize(n int) Option {
	return func(o *options) {
		o.planCacheSize = n
	}
}

// WithBucketLimits sets the default bucket limits of time-series
// collections that do not set their own. Zero keeps the granularity
// defaults.
func WithBucketLimits(maxCount int, maxSpan time.Duration) Option {
	return func(o *options) {
		o.bucketMaxCount = maxCount
		o.bucketMaxSpan = maxSpan
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &docstore.BasicMetricsCollector{}
//	db, _ := docstore.Open(ctx, docstore.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Finds: %d, index-only: %d\n", stats.FindCount, stats.FindIndexOnly)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := docstore.NewJSONLogger(slog.LevelInfo)
//	db, _ := docstore.Open(ctx, docstore.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      snapshot.CompressionZstd,
		planCacheSize:    planner.DefaultCacheSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
