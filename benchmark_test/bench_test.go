package benchmark_test

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/docstore"
	"github.com/hupe1980/docstore/blobstore"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/testutil"
	"github.com/hupe1980/docstore/timeseries"
	"github.com/hupe1980/docstore/value"
	"github.com/hupe1980/docstore/wal"
)

const (
	benchSeed = 42

	sizeSmall  = 1_000
	sizeMedium = 10_000
)

var benchStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// OpenBenchDB opens an in-memory database. With durable set the WAL runs in
// group commit mode and checkpoints go to a memory blob store.
func OpenBenchDB(b *testing.B, durable bool) *docstore.DB {
	b.Helper()
	opts := []docstore.Option{docstore.WithLogger(docstore.NoopLogger())}
	if durable {
		opts = append(opts,
			docstore.WithBlobStore(blobstore.NewMemoryStore()),
			docstore.WithWAL(b.TempDir(), func(o *wal.Options) {
				o.DurabilityMode = wal.DurabilityGroupCommit
				o.GroupCommitInterval = 10 * time.Millisecond
				o.AutoCheckpointOps = 0
				o.AutoCheckpointMB = 0
			}),
		)
	}
	db, err := docstore.Open(context.Background(), opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = db.Close() })
	return db
}

// LoadCollection creates a collection holding n generated documents and an
// {a: 1, b: 1} index.
func LoadCollection(b *testing.B, db *docstore.DB, n int) *docstore.Collection {
	b.Helper()
	ctx := context.Background()
	c, err := db.CreateCollection(ctx, "bench")
	if err != nil {
		b.Fatal(err)
	}
	if _, err := c.InsertMany(ctx, testutil.NewRNG(benchSeed).Documents(n, 0.05)); err != nil {
		b.Fatal(err)
	}
	if _, err := c.CreateIndex(ctx, value.D("a", 1, "b", 1), index.Options{}); err != nil {
		b.Fatal(err)
	}
	return c
}

// LoadTimeseries creates a view holding n events over four tags.
func LoadTimeseries(b *testing.B, db *docstore.DB, n int) *docstore.TimeseriesCollection {
	b.Helper()
	ctx := context.Background()
	ts, err := db.CreateTimeseries(ctx, "metrics", timeseries.Options{TimeField: "tm", MetaField: "mm"})
	if err != nil {
		b.Fatal(err)
	}
	events := testutil.NewRNG(benchSeed).Events(n, benchStart, time.Second, "tm", "mm", "a", "b", "c", "d")
	if _, err := ts.InsertMany(ctx, events); err != nil {
		b.Fatal(err)
	}
	return ts
}
