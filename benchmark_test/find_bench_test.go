package benchmark_test

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/docstore"
	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/value"
)

// ============================================================================
// Find Benchmarks
// ============================================================================

// BenchmarkFind compares the access paths for the same predicate.
func BenchmarkFind(b *testing.B) {
	db := OpenBenchDB(b, false)
	c := LoadCollection(b, db, sizeMedium)
	filter := value.D("a", 3, "b", value.D("$gte", 10, "$lt", 40))

	cases := []struct {
		name string
		opts docstore.FindOptions
	}{
		{"index-only", docstore.FindOptions{Projection: value.D("_id", 0, "a", 1, "b", 1)}},
		{"fetch", docstore.FindOptions{}},
		{"collscan", docstore.FindOptions{Hint: planner.HintNatural(1)}},
	}
	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := c.Find(ctx, filter, tc.opts); err != nil {
					b.Fatal(err)
				}
			}

			b.StopTimer()
			b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "queries/sec")
		})
	}
}

// BenchmarkClusteredRange measures _id range scans over the clustered order.
func BenchmarkClusteredRange(b *testing.B) {
	db := OpenBenchDB(b, false)
	c := LoadCollection(b, db, sizeMedium)
	filter := value.D("_id", value.D("$gte", 2000, "$lt", 2100))

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		docs, err := c.Find(ctx, filter, docstore.FindOptions{})
		if err != nil {
			b.Fatal(err)
		}
		if len(docs) != 100 {
			b.Fatalf("got %d docs", len(docs))
		}
	}
}

// BenchmarkTimeseriesFind measures a meta and time range query over buckets.
func BenchmarkTimeseriesFind(b *testing.B) {
	db := OpenBenchDB(b, false)
	ts := LoadTimeseries(b, db, sizeMedium)
	filter := value.D(
		"mm.tag", "b",
		"tm", value.D("$gte", value.Date(benchStart.Add(time.Hour)), "$lt", value.Date(benchStart.Add(2*time.Hour))),
	)

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := ts.Find(ctx, filter, docstore.FindOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
