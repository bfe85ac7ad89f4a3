package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docstore"
	"github.com/hupe1980/docstore/blobstore"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/value"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.RecordInsert("items", time.Millisecond, nil)
	c.RecordInsert("items", time.Millisecond, errors.New("boom"))
	c.RecordFind("items", "IXSCAN", true, 7, time.Millisecond, nil)
	c.RecordCheckpoint(1024, time.Millisecond, nil)

	assert.InDelta(t, 1, testutil.ToFloat64(c.writes.WithLabelValues("items", "insert", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.writes.WithLabelValues("items", "insert", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.finds.WithLabelValues("items", "IXSCAN", "true", "success")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(c.returned.WithLabelValues("items")), 0)
	assert.InDelta(t, 1024, testutil.ToFloat64(c.checkpointBytes), 0)

	// Registering twice conflicts.
	_, err = NewPrometheusCollector(reg)
	require.Error(t, err)
}

func TestPrometheusCollector_DB(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	ctx := context.Background()
	db, err := docstore.Open(ctx,
		docstore.WithMetricsCollector(c),
		docstore.WithLogger(docstore.NoopLogger()),
		docstore.WithBlobStore(blobstore.NewMemoryStore()),
	)
	require.NoError(t, err)
	defer db.Close()

	coll, err := db.CreateCollection(ctx, "items")
	require.NoError(t, err)
	for i := range 4 {
		_, err := coll.Insert(ctx, value.D("_id", i, "a", i))
		require.NoError(t, err)
	}
	_, err = coll.CreateIndex(ctx, value.D("a", 1), index.Options{})
	require.NoError(t, err)
	_, err = coll.Find(ctx, value.D("a", 2), docstore.FindOptions{Projection: value.D("_id", 0, "a", 1)})
	require.NoError(t, err)
	_, err = db.Checkpoint(ctx)
	require.NoError(t, err)

	assert.InDelta(t, 4, testutil.ToFloat64(c.writes.WithLabelValues("items", "insert", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.finds.WithLabelValues("items", "IXSCAN", "true", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.indexBuilds.WithLabelValues("items", "success")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(c.indexBuildDocs), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.checkpoints.WithLabelValues("success")), 0)

	n, err := testutil.GatherAndCount(reg, "docstore_operation_latency_seconds")
	require.NoError(t, err)
	assert.Positive(t, n)
}
