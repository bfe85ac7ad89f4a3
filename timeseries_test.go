package docstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docstore"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/testutil"
	"github.com/hupe1980/docstore/timeseries"
	"github.com/hupe1980/docstore/value"
)

func newTimeseries(t *testing.T, db *docstore.DB) *docstore.TimeseriesCollection {
	t.Helper()
	ts, err := db.CreateTimeseries(context.Background(), "ts", timeseries.Options{TimeField: "tm", MetaField: "mm"})
	require.NoError(t, err)

	now := value.Date(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = ts.InsertMany(context.Background(), []value.Document{
		value.D("_id", 0, "tm", now, "mm", value.D("tag", "a", "loc", value.D("type", "Point", "coordinates", []any{3, 3})), "x", 1),
		value.D("_id", 1, "tm", now, "mm", value.D("tag", "b"), "y", 1),
		value.D("_id", 2, "tm", now, "mm", value.D("tag", "c"), "x", 1, "y", 1),
	})
	require.NoError(t, err)
	return ts
}

func keyPattern(doc value.Document) index.KeyPattern { return index.MustParseKeyPattern(doc) }

func TestTimeseries_SparseIndexes(t *testing.T) {
	ctx := context.Background()
	ts := newTimeseries(t, openDB(t))
	buckets := ts.Buckets()
	assert.Equal(t, docstore.BucketsPrefix+"ts", buckets.Name())

	tests := []struct {
		keys   value.Document
		bucket value.Document
		count  int
	}{
		{value.D("mm.tag", 1, "mm.loc", "2dsphere"), value.D("meta.tag", 1, "meta.loc", "2dsphere"), 1},
		{value.D("mm.tag", 1), value.D("meta.tag", 1), 3},
		{value.D("mm.abc", 1), value.D("meta.abc", 1), 0},
		{value.D("tm", 1, "mm.tag", 1), value.D("control.min.tm", 1, "control.max.tm", 1, "meta.tag", 1), 3},
		{value.D("mm.abc", 1, "tm", -1), value.D("meta.abc", 1, "control.max.tm", -1, "control.min.tm", -1), 3},
	}
	for _, tt := range tests {
		t.Run(tt.keys.String(), func(t *testing.T) {
			d, err := ts.CreateIndex(ctx, tt.keys, index.Options{Sparse: true})
			require.NoError(t, err)
			assert.True(t, keyPattern(tt.keys).Equal(d.Key))
			name := keyPattern(tt.keys).DefaultName()
			assert.Equal(t, name, d.Name)

			bidx := buckets.Indexes()
			require.Len(t, bidx, 1)
			phys := bidx[0]
			assert.True(t, keyPattern(tt.bucket).Equal(phys.Key), phys.Key.String())
			assert.True(t, phys.Sparse)

			viewHint := docstore.FindOptions{Hint: planner.HintKey(keyPattern(tt.keys))}
			events, err := ts.Find(ctx, nil, viewHint)
			require.NoError(t, err)
			assert.Len(t, events, tt.count)

			events, err = ts.Find(ctx, nil, docstore.FindOptions{Hint: planner.HintName(name)})
			require.NoError(t, err)
			assert.Len(t, events, tt.count)

			// Hiding through the view hides the bucket index too.
			_, err = ts.HideIndex(ctx, index.ByKey(keyPattern(tt.keys)))
			require.NoError(t, err)
			_, err = ts.Find(ctx, nil, viewHint)
			require.ErrorIs(t, err, docstore.ErrBadValue)
			_, err = buckets.Find(ctx, nil, docstore.FindOptions{Hint: planner.HintName(name)})
			require.ErrorIs(t, err, docstore.ErrBadValue)

			_, err = ts.UnhideIndex(ctx, index.ByName(name))
			require.NoError(t, err)
			events, err = ts.Find(ctx, nil, viewHint)
			require.NoError(t, err)
			assert.Len(t, events, tt.count)

			_, err = ts.DropIndex(ctx, index.ByKey(keyPattern(tt.keys)))
			require.NoError(t, err)
			assert.Empty(t, buckets.Indexes())
			assert.Empty(t, ts.Indexes())
		})
	}
}

func TestTimeseries_SparseMeasurementRejected(t *testing.T) {
	ctx := context.Background()
	ts := newTimeseries(t, openDB(t))

	for _, keys := range []value.Document{
		value.D("x", 1),
		value.D("y", -1),
		value.D("x", 1, "y", 1),
		value.D("z", 1),
		value.D("x", 1, "mm.loc", "2dsphere"),
		value.D("tm", 1, "x", 1),
	} {
		_, err := ts.CreateIndex(ctx, keys, index.Options{Sparse: true})
		require.ErrorIs(t, err, docstore.ErrInvalidOptions, keys.String())
		assert.Equal(t, docstore.CodeInvalidOptions, docstore.CodeOf(err))
	}
	assert.Empty(t, ts.Buckets().Indexes())

	// Non-sparse measurement indexes are allowed.
	d, err := ts.CreateIndex(ctx, value.D("x", 1), index.Options{})
	require.NoError(t, err)
	assert.Equal(t, "x_1", d.Name)
	assert.Equal(t, "data.x", ts.Buckets().Indexes()[0].Key[0].Path)

	_, err = ts.CreateIndex(ctx, value.D("mm.tag", 1), index.Options{Unique: true})
	require.ErrorIs(t, err, docstore.ErrInvalidOptions)
}

func TestTimeseries_FindMatchesEvents(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, docstore.WithBucketLimits(10, time.Hour))
	ts, err := db.CreateTimeseries(ctx, "weather", timeseries.Options{TimeField: "tm", MetaField: "mm"})
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	events := testutil.NewRNG(3).Events(120, start, time.Minute, "tm", "mm", "a", "b", "c")
	ids, err := ts.InsertMany(ctx, events)
	require.NoError(t, err)
	for i := range events {
		events[i] = append(value.Document{{Name: value.IDField, Value: ids[i]}}, events[i]...)
	}
	assert.Greater(t, ts.Buckets().Count(), 3)

	_, err = ts.CreateIndex(ctx, value.D("mm.tag", 1, "tm", 1), index.Options{})
	require.NoError(t, err)

	filters := []value.Document{
		value.D("mm.tag", "b"),
		value.D("tm", value.D("$gte", value.Date(start.Add(30*time.Minute)), "$lt", value.Date(start.Add(45*time.Minute)))),
		value.D("mm.tag", "a", "v", value.D("$gt", 50.0)),
	}
	for _, filter := range filters {
		t.Run(filter.String(), func(t *testing.T) {
			f, err := query.Parse(filter)
			require.NoError(t, err)
			want := testutil.BruteForceFind(events, f)

			got, err := ts.Find(ctx, filter, docstore.FindOptions{})
			require.NoError(t, err)
			testutil.SortByID(got)
			assert.Equal(t, testutil.IDs(want), testutil.IDs(got))

			e, err := ts.Explain(ctx, filter, docstore.FindOptions{})
			require.NoError(t, err)
			assert.Equal(t, planner.StageUnpackBucket, e.Stages[0])
			assert.False(t, e.IndexOnly)
			assert.Equal(t, len(want), e.Stats.NReturned)
		})
	}

	e, err := ts.Explain(ctx, value.D("mm.tag", "c"), docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "mm.tag_1_tm_1", e.IndexName)

	limited, err := ts.Find(ctx, nil, docstore.FindOptions{Limit: 5, Projection: value.D("v", 1)})
	require.NoError(t, err)
	require.Len(t, limited, 5)
	assert.False(t, limited[0].Has("mm"))
}

func TestTimeseries_InsertValidation(t *testing.T) {
	ctx := context.Background()
	ts := newTimeseries(t, openDB(t))

	_, err := ts.Insert(ctx, value.D("mm", value.D("tag", "a")))
	require.ErrorIs(t, err, docstore.ErrBadValue)
	_, err = ts.Insert(ctx, value.D("tm", "yesterday"))
	require.ErrorIs(t, err, docstore.ErrBadValue)
}

func TestTimeseries_DropCollection(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	ts := newTimeseries(t, db)

	_, err := db.CreateCollection(ctx, "ts")
	require.ErrorIs(t, err, docstore.ErrNamespaceExists)
	_, err = db.Collection("ts")
	require.ErrorIs(t, err, docstore.ErrNamespaceNotFound)
	assert.Equal(t, []string{docstore.BucketsPrefix + "ts", "ts"}, db.CollectionNames())

	require.NoError(t, db.DropCollection(ctx, docstore.BucketsPrefix+"ts"))
	assert.Empty(t, db.CollectionNames())
	_, err = ts.Insert(ctx, value.D("tm", time.Now()))
	require.ErrorIs(t, err, docstore.ErrNamespaceNotFound)
	_, err = db.Timeseries("ts")
	require.ErrorIs(t, err, docstore.ErrNamespaceNotFound)
}
