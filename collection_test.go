package docstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docstore"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/testutil"
	"github.com/hupe1980/docstore/value"
)

func openDB(t *testing.T, opts ...docstore.Option) *docstore.DB {
	t.Helper()
	db, err := docstore.Open(context.Background(), append([]docstore.Option{docstore.WithLogger(docstore.NoopLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newCollection(t *testing.T, db *docstore.DB, name string) *docstore.Collection {
	t.Helper()
	c, err := db.CreateCollection(context.Background(), name)
	require.NoError(t, err)
	return c
}

func binKey(t *testing.T, b ...byte) value.Value {
	t.Helper()
	k := make([]byte, 16)
	copy(k, b)
	v, err := value.BinData(value.SubtypeGeneric, k)
	require.NoError(t, err)
	return v
}

func ids(docs []value.Document) []value.Value { return testutil.IDs(docs) }

func TestCollection_BinaryIDRanges(t *testing.T) {
	ctx := context.Background()
	c := newCollection(t, openDB(t), "bin")

	k0, k1, k2, k3 := binKey(t, 0x00, 0x01), binKey(t, 0x00, 0x02), binKey(t, 0x7f), binKey(t, 0xff, 0x00)
	// Inserted out of order; records are kept in _id order.
	for _, k := range []value.Value{k2, k0, k3, k1} {
		_, err := c.Insert(ctx, value.D("_id", k, "v", 1))
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter value.Document
		want   []value.Value
	}{
		{"closed range", value.D("_id", value.D("$gte", k1, "$lte", k2)), []value.Value{k1, k2}},
		{"lt lowest", value.D("_id", value.D("$lt", k0)), []value.Value{}},
		{"gt highest", value.D("_id", value.D("$gt", k3)), []value.Value{}},
		{"lte", value.D("_id", value.D("$lte", k1)), []value.Value{k0, k1}},
		{"gte", value.D("_id", value.D("$gte", k2)), []value.Value{k2, k3}},
		{"half open", value.D("_id", value.D("$gt", k0, "$lt", k3)), []value.Value{k1, k2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := c.Find(ctx, tt.filter, docstore.FindOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(docs))

			e, err := c.Explain(ctx, tt.filter, docstore.FindOptions{})
			require.NoError(t, err)
			assert.Equal(t, planner.StageClusteredIXScan, e.Stages[len(e.Stages)-1])
			assert.Equal(t, len(tt.want), e.Stats.NReturned)
		})
	}
}

func TestCollection_CRUD(t *testing.T) {
	ctx := context.Background()
	c := newCollection(t, openDB(t), "items")

	id, err := c.Insert(ctx, value.D("a", 1))
	require.NoError(t, err)
	assert.Equal(t, value.KindObjectID, id.Kind)

	_, err = c.Insert(ctx, value.D("_id", id, "a", 2))
	require.ErrorIs(t, err, docstore.ErrDuplicateKey)
	assert.Equal(t, docstore.CodeDuplicateKey, docstore.CodeOf(err))

	doc, err := c.Update(ctx, id, value.D("b.c", "x"))
	require.NoError(t, err)
	v, ok := doc.Lookup("b.c")
	require.True(t, ok)
	assert.Equal(t, value.String("x"), v)

	_, err = c.Update(ctx, id, value.D("_id", 5))
	require.ErrorIs(t, err, docstore.ErrImmutableKey)

	doc, err = c.Replace(ctx, id, value.D("z", true))
	require.NoError(t, err)
	assert.False(t, doc.Has("a"))

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	require.NoError(t, c.Delete(ctx, id))
	_, err = c.Get(ctx, id)
	require.ErrorIs(t, err, docstore.ErrNotFound)
	err = c.Delete(ctx, id)
	require.ErrorIs(t, err, docstore.ErrNotFound)
	assert.Equal(t, 0, c.Count())
}

func TestCollection_IndexOnlyQuery(t *testing.T) {
	ctx := context.Background()
	c := newCollection(t, openDB(t), "items")

	docs := testutil.NewRNG(7).Documents(200, 0.1)
	_, err := c.InsertMany(ctx, docs)
	require.NoError(t, err)

	_, err = c.CreateIndex(ctx, value.D("a", 1, "b", 1), index.Options{})
	require.NoError(t, err)

	filter := value.D("a", value.D("$gte", 3, "$lt", 6))
	opts := docstore.FindOptions{Projection: value.D("_id", 0, "a", 1, "b", 1)}

	e, err := c.Explain(ctx, filter, opts)
	require.NoError(t, err)
	assert.True(t, e.IndexOnly)
	assert.Equal(t, "a_1_b_1", e.IndexName)
	assert.Equal(t, 0, e.Stats.DocsExamined)

	f, err := query.Parse(filter)
	require.NoError(t, err)
	want := testutil.BruteForceFind(docs, f)

	got, err := c.Find(ctx, filter, opts)
	require.NoError(t, err)
	assert.Len(t, got, len(want))
	assert.Equal(t, len(want), e.Stats.NReturned)

	// _id is not in the index, so including it needs a fetch.
	e, err = c.Explain(ctx, filter, docstore.FindOptions{Projection: value.D("a", 1)})
	require.NoError(t, err)
	assert.False(t, e.IndexOnly)
	assert.Contains(t, e.Stages, planner.StageFetch)
}

func TestCollection_IDOnlyProjection(t *testing.T) {
	ctx := context.Background()
	c := newCollection(t, openDB(t), "items")
	k0 := value.MustBinData(value.SubtypeGeneric, "AAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	k1 := value.MustBinData(value.SubtypeGeneric, "AAAAAAAAAAAAAAAAAAAAAAAAAAAB")
	for _, k := range []value.Value{k0, k1} {
		_, err := c.Insert(ctx, value.D("_id", k, "a", 1))
		require.NoError(t, err)
	}

	filter := value.D("_id", value.D("$lte", k1))
	opts := docstore.FindOptions{Projection: value.D("_id", 1)}

	docs, err := c.Find(ctx, filter, opts)
	require.NoError(t, err)
	assert.Equal(t, []value.Document{value.D("_id", k0), value.D("_id", k1)}, docs)

	e, err := c.Explain(ctx, filter, opts)
	require.NoError(t, err)
	assert.True(t, e.IndexOnly)
	assert.Contains(t, e.Stages, planner.StageClusteredIXScan)
	assert.Zero(t, e.Stats.DocsExamined)
	assert.Equal(t, 2, e.Stats.NReturned)
}

func TestCollection_HiddenIndex(t *testing.T) {
	ctx := context.Background()
	c := newCollection(t, openDB(t), "items")
	_, err := c.InsertMany(ctx, testutil.NewRNG(1).Documents(50, 0))
	require.NoError(t, err)

	_, err = c.CreateIndex(ctx, value.D("a", 1), index.Options{})
	require.NoError(t, err)

	filter := value.D("a", 4)
	byName := docstore.FindOptions{Hint: planner.HintName("a_1")}
	byKey := docstore.FindOptions{Hint: planner.HintKey(index.MustParseKeyPattern(value.D("a", 1)))}

	before, err := c.Find(ctx, filter, byName)
	require.NoError(t, err)

	d, err := c.HideIndex(ctx, index.ByName("a_1"))
	require.NoError(t, err)
	assert.True(t, d.Hidden)

	for _, opts := range []docstore.FindOptions{byName, byKey} {
		_, err = c.Find(ctx, filter, opts)
		require.ErrorIs(t, err, docstore.ErrBadValue)
		assert.Equal(t, docstore.CodeBadValue, docstore.CodeOf(err))
	}

	// Unhinted queries fall back to a collection scan.
	e, err := c.Explain(ctx, filter, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{planner.StageCollScan}, e.Stages)

	// Writes while hidden are still indexed.
	_, err = c.Insert(ctx, value.D("_id", 1000, "a", 4))
	require.NoError(t, err)

	_, err = c.UnhideIndex(ctx, index.ByName("a_1"))
	require.NoError(t, err)
	after, err := c.Find(ctx, filter, byKey)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
}

func TestCollection_IndexCatalog(t *testing.T) {
	ctx := context.Background()
	c := newCollection(t, openDB(t), "items")

	d, err := c.CreateIndex(ctx, value.D("a", 1), index.Options{})
	require.NoError(t, err)
	assert.Equal(t, "a_1", d.Name)

	// Identical spec is a no-op.
	_, err = c.CreateIndex(ctx, value.D("a", 1), index.Options{})
	require.NoError(t, err)
	assert.Len(t, c.Indexes(), 1)

	_, err = c.CreateIndex(ctx, value.D("a", 1), index.Options{Sparse: true})
	require.ErrorIs(t, err, docstore.ErrIndexOptionsConflict)

	_, err = c.CreateIndex(ctx, value.D("b", 1), index.Options{Name: "a_1"})
	require.ErrorIs(t, err, docstore.ErrIndexKeySpecsConflict)

	_, err = c.CreateIndex(ctx, value.D("a", 0), index.Options{})
	require.ErrorIs(t, err, docstore.ErrBadValue)

	_, err = c.DropIndex(ctx, index.ByName("nope"))
	require.ErrorIs(t, err, docstore.ErrIndexNotFound)

	specs := c.IndexSpecs()
	require.Len(t, specs, 1)
	name, _ := specs[0].Get("name")
	assert.Equal(t, value.String("a_1"), name)

	_, err = c.DropIndex(ctx, index.ByKey(index.MustParseKeyPattern(value.D("a", 1))))
	require.NoError(t, err)
	assert.Empty(t, c.Indexes())
}

func TestCollection_UniqueIndex(t *testing.T) {
	ctx := context.Background()
	c := newCollection(t, openDB(t), "users")

	_, err := c.CreateIndex(ctx, value.D("email", 1), index.Options{Unique: true})
	require.NoError(t, err)

	_, err = c.Insert(ctx, value.D("_id", 1, "email", "a@x"))
	require.NoError(t, err)
	_, err = c.Insert(ctx, value.D("_id", 2, "email", "a@x"))
	require.ErrorIs(t, err, docstore.ErrDuplicateKey)

	// The failed insert left nothing behind.
	_, err = c.Get(ctx, value.Int(2))
	require.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = c.Insert(ctx, value.D("_id", 2, "email", "b@x"))
	require.NoError(t, err)
	_, err = c.Update(ctx, value.Int(2), value.D("email", "a@x"))
	require.ErrorIs(t, err, docstore.ErrDuplicateKey)

	got, err := c.Find(ctx, value.D("email", "b@x"), docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Int(2)}, ids(got))

	// A unique build over duplicates fails and leaves no index.
	_, err = c.Insert(ctx, value.D("_id", 3, "email", "c@x", "n", 1))
	require.NoError(t, err)
	_, err = c.Insert(ctx, value.D("_id", 4, "email", "d@x", "n", 1))
	require.NoError(t, err)
	_, err = c.CreateIndex(ctx, value.D("n", 1), index.Options{Unique: true})
	require.ErrorIs(t, err, docstore.ErrDuplicateKey)
	assert.Len(t, c.Indexes(), 1)

	// Without sparse, a missing field keys as null and collides like one.
	_, err = c.Insert(ctx, value.D("_id", 5))
	require.NoError(t, err)
	_, err = c.Insert(ctx, value.D("_id", 6))
	require.ErrorIs(t, err, docstore.ErrDuplicateKey)
	assert.Contains(t, err.Error(), "dup key [null]")
	_, err = c.Insert(ctx, value.D("_id", 6, "email", nil))
	require.ErrorIs(t, err, docstore.ErrDuplicateKey)
}

func TestCollection_FindMatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	c := newCollection(t, openDB(t), "items")

	docs := testutil.NewRNG(42).Documents(500, 0.2)
	_, err := c.InsertMany(ctx, docs)
	require.NoError(t, err)
	_, err = c.CreateIndex(ctx, value.D("tag", 1, "a", -1), index.Options{})
	require.NoError(t, err)
	_, err = c.CreateIndex(ctx, value.D("b", 1), index.Options{Sparse: true})
	require.NoError(t, err)

	filters := []value.Document{
		value.D("tag", "t1"),
		value.D("tag", "t2", "a", value.D("$gt", 4)),
		value.D("b", value.D("$gte", 10, "$lt", 20)),
		value.D("b", value.Null()),
		value.D("a", value.D("$in", value.Array(value.Int(1), value.Int(3)))),
		value.D("_id", value.D("$gte", 100, "$lt", 150), "a", 2),
	}
	for _, filter := range filters {
		t.Run(filter.String(), func(t *testing.T) {
			f, err := query.Parse(filter)
			require.NoError(t, err)
			want := testutil.BruteForceFind(docs, f)

			got, err := c.Find(ctx, filter, docstore.FindOptions{})
			require.NoError(t, err)
			testutil.SortByID(got)
			assert.Equal(t, ids(want), ids(got))
		})
	}
}

func TestCollection_Dropped(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	c := newCollection(t, db, "items")

	_, err := db.CreateCollection(ctx, "items")
	require.ErrorIs(t, err, docstore.ErrNamespaceExists)

	require.NoError(t, db.DropCollection(ctx, "items"))
	_, err = c.Insert(ctx, value.D("a", 1))
	require.ErrorIs(t, err, docstore.ErrNamespaceNotFound)
	_, err = db.Collection("items")
	require.ErrorIs(t, err, docstore.ErrNamespaceNotFound)

	err = db.DropCollection(ctx, "items")
	require.ErrorIs(t, err, docstore.ErrNamespaceNotFound)
}

func TestCreateCollection_InvalidName(t *testing.T) {
	db := openDB(t)
	for _, name := range []string{"", "a$b", "system.x"} {
		_, err := db.CreateCollection(context.Background(), name)
		require.ErrorIs(t, err, docstore.ErrInvalidOptions, name)
	}
}

func TestCollection_Metrics(t *testing.T) {
	ctx := context.Background()
	m := &docstore.BasicMetricsCollector{}
	c := newCollection(t, openDB(t, docstore.WithMetricsCollector(m)), "items")

	_, err := c.Insert(ctx, value.D("_id", 1, "a", 1))
	require.NoError(t, err)
	_, err = c.Insert(ctx, value.D("_id", 1, "a", 1))
	require.Error(t, err)
	_, err = c.Find(ctx, value.D("a", 1), docstore.FindOptions{})
	require.NoError(t, err)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.InsertCount)
	assert.Equal(t, int64(1), stats.InsertErrors)
	assert.Equal(t, int64(1), stats.FindCount)
}

func TestErrorsAreDistinct(t *testing.T) {
	errs := []error{
		docstore.ErrBadValue, docstore.ErrNamespaceNotFound, docstore.ErrIndexNotFound,
		docstore.ErrNotFound, docstore.ErrNamespaceExists, docstore.ErrImmutableKey,
		docstore.ErrCannotCreateIndex, docstore.ErrInvalidOptions, docstore.ErrIndexOptionsConflict,
		docstore.ErrIndexKeySpecsConflict, docstore.ErrIndexBuildAborted, docstore.ErrDuplicateKey,
	}
	for i, a := range errs {
		for j, b := range errs {
			assert.Equal(t, i == j, errors.Is(a, b), "%v vs %v", a, b)
		}
	}
	assert.Equal(t, docstore.Code(0), docstore.CodeOf(errors.New("plain")))
	assert.Equal(t, "InvalidOptions", docstore.CodeInvalidOptions.String())
	assert.Equal(t, "Code(1)", docstore.Code(1).String())
}
