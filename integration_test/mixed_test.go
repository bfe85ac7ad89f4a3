package integration_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docstore"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/testutil"
	"github.com/hupe1980/docstore/value"
)

// model mirrors a collection as a map keyed by the rendered _id.
type model map[string]value.Document

func (m model) docs() []value.Document {
	out := make([]value.Document, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	testutil.SortByID(out)
	return out
}

var mixedFilters = []value.Document{
	value.D("a", 3),
	value.D("a", value.D("$gte", 2, "$lt", 5), "b", value.D("$gt", 50)),
	value.D("tag", "t0", "a", value.D("$lte", 4)),
	value.D("b", value.Null()),
	value.D("b", value.D("$exists", false)),
	value.D("a", value.D("$in", []any{1, 7, 9})),
	value.D("_id", value.D("$gte", 100, "$lt", 300)),
	value.D("_id", value.D("$gt", 50), "a", 0),
}

// checkAgainstModel runs every filter with and without hints and compares
// the results with a brute-force scan of m.
func checkAgainstModel(t *testing.T, c *docstore.Collection, m model) {
	t.Helper()
	ctx := context.Background()
	docs := m.docs()

	hints := []planner.Hint{{}, planner.HintNatural(1), planner.HintNatural(-1)}
	for _, d := range c.Indexes() {
		if !d.Hidden && !d.Sparse {
			hints = append(hints, planner.HintName(d.Name))
		}
	}

	for _, filter := range mixedFilters {
		f, err := query.Parse(filter)
		require.NoError(t, err)
		want := testutil.IDs(testutil.BruteForceFind(docs, f))

		for _, h := range hints {
			got, err := c.Find(ctx, filter, docstore.FindOptions{Hint: h})
			require.NoError(t, err, "%s hint %s", filter, h)
			testutil.SortByID(got)
			if diff := cmp.Diff(want, testutil.IDs(got)); diff != "" {
				t.Fatalf("%s hint %s (-want +got):\n%s", filter, h, diff)
			}
		}
	}
}

func TestMixedWorkload(t *testing.T) {
	ctx := context.Background()
	db, err := docstore.Open(ctx,
		docstore.WithLogger(docstore.NoopLogger()),
		docstore.WithWAL(t.TempDir()),
	)
	require.NoError(t, err)
	defer db.Close()

	c, err := db.CreateCollection(ctx, "mixed")
	require.NoError(t, err)
	_, err = c.CreateIndex(ctx, value.D("a", 1, "b", 1), index.Options{})
	require.NoError(t, err)
	_, err = c.CreateIndex(ctx, value.D("tag", 1, "a", -1), index.Options{})
	require.NoError(t, err)
	_, err = c.CreateIndex(ctx, value.D("b", 1), index.Options{Sparse: true})
	require.NoError(t, err)

	rng := testutil.NewRNG(2024)
	m := model{}
	for round := range 5 {
		for _, d := range rng.Documents(200, 0.2) {
			id, _ := d.ID()
			n, _ := id.AsInt64()
			d = d.Set(value.IDField, value.Int(n+int64(round)*1000))
			_, err := c.Insert(ctx, d)
			require.NoError(t, err)
			id, _ = d.ID()
			m[id.String()] = d
		}

		for _, d := range m.docs() {
			id, _ := d.ID()
			switch rng.Intn(4) {
			case 0:
				require.NoError(t, c.Delete(ctx, id))
				delete(m, id.String())
			case 1:
				nd, err := c.Update(ctx, id, value.D("a", rng.Intn(10)))
				require.NoError(t, err)
				m[id.String()] = nd
			}
		}

		// Toggle an index between rounds; hidden indexes stay maintained.
		if round%2 == 0 {
			_, err = c.HideIndex(ctx, index.ByName("a_1_b_1"))
		} else {
			_, err = c.UnhideIndex(ctx, index.ByName("a_1_b_1"))
		}
		require.NoError(t, err)

		t.Run(fmt.Sprintf("round=%d", round), func(t *testing.T) {
			require.Equal(t, len(m), c.Count())
			checkAgainstModel(t, c, m)
		})
	}
}
