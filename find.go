package docstore

import (
	"context"
	"time"

	"github.com/hupe1980/docstore/planner"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/value"
)

// FindOptions shape a find.
type FindOptions struct {
	// Projection is an inclusion or exclusion document such as {a: 1, _id: 0}.
	Projection value.Document
	// Hint forces an index by name or key pattern, or a collection scan with
	// planner.HintNatural. Hidden indexes cannot be hinted.
	Hint planner.Hint
	// Sort is the scan direction: 1 (default) or -1.
	Sort int
	// Limit caps the number of results. Zero means no limit.
	Limit int
}

func (o FindOptions) request(filter value.Document) (planner.Request, error) {
	f, err := query.Parse(filter)
	if err != nil {
		return planner.Request{}, translateError(err)
	}
	p, err := query.ParseProjection(o.Projection)
	if err != nil {
		return planner.Request{}, translateError(err)
	}
	return planner.Request{
		Filter:     f,
		Projection: p,
		Hint:       o.Hint,
		Direction:  o.Sort,
		Limit:      o.Limit,
	}, nil
}

// Find returns the documents matching filter.
func (c *Collection) Find(ctx context.Context, filter value.Document, opts FindOptions) ([]value.Document, error) {
	docs, _, _, err := c.find(ctx, filter, opts)
	return docs, err
}

// Explain runs the query like Find and describes the winning plan with its
// execution statistics.
func (c *Collection) Explain(ctx context.Context, filter value.Document, opts FindOptions) (planner.Explain, error) {
	_, plan, st, err := c.find(ctx, filter, opts)
	if err != nil {
		return planner.Explain{}, err
	}
	return planner.NewExplain(c.name, plan, st), nil
}

func (c *Collection) find(ctx context.Context, filter value.Document, opts FindOptions) ([]value.Document, *planner.Plan, planner.Stats, error) {
	start := time.Now()
	req, err := opts.request(filter)
	if err != nil {
		c.db.opts.metricsCollector.RecordFind(c.name, "", false, 0, time.Since(start), err)
		return nil, nil, planner.Stats{}, err
	}
	docs, plan, st, err := c.execute(ctx, req)
	stage, indexOnly := "", false
	if plan != nil {
		stage, indexOnly = plan.Stage, plan.IndexOnly
	}
	c.db.opts.metricsCollector.RecordFind(c.name, stage, indexOnly, len(docs), time.Since(start), err)
	return docs, plan, st, err
}

func (c *Collection) execute(ctx context.Context, req planner.Request) ([]value.Document, *planner.Plan, planner.Stats, error) {
	if c.dropped.Load() {
		return nil, nil, planner.Stats{}, errorf(ErrNamespaceNotFound, "collection %q was dropped", c.name)
	}
	if c.db.closed.Load() {
		return nil, nil, planner.Stats{}, ErrClosed
	}
	plan, err := c.planner.Plan(c.indexes, req)
	if err != nil {
		return nil, nil, planner.Stats{}, translateError(err)
	}
	docs, st, err := planner.Execute(ctx, plan, c.store)
	if err != nil {
		return nil, plan, st, translateError(err)
	}
	return docs, plan, st, nil
}
