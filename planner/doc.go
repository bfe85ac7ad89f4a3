// Package planner chooses and executes access paths for finds on a clustered
// collection.
//
// Three access paths exist: a collection scan over the clustered store, a
// clustered key scan when the filter restricts _id, and a secondary index
// scan. An index scan is index-only (covered) when every filter path and
// every projected path is an ordinary key component of the index or _id,
// which is resolved from the primary key stored in each entry. Otherwise each
// matching entry fetches its record.
//
//	plan, err := p.Plan(mgr, planner.Request{Filter: f, Projection: proj})
//	docs, stats, err := planner.Execute(ctx, plan, store)
//
// Bounds are computed over keycodec encodings and seek spans are a superset
// of the matching keys; each examined key is checked against the bounds of
// every component, so NReturned is exact.
package planner
