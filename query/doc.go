// Package query parses find filters and projections and evaluates them.
//
// A Filter is a conjunction of per-field predicates. Comparison operators are
// type-bracketed: {$gt: 5} only matches numbers. BoundsFor turns the
// predicates on one path into intervals over keycodec encodings, which the
// planner uses to seek indexes.
package query
