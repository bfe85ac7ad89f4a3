// Package index implements secondary indexes over a clustered collection.
//
// An index maps key tuples, encoded with keycodec in key pattern order and
// direction, to the primary key of the record. Entries never copy records.
//
// The Manager owns the index set of one collection. Creating an index
// validates the descriptor, backfills it from the clustered store in batches
// while mirroring concurrent writes, and publishes it only when the build
// succeeds:
//
//	kp, err := index.ParseKeyPattern(value.D("a", 1, "b", -1))
//	desc := index.NewDescriptor(kp, index.Options{Sparse: true})
//	desc, created, err := mgr.Create(ctx, desc, store, index.BuildOptions{})
//
// Hidden indexes are maintained but are not offered to the planner.
package index
