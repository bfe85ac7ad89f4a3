// Package docstore provides an embeddable document store with clustered
// collections, secondary indexes and time-series views.
//
// # Clustered collections
//
// Records are stored in _id order in a single ordered tree; there is no
// separate primary key index. Secondary indexes map key tuples to _id values
// and are maintained in the same critical section as the record they index.
//
//	ctx := context.Background()
//	db, _ := docstore.Open(ctx)
//	coll, _ := db.CreateCollection(ctx, "items")
//	coll.Insert(ctx, value.D("_id", 1, "a", 10))
//	coll.CreateIndex(ctx, value.D("a", 1), index.Options{})
//
// # Index-only queries
//
// A query whose filter and inclusion projection use only fields of a visible
// index key is answered from the index without fetching records:
//
//	docs, _ := coll.Find(ctx, value.D("a", value.D("$gte", 5)), docstore.FindOptions{
//	    Projection: value.D("_id", 0, "a", 1),
//	})
//	e, _ := coll.Explain(ctx, filter, opts) // e.IndexOnly == true
//
// Hidden indexes are maintained but never planned, and hinting one fails
// with ErrBadValue.
//
// # Time-series collections
//
// A time-series view stores events in bucket documents of the collection
// system.buckets.<name>. Index specs on the view are validated and
// translated onto the bucket collection:
//
//	ts, _ := db.CreateTimeseries(ctx, "weather", timeseries.Options{TimeField: "tm", MetaField: "mm"})
//	ts.CreateIndex(ctx, value.D("tm", 1, "mm.tag", 1), index.Options{})
//	// bucket index: {control.min.tm: 1, control.max.tm: 1, meta.tag: 1}
//
// Sparse indexes over measurement fields are rejected with ErrInvalidOptions.
//
// # Durability
//
// With WithWAL every committed mutation is logged; with WithBlobStore,
// Checkpoint writes a compressed snapshot and truncates the log. Open
// restores the latest snapshot and replays the log.
//
//	db, _ := docstore.Open(ctx,
//	    docstore.WithWAL("./wal"),
//	    docstore.WithBlobStore(blobstore.NewLocalStore("./snapshots")),
//	)
//
// # Errors
//
// Errors wrap one of the coded Err* values. Use errors.Is to match them and
// CodeOf to read the numeric code.
package docstore
