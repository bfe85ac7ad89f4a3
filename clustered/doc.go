// Package clustered implements a clustered record store: records are kept in a
// btree ordered by the keycodec encoding of their _id and there is no separate
// primary key index.
//
// Mutations accept a Hook that runs under the store write lock before the
// change becomes visible. Callers use it to maintain secondary indexes in the
// same critical section as the record change.
//
//	s := clustered.New()
//	err := s.Insert(value.D("_id", 1, "x", "a"), nil)
//	cur := s.Scan(clustered.KeyRange(value.Int(0), true, value.Int(10), false), keycodec.Ascending)
//	for {
//	    rec, ok, err := cur.Next(ctx)
//	    ...
//	}
package clustered
