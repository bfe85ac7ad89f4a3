// Package testutil provides deterministic fixtures for docstore tests.
//
//	rng := testutil.NewRNG(4711)
//	docs := rng.Documents(500, 0.2)        // a and b missing 20% of the time
//	id := rng.BinID(16)                    // BinData _id
//	evs := rng.Events(100, t0, time.Minute, "tm", "mm", "x", "y")
//
// BruteForceFind evaluates a filter against every document and is the
// reference that planner results are compared with.
package testutil
