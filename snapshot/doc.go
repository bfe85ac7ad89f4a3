// Package snapshot reads and writes checkpoint files.
//
// A snapshot holds the catalog of every collection (names, time-series
// options and index specs) and the records of every collection. It is the
// base a WAL replay starts from.
//
// # File Format
//
//	[magic "DSS1":4][version:1][compression:1][codecLen:1][codec]
//	[rawLen:8][payloadLen:8][payload][crc32c(payload):4]
//
// The uncompressed payload is the codec-encoded catalog, length prefixed,
// followed by the BSON records of each collection in catalog order.
//
// Snapshots are stored in a blobstore.BlobStore under snapshots/ and the
// CURRENT blob names the latest one.
package snapshot
