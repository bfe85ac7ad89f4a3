// Package blobstore abstracts where database snapshots are kept.
//
// A checkpoint writes one immutable snapshot blob and then atomically
// replaces a small pointer blob naming it. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, memory-mapped reads, rename-on-close writes
//   - MemoryStore: in-process, for tests
//   - CachingStore: block cache in front of any remote store
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store, s3.ExpressStore: Amazon S3 and S3 Express One Zone
//   - s3.DDBCommitStore: S3 with DynamoDB conditional writes for the pointer
package blobstore
