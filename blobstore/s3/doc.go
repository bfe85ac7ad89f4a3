// Package s3 stores docstore snapshots in Amazon S3.
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "backups", "docstore/")
//	db, err := docstore.Open(ctx, docstore.WithBlobStore(store))
//
// Snapshots are streamed with multipart uploads and CRC32C checksums. Reads
// use ranged GETs. ExpressStore targets S3 Express One Zone directory
// buckets, and DDBCommitStore keeps the CURRENT pointer in DynamoDB so
// concurrent checkpoints cannot overwrite each other.
package s3
