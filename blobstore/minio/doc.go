// Package minio stores docstore snapshots in MinIO or any other
// S3-compatible service (Ceph, Garage, SeaweedFS) using the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "backups", "docstore/")
//	db, err := docstore.Open(ctx, docstore.WithBlobStore(store))
//
// Snapshots are streamed with PutObject of unknown length, so no AWS SDK
// dependency is required.
package minio
