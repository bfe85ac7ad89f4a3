package s3

import (
	"bytes"
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/hupe1980/docstore/blobstore"
)

// ExpressStore is a Store for S3 Express One Zone directory buckets (names
// ending in --x-s3). Directory buckets accept If-None-Match writes, so
// snapshot.Store saves through PutIfNotExists and a snapshot name is
// written at most once.
type ExpressStore struct {
	*Store
}

var _ blobstore.ConditionalPutter = (*ExpressStore)(nil)

// NewExpressStore creates a store in a directory bucket.
func NewExpressStore(client Client, bucket, rootPrefix string, optFns ...StoreOption) *ExpressStore {
	return &ExpressStore{Store: NewStore(client, bucket, rootPrefix, optFns...)}
}

// PutIfNotExists writes data under name unless the key exists, in which case
// it returns blobstore.ErrExists.
func (s *ExpressStore) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(s.bucket),
		Key:            aws.String(s.key(name)),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(computeCRC32C(data)),
		IfNoneMatch:    aws.String("*"),
	})
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return blobstore.ErrExists
		}
	}
	return err
}
