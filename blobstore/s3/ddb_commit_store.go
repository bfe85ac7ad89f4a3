package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/docstore/blobstore"
	"github.com/hupe1980/docstore/snapshot"
)

// ErrConcurrentModification is returned when another writer published the
// same pointer version first.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitStore keeps snapshot blobs in an underlying store and the CURRENT
// pointer in DynamoDB. Every checkpoint appends version n+1 with a
// conditional put, so two processes checkpointing the same database cannot
// both publish.
//
// Table schema: partition key "store" (S), sort key "seq" (N).
//
//	aws dynamodb create-table \
//	  --table-name docstore-snapshots \
//	  --attribute-definitions AttributeName=store,AttributeType=S AttributeName=seq,AttributeType=N \
//	  --key-schema AttributeName=store,KeyType=HASH AttributeName=seq,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	blobstore.BlobStore
	ddb   DDBClient
	table string
	id    string
}

// NewDDBCommitStore wraps data. id names the database in the table,
// typically "s3://bucket/prefix".
func NewDDBCommitStore(data blobstore.BlobStore, ddb DDBClient, table, id string) *DDBCommitStore {
	return &DDBCommitStore{BlobStore: data, ddb: ddb, table: table, id: id}
}

// Open serves CURRENT from DynamoDB and everything else from the data store.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != snapshot.CurrentName {
		return s.BlobStore.Open(ctx, name)
	}
	seq, target, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		return nil, blobstore.ErrNotFound
	}
	return blobstore.BytesBlob([]byte(target)), nil
}

// Put publishes CURRENT as the next version; other blobs go to the data store.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != snapshot.CurrentName {
		return s.BlobStore.Put(ctx, name, data)
	}
	seq, _, err := s.latest(ctx)
	if err != nil {
		return err
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"store":    &types.AttributeValueMemberS{Value: s.id},
			"seq":      &types.AttributeValueMemberN{Value: strconv.FormatUint(seq+1, 10)},
			"snapshot": &types.AttributeValueMemberS{Value: string(data)},
		},
		ConditionExpression: aws.String("attribute_not_exists(seq)"),
	})
	var condErr *types.ConditionalCheckFailedException
	switch {
	case errors.As(err, &condErr):
		return ErrConcurrentModification
	case err != nil:
		return fmt.Errorf("failed to publish %s: %w", snapshot.CurrentName, err)
	}
	return nil
}

// latest returns the newest pointer version and its target, or 0 when none
// was published.
func (s *DDBCommitStore) latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("store = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: s.id},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to query DynamoDB: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	seqAttr, ok := item["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid seq attribute in DynamoDB")
	}
	target, ok := item["snapshot"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid snapshot attribute in DynamoDB")
	}
	seq, err := strconv.ParseUint(seqAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse seq: %w", err)
	}
	return seq, target.Value, nil
}
