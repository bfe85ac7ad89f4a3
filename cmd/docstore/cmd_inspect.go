package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/docstore/blobstore"
	miniostore "github.com/hupe1980/docstore/blobstore/minio"
	s3store "github.com/hupe1980/docstore/blobstore/s3"
	"github.com/hupe1980/docstore/snapshot"
)

// openStore builds the blob store selected by the flags.
func openStore(ctx context.Context) (blobstore.BlobStore, error) {
	switch storeKind {
	case "local":
		if _, err := os.Stat(localDir); err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(localDir), nil

	case "s3", "s3express":
		if bucket == "" {
			return nil, fmt.Errorf("--bucket is required for the %s store", storeKind)
		}
		var optFns []func(*config.LoadOptions) error
		if region != "" {
			optFns = append(optFns, config.WithRegion(region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		var store blobstore.BlobStore = s3store.NewStore(client, bucket, prefix)
		if storeKind == "s3express" {
			store = s3store.NewExpressStore(client, bucket, prefix)
		}
		if ddbTable != "" {
			store = s3store.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), ddbTable, "s3://"+bucket+"/"+prefix)
		}
		return withCache(store)

	case "minio":
		if bucket == "" || endpoint == "" {
			return nil, fmt.Errorf("--bucket and --endpoint are required for the minio store")
		}
		client, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: !insecure,
			Region: region,
		})
		if err != nil {
			return nil, err
		}
		return withCache(miniostore.NewStore(client, bucket, prefix))
	}
	return nil, fmt.Errorf("unknown store %q", storeKind)
}

// withCache puts a block cache in front of a remote store so snapshot reads
// are fetched in ranged blocks.
func withCache(store blobstore.BlobStore) (blobstore.BlobStore, error) {
	if cacheBlocks <= 0 {
		return store, nil
	}
	cache, err := blobstore.NewLRUBlockCache(cacheBlocks)
	if err != nil {
		return nil, err
	}
	return blobstore.NewCachingStore(store, cache, blobstore.DefaultBlockSize), nil
}

type indexSummary struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Sparse bool   `json:"sparse,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
	Unique bool   `json:"unique,omitempty"`
}

type collectionSummary struct {
	Name       string               `json:"name"`
	Timeseries *snapshot.Timeseries `json:"timeseries,omitempty"`
	Count      int                  `json:"count"`
	Indexes    []indexSummary       `json:"indexes,omitempty"`
	Docs       []string             `json:"docs,omitempty"`
}

type inspectOutput struct {
	Name        string              `json:"name"`
	Version     uint8               `json:"version"`
	Compression string              `json:"compression"`
	Codec       string              `json:"codec"`
	RawSize     uint64              `json:"rawSize"`
	PayloadSize uint64              `json:"payloadSize"`
	Seq         uint64              `json:"seq"`
	Created     string              `json:"created"`
	Records     int                 `json:"records"`
	Collections []collectionSummary `json:"collections"`
}

func summarize(name string, snap *snapshot.Snapshot, docs bool) inspectOutput {
	out := inspectOutput{
		Name:        name,
		Version:     snap.Header.Version,
		Compression: snap.Header.Compression.String(),
		Codec:       snap.Header.Codec,
		RawSize:     snap.Header.RawSize,
		PayloadSize: snap.Header.PayloadSize,
		Seq:         snap.Catalog.Seq,
		Created:     snap.Catalog.Created.Format("2006-01-02T15:04:05Z07:00"),
		Records:     snap.Catalog.Records(),
	}
	for _, c := range snap.Catalog.Collections {
		cs := collectionSummary{Name: c.Name, Timeseries: c.Timeseries, Count: len(c.Docs)}
		for _, ix := range c.Indexes {
			cs.Indexes = append(cs.Indexes, indexSummary{
				Name:   ix.Name,
				Key:    keyString(ix),
				Sparse: ix.Sparse,
				Hidden: ix.Hidden,
				Unique: ix.Unique,
			})
		}
		if docs {
			for _, d := range c.Docs {
				cs.Docs = append(cs.Docs, d.String())
			}
		}
		out.Collections = append(out.Collections, cs)
	}
	return out
}

// keyString renders a persisted key pattern like {a: 1, loc: "2dsphere"}.
func keyString(ix snapshot.Index) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, kf := range ix.Key {
		if i > 0 {
			sb.WriteString(", ")
		}
		if kf.Type != "" {
			fmt.Fprintf(&sb, "%s: %q", kf.Path, kf.Type)
		} else {
			fmt.Fprintf(&sb, "%s: %d", kf.Path, kf.Dir)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	blobs, err := openStore(ctx)
	if err != nil {
		return err
	}
	store := snapshot.NewStore(blobs, nil, snapshot.EncodeOptions{})

	var (
		snap *snapshot.Snapshot
		name string
	)
	if len(args) == 1 {
		name = args[0]
		snap, err = store.Load(ctx, name)
	} else {
		snap, name, err = store.Latest(ctx)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summarize(name, snap, showDocs))
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	blobs, err := openStore(ctx)
	if err != nil {
		return err
	}
	names, err := snapshot.NewStore(blobs, nil, snapshot.EncodeOptions{}).List(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}
