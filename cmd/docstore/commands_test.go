package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docstore"
	"github.com/hupe1980/docstore/blobstore"
	s3store "github.com/hupe1980/docstore/blobstore/s3"
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/value"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		sparse, showDocs, storeKind, localDir = false, false, "local", "."
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTranslate(t *testing.T) {
	out, err := run(t, "translate", "--time", "tm", "--meta", "mm", `{"mm.tag": 1, "tm": -1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "name:   mm.tag_1_tm_-1")
	assert.Contains(t, out, "bucket: {meta.tag: 1, control.max.tm: -1, control.min.tm: -1}")
	assert.Contains(t, out, "meta")

	_, err = run(t, "translate", "--time", "tm", "--meta", "mm", "--sparse", `{"x": 1}`)
	require.Error(t, err)

	_, err = run(t, "translate", "--time", "tm", `not json`)
	require.Error(t, err)
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := docstore.Open(ctx, docstore.WithBlobStore(blobstore.NewLocalStore(dir)), docstore.WithLogger(docstore.NoopLogger()))
	require.NoError(t, err)
	c, err := db.CreateCollection(ctx, "items")
	require.NoError(t, err)
	_, err = c.Insert(ctx, value.D("_id", 1, "a", 2))
	require.NoError(t, err)
	_, err = c.CreateIndex(ctx, value.D("a", 1), index.Options{Sparse: true})
	require.NoError(t, err)
	name, err := db.Checkpoint(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := run(t, "inspect", "--dir", dir, "--docs")
	require.NoError(t, err)

	var got inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, name, got.Name)
	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, 1, got.Records)
	require.Len(t, got.Collections, 1)
	assert.Equal(t, "items", got.Collections[0].Name)
	require.Len(t, got.Collections[0].Indexes, 1)
	assert.Equal(t, "{a: 1}", got.Collections[0].Indexes[0].Key)
	assert.True(t, got.Collections[0].Indexes[0].Sparse)
	assert.Equal(t, []string{"{_id: 1, a: 2}"}, got.Collections[0].Docs)

	out, err = run(t, "list", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, name+"\n", out)

	_, err = run(t, "inspect", "--store", "ftp")
	require.Error(t, err)
	_, err = run(t, "inspect", "--store", "minio")
	require.Error(t, err)
}

func TestWithCache(t *testing.T) {
	t.Cleanup(func() { cacheBlocks = 256 })
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	require.NoError(t, mem.Put(ctx, "snap", []byte("payload")))

	cacheBlocks = 0
	store, err := withCache(mem)
	require.NoError(t, err)
	assert.Same(t, mem, store)

	cacheBlocks = 4
	store, err = withCache(mem)
	require.NoError(t, err)
	require.IsType(t, &blobstore.CachingStore{}, store)
	data, err := blobstore.Get(ctx, store, "snap")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestOpenStoreS3Kinds(t *testing.T) {
	t.Cleanup(func() {
		storeKind, bucket, region, ddbTable, cacheBlocks = "local", "", "", "", 256
	})
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	bucket, region, cacheBlocks = "snaps--use1-az4--x-s3", "us-east-1", 0

	tests := []struct {
		kind, table string
		want        any
	}{
		{"s3", "", &s3store.Store{}},
		{"s3express", "", &s3store.ExpressStore{}},
		{"s3express", "docstore-snapshots", &s3store.DDBCommitStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.table, func(t *testing.T) {
			storeKind, ddbTable = tt.kind, tt.table
			store, err := openStore(context.Background())
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}

	storeKind, bucket = "s3express", ""
	_, err := openStore(context.Background())
	require.ErrorContains(t, err, "--bucket is required for the s3express store")
}
