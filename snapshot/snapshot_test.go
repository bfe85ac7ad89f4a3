package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/docstore/blobstore"
	"github.com/hupe1980/docstore/codec"
	"github.com/hupe1980/docstore/resource"
	"github.com/hupe1980/docstore/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog(seq uint64) Catalog {
	bin := value.MustBinData(value.SubtypeGeneric, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	return Catalog{
		Seq:     seq,
		Created: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Collections: []Collection{
			{
				Name: "users",
				Indexes: []Index{
					{Name: "a_1_b_-1", Key: []KeyField{{Path: "a", Dir: 1}, {Path: "b", Dir: -1}}, Unique: true},
					{Name: "loc_2dsphere", Key: []KeyField{{Path: "loc", Type: "2dsphere"}}, Hidden: true},
				},
				Docs: []value.Document{
					value.D("_id", bin, "a", 1, "b", "x"),
					value.D("_id", 2, "a", value.D("nested", true)),
				},
			},
			{
				Name: "weather",
				Timeseries: &Timeseries{
					TimeField: "tm", MetaField: "mm", Granularity: "seconds",
					BucketMaxCount: 1000, BucketMaxSpan: time.Hour,
				},
				Indexes: []Index{{Name: "mm.tag_1", Key: []KeyField{{Path: "mm.tag", Dir: 1}}}},
			},
			{
				Name: "system.buckets.weather",
				Docs: []value.Document{value.D("_id", 7, "control", value.D("version", 1))},
			},
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			cat := sampleCatalog(42)
			data, err := Encode(cat, EncodeOptions{Compression: c})
			require.NoError(t, err)

			snap, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, c, snap.Header.Compression)
			assert.Equal(t, codec.Default.Name(), snap.Header.Codec)

			got := snap.Catalog
			assert.Equal(t, uint64(42), got.Seq)
			assert.True(t, cat.Created.Equal(got.Created))
			require.Len(t, got.Collections, 3)
			assert.Equal(t, 3, got.Records())

			users, ok := got.Collection("users")
			require.True(t, ok)
			assert.Equal(t, cat.Collections[0].Indexes, users.Indexes)
			assert.Equal(t, cat.Collections[0].Docs, users.Docs)
			assert.Equal(t, 2, users.Count)

			ts, ok := got.Collection("weather")
			require.True(t, ok)
			assert.Equal(t, cat.Collections[1].Timeseries, ts.Timeseries)
			assert.Empty(t, ts.Docs)
		})
	}
}

func TestEncodeWithBSONCatalog(t *testing.T) {
	data, err := Encode(sampleCatalog(1), EncodeOptions{Codec: codec.BSON{}})
	require.NoError(t, err)
	snap, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "bson", snap.Header.Codec)
	assert.Equal(t, 3, snap.Catalog.Records())
}

func TestDecodeRejects(t *testing.T) {
	data, err := Encode(sampleCatalog(9), EncodeOptions{Compression: CompressionZstd})
	require.NoError(t, err)

	t.Run("foreign", func(t *testing.T) {
		_, err := Decode([]byte("PK\x03\x04 not a snapshot"))
		assert.ErrorIs(t, err, ErrUnsupported)
	})
	t.Run("version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[4] = 99
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrUnsupported)
	})
	t.Run("checksum", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-10] ^= 0xFF
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := Decode(data[:len(data)-3])
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)
	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	s := NewStore(blobs, rc, EncodeOptions{Compression: CompressionZstd})

	_, _, err := s.Latest(ctx)
	require.ErrorIs(t, err, ErrNoSnapshot)

	for _, seq := range []uint64{3, 10, 25} {
		name, size, err := s.Save(ctx, sampleCatalog(seq))
		require.NoError(t, err)
		assert.Equal(t, Name(seq), name)
		assert.Positive(t, size)
	}
	assert.Zero(t, rc.MemoryUsage())

	snap, name, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, Name(25), name)
	assert.Equal(t, uint64(25), snap.Catalog.Seq)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{Name(3), Name(10), Name(25)}, names)

	deleted, err := s.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	names, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{Name(25)}, names)
}

func TestStoreNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := NewStore(blobs, nil, EncodeOptions{})

	_, _, err := s.Save(ctx, sampleCatalog(7))
	require.NoError(t, err)
	before, err := blobstore.Get(ctx, blobs, Name(7))
	require.NoError(t, err)

	// A second writer at the same sequence number loses.
	_, _, err = s.Save(ctx, Catalog{Seq: 7})
	require.ErrorIs(t, err, ErrSnapshotExists)

	after, err := blobstore.Get(ctx, blobs, Name(7))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	snap, _, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Catalog.Collections, len(sampleCatalog(7).Collections))
}

func TestStoreLocal(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewLocalStore(t.TempDir()), nil, EncodeOptions{Compression: CompressionLZ4})

	_, _, err := s.Save(ctx, sampleCatalog(5))
	require.NoError(t, err)

	snap, _, err := s.Latest(ctx)
	require.NoError(t, err)
	users, ok := snap.Catalog.Collection("users")
	require.True(t, ok)
	assert.Len(t, users.Docs, 2)
}
