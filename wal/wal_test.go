package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openWAL(t *testing.T, dir string, optFns ...func(o *Options)) *WAL {
	t.Helper()
	w, err := New(append([]func(o *Options){func(o *Options) {
		o.Path = dir
		o.DurabilityMode = DurabilitySync
	}}, optFns...)...)
	require.NoError(t, err)
	return w
}

func replayAll(t *testing.T, w *WAL) []Entry {
	t.Helper()
	var out []Entry
	require.NoError(t, w.ReplayCommitted(func(e Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func TestWAL(t *testing.T) {
	w := openWAL(t, t.TempDir())
	defer w.Close()

	require.NoError(t, w.LogInsert("db.c", []byte("k1"), []byte("doc1")))
	require.NoError(t, w.LogUpdate("db.c", []byte("k1"), []byte("doc1b")))
	require.NoError(t, w.LogDelete("db.c", []byte("k2")))
	require.NoError(t, w.LogCatalog(OpCreateIndex, "db.c", []byte("a_1"), []byte(`{"name":"a_1"}`)))

	count, err := w.Len()
	require.NoError(t, err)
	// Each mutation is written as Prepare+Commit.
	assert.Equal(t, 7, count)
}

func TestWALReplayOrder(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "zstd"}[compress], func(t *testing.T) {
			dir := t.TempDir()
			w := openWAL(t, dir, func(o *Options) { o.Compress = compress })

			require.NoError(t, w.LogCatalog(OpCreateCollection, "db.c", nil, []byte("{}")))
			require.NoError(t, w.LogInsert("db.c", []byte{0x14, 1}, []byte("one")))
			require.NoError(t, w.LogInsert("db.d", []byte{0x14, 1}, []byte("other")))
			require.NoError(t, w.LogDelete("db.c", []byte{0x14, 1}))
			require.NoError(t, w.Close())

			w = openWAL(t, dir)
			defer w.Close()
			got := replayAll(t, w)
			require.Len(t, got, 4)
			assert.Equal(t, OpCreateCollection, got[0].Type)
			assert.Equal(t, Entry{Type: OpInsert, SeqNum: 3, Namespace: "db.c", Key: []byte{0x14, 1}, Data: []byte("one")}, got[1])
			assert.Equal(t, "db.d", got[2].Namespace)
			assert.Equal(t, OpDelete, got[3].Type)
			for i := 1; i < len(got); i++ {
				assert.Greater(t, got[i].SeqNum, got[i-1].SeqNum)
			}
		})
	}
}

func TestWALReplayCommittedIgnoresUncommittedPrepares(t *testing.T) {
	dir := t.TempDir()
	w := openWAL(t, dir)

	// Prepare without commit (should be ignored).
	require.NoError(t, w.LogPrepare(OpPrepareInsert, "db.c", []byte("k1"), []byte("d1")))
	// Prepare + commit (should be applied).
	require.NoError(t, w.LogPrepare(OpPrepareInsert, "db.c", []byte("k2"), []byte("d2")))
	require.NoError(t, w.LogCommit(OpCommitInsert, "db.c", []byte("k2")))
	// Same key in another namespace is a different mutation.
	require.NoError(t, w.LogCommit(OpCommitInsert, "db.other", []byte("k1")))
	require.NoError(t, w.Close())

	w = openWAL(t, dir)
	defer w.Close()
	got := replayAll(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, OpInsert, got[0].Type)
	assert.Equal(t, []byte("k2"), got[0].Key)

	assert.Error(t, w.LogPrepare(OpCommitInsert, "db.c", nil, nil))
	assert.Error(t, w.LogCommit(OpPrepareInsert, "db.c", nil))
	assert.Error(t, w.LogCatalog(OpInsert, "db.c", nil, nil))
}

func TestWALCheckpoint(t *testing.T) {
	w := openWAL(t, t.TempDir())
	defer w.Close()

	for i := byte(1); i <= 5; i++ {
		require.NoError(t, w.LogInsert("db.c", []byte{i}, []byte("data")))
	}
	count, err := w.Len()
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	require.NoError(t, w.Checkpoint())
	count, err = w.Len()
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, w.LogInsert("db.c", []byte{6}, []byte("data")))
	got := replayAll(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{6}, got[0].Key)
}

func TestWALTornTail(t *testing.T) {
	dir := t.TempDir()
	w := openWAL(t, dir)
	require.NoError(t, w.LogInsert("db.c", []byte("k1"), []byte("data1")))
	require.NoError(t, w.LogInsert("db.c", []byte("k2"), []byte("data2")))
	require.NoError(t, w.Close())

	// Cut into the last commit frame.
	path := filepath.Join(dir, FileName)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	w = openWAL(t, dir)
	got := replayAll(t, w)
	require.Len(t, got, 1, "the torn mutation is not committed")

	// Appends after the cut tail are replayed.
	require.NoError(t, w.LogInsert("db.c", []byte("k3"), []byte("data3")))
	require.NoError(t, w.Close())

	w = openWAL(t, dir)
	defer w.Close()
	got = replayAll(t, w)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("k3"), got[1].Key)
}

func TestWALCorruptChecksum(t *testing.T) {
	dir := t.TempDir()
	w := openWAL(t, dir)
	require.NoError(t, w.LogInsert("db.c", []byte("k1"), []byte("data1")))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, FileName)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	w = openWAL(t, dir)
	defer w.Close()
	assert.Empty(t, replayAll(t, w))
}

func TestWALRejectsForeignHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("VGW0garbagegarbage"), 0o600))
	_, err := New(func(o *Options) { o.Path = dir })
	assert.Error(t, err)
}

func TestWALAutoCheckpoint(t *testing.T) {
	w := openWAL(t, t.TempDir(), func(o *Options) { o.AutoCheckpointOps = 3 })
	defer w.Close()

	calls := 0
	w.SetCheckpointCallback(func() error {
		calls++
		return nil
	})
	for i := byte(0); i < 7; i++ {
		require.NoError(t, w.LogInsert("db.c", []byte{i}, nil))
	}
	assert.Equal(t, 2, calls)
}

func TestWALGroupCommit(t *testing.T) {
	w, err := New(func(o *Options) {
		o.Path = t.TempDir()
		o.DurabilityMode = DurabilityGroupCommit
		o.GroupCommitInterval = time.Millisecond
		o.GroupCommitMaxOps = 2
	})
	require.NoError(t, err)

	for i := byte(0); i < 5; i++ {
		require.NoError(t, w.LogInsert("db.c", []byte{i}, []byte("x")))
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")
	assert.ErrorIs(t, w.LogInsert("db.c", []byte{9}, nil), ErrClosed)
}
