// Package wal provides write-ahead logging for document mutations and catalog
// changes.
//
// Record mutations are logged as a prepare entry carrying the BSON document
// followed by a commit entry; recovery applies only committed mutations.
// Catalog changes (collections and indexes) are single entries. Every frame is
// checksummed with CRC32C and the stream is optionally zstd compressed.
//
// Features:
//   - Configurable fsync behavior (async, group commit, sync)
//   - Checkpoint support for log truncation after snapshots
//   - Sequential ordering via sequence numbers
package wal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrClosed is returned by operations on a closed WAL.
var ErrClosed = errors.New("wal: closed")

// FileName is the name of the WAL file inside Options.Path.
const FileName = "docstore.wal"

// WAL is an append-only log of committed mutations since the last checkpoint.
type WAL struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	out     *stream
	dec     *zstd.Decoder // nil when uncompressed
	header  walHeaderInfo
	seq     uint64
	scratch []byte
	sync    *syncer

	autoOps      int
	autoBytes    int64
	sinceCkpt    int
	onCheckpoint func() error
}

// New opens or creates the WAL in Options.Path.
func New(optFns ...func(o *Options)) (*WAL, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Compress && (opts.CompressionLevel < 1 || opts.CompressionLevel > 22) {
		return nil, fmt.Errorf("invalid zstd compression level %d", opts.CompressionLevel)
	}
	if err := os.MkdirAll(opts.Path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	w := &WAL{
		path:      filepath.Join(opts.Path, FileName),
		autoOps:   opts.AutoCheckpointOps,
		autoBytes: int64(opts.AutoCheckpointMB) << 20,
	}
	if err := w.open(opts); err != nil {
		return nil, err
	}
	w.sync = newSyncer(&w.mu, opts, func() error { return w.file.Sync() })
	return w, nil
}

func (w *WAL) open(opts Options) (err error) {
	w.file, err = os.OpenFile(w.path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // configured path
	if err != nil {
		return fmt.Errorf("failed to open WAL file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = w.file.Close()
		}
	}()

	st, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat WAL file: %w", err)
	}
	if st.Size() == 0 {
		w.header = walHeaderInfo{Compressed: opts.Compress, CompressionLevel: opts.CompressionLevel}
		if w.header.HeaderLen, err = writeWALHeader(w.file, w.header); err != nil {
			return err
		}
	} else {
		hdr, valid, err := readWALHeader(w.file)
		if err != nil {
			return fmt.Errorf("failed to read WAL header: %w", err)
		}
		if !valid {
			return errors.New("invalid WAL header")
		}
		w.header = hdr
	}

	if w.header.Compressed {
		if w.dec, err = zstd.NewReader(nil); err != nil {
			return fmt.Errorf("failed to create decompressor: %w", err)
		}
	}
	if err := w.recover(); err != nil {
		return fmt.Errorf("failed to scan WAL: %w", err)
	}
	w.out, err = newStream(w.file, w.header.Compressed, w.header.CompressionLevel)
	return err
}

// recover finds the last sequence number and positions the file for
// appending. An uncompressed torn tail is cut so later entries stay
// reachable; a compressed one ends replay at the tear.
func (w *WAL) recover() error {
	r, err := entries(w.file, w.header.HeaderLen, w.dec)
	if err != nil {
		return err
	}
	counted := &countingReader{r: r}

	var good int64
	torn := false
	for {
		var e Entry
		if err := decodeEntry(counted, &e); err != nil {
			torn = !errors.Is(err, io.EOF)
			break
		}
		good = counted.n
		w.seq = max(w.seq, e.SeqNum)
	}
	if torn && !w.header.Compressed {
		if err := w.file.Truncate(w.header.HeaderLen + good); err != nil {
			return fmt.Errorf("failed to cut torn WAL tail: %w", err)
		}
	}
	_, err = w.file.Seek(0, io.SeekEnd)
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// appendLocked writes entries, assigning sequence numbers. When commit is
// set the batch is a durability boundary.
func (w *WAL) appendLocked(commit bool, batch ...Entry) error {
	if w.file == nil {
		return ErrClosed
	}
	for i := range batch {
		w.seq++
		batch[i].SeqNum = w.seq
		if err := w.encodeEntry(&batch[i]); err != nil {
			return fmt.Errorf("failed to encode WAL %v entry: %w", batch[i].Type, err)
		}
	}
	if !commit {
		return nil
	}
	if err := w.out.flush(); err != nil {
		return err
	}
	return w.sync.committed(w.seq)
}

// LogInsert logs an insert of doc under key as a prepare/commit pair.
func (w *WAL) LogInsert(ns string, key, doc []byte) error {
	return w.logMutation(OpPrepareInsert, ns, key, doc)
}

// LogUpdate logs the replacement of the document under key.
func (w *WAL) LogUpdate(ns string, key, doc []byte) error {
	return w.logMutation(OpPrepareUpdate, ns, key, doc)
}

// LogDelete logs the removal of the document under key.
func (w *WAL) LogDelete(ns string, key []byte) error {
	return w.logMutation(OpPrepareDelete, ns, key, nil)
}

func (w *WAL) logMutation(prepare OperationType, ns string, key, doc []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.appendLocked(true,
		Entry{Type: prepare, Namespace: ns, Key: key, Data: doc},
		Entry{Type: prepare.commit(), Namespace: ns, Key: key},
	)
	if err != nil {
		return err
	}
	return w.countCommitLocked()
}

// LogPrepare writes a prepare entry. It is not a durability boundary; the
// matching LogCommit is.
func (w *WAL) LogPrepare(op OperationType, ns string, key, data []byte) error {
	if op.commit() == op {
		return fmt.Errorf("not a prepare operation: %v", op)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(false, Entry{Type: op, Namespace: ns, Key: key, Data: data})
}

// LogCommit writes the commit entry matching a prepare and syncs the WAL.
func (w *WAL) LogCommit(op OperationType, ns string, key []byte) error {
	if op < OpCommitInsert || op > OpCommitDelete {
		return fmt.Errorf("not a commit operation: %v", op)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.appendLocked(true, Entry{Type: op, Namespace: ns, Key: key}); err != nil {
		return err
	}
	return w.countCommitLocked()
}

// LogCatalog writes a self-committing catalog entry and syncs the WAL.
func (w *WAL) LogCatalog(op OperationType, ns string, key, data []byte) error {
	if !op.IsCatalog() {
		return fmt.Errorf("not a catalog operation: %v", op)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(true, Entry{Type: op, Namespace: ns, Key: key, Data: data})
}

// SetCheckpointCallback registers fn to run when an auto-checkpoint
// threshold is crossed. fn runs without the WAL lock held.
func (w *WAL) SetCheckpointCallback(fn func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onCheckpoint = fn
}

func (w *WAL) countCommitLocked() error {
	w.sinceCkpt++
	due := w.autoOps > 0 && w.sinceCkpt >= w.autoOps
	if !due && w.autoBytes > 0 {
		if st, err := w.file.Stat(); err == nil && st.Size() >= w.autoBytes {
			due = true
		}
	}
	if !due || w.onCheckpoint == nil {
		return nil
	}
	w.sinceCkpt = 0
	fn := w.onCheckpoint
	w.mu.Unlock()
	defer w.mu.Lock()
	return fn()
}

// Checkpoint writes a checkpoint marker, syncs, and starts a fresh log.
// Call it after the snapshot covering every logged entry is stored.
func (w *WAL) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.appendLocked(false, Entry{Type: OpCheckpoint}); err != nil {
		return err
	}
	if err := w.out.finish(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}

	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate WAL file: %w", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	hdrLen, err := writeWALHeader(w.file, w.header)
	if err != nil {
		return err
	}
	w.header.HeaderLen = hdrLen
	if w.out, err = newStream(w.file, w.header.Compressed, w.header.CompressionLevel); err != nil {
		return err
	}
	w.seq = 0
	w.sinceCkpt = 0
	w.sync.reset()
	return nil
}

// Close stops the group commit worker, syncs pending entries and closes the
// file. It is idempotent.
func (w *WAL) Close() error {
	w.mu.Lock()
	if w.file == nil {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()
	w.sync.shutdown()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	errs := []error{w.out.finish(), w.file.Sync()}
	// Wake writers still waiting for a group commit.
	w.sync.durable = w.seq
	w.sync.cond.Broadcast()
	if w.dec != nil {
		w.dec.Close()
	}
	errs = append(errs, w.file.Close())
	w.file = nil
	return errors.Join(errs...)
}

// Len counts the entries currently in the log.
func (w *WAL) Len() (int, error) {
	n := 0
	err := w.Replay(func(Entry) error {
		n++
		return nil
	})
	return n, err
}
