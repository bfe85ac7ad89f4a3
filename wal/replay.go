package wal

import (
	"errors"
	"fmt"
	"io"
)

type pendingKey struct {
	ns  string
	key string
}

// ReplayCommitted replays committed record mutations and catalog entries in
// log order.
//
// With the prepare/commit protocol (OpPrepare* + OpCommit*), only operations
// that have a matching commit are applied; they are reported as OpInsert,
// OpUpdate or OpDelete. A torn or corrupt tail ends the replay.
func (w *WAL) ReplayCommitted(callback func(entry Entry) error) error {
	return w.replay(func(entries entryReader) error {
		pendingInsert := map[pendingKey]Entry{}
		pendingUpdate := map[pendingKey]Entry{}
		pendingDelete := map[pendingKey]struct{}{}

		for {
			entry, ok, err := entries()
			if err != nil || !ok {
				return err
			}
			pk := pendingKey{entry.Namespace, string(entry.Key)}

			var apply *Entry
			switch entry.Type {
			case OpPrepareInsert:
				pendingInsert[pk] = entry
			case OpPrepareUpdate:
				pendingUpdate[pk] = entry
			case OpPrepareDelete:
				pendingDelete[pk] = struct{}{}
			case OpCommitInsert:
				if prepared, ok := pendingInsert[pk]; ok {
					prepared.Type = OpInsert
					apply = &prepared
					delete(pendingInsert, pk)
				}
			case OpCommitUpdate:
				if prepared, ok := pendingUpdate[pk]; ok {
					prepared.Type = OpUpdate
					apply = &prepared
					delete(pendingUpdate, pk)
				}
			case OpCommitDelete:
				if _, ok := pendingDelete[pk]; ok {
					apply = &Entry{Type: OpDelete, Namespace: entry.Namespace, Key: entry.Key}
					delete(pendingDelete, pk)
				}
			default:
				if entry.Type.IsCatalog() {
					apply = &entry
				}
			}
			if apply == nil {
				continue
			}
			apply.SeqNum = entry.SeqNum
			if err := callback(*apply); err != nil {
				return fmt.Errorf("failed to replay entry %d: %w", entry.SeqNum, err)
			}
		}
	})
}

// Replay replays all on-disk entries in the WAL, including uncommitted
// prepares.
func (w *WAL) Replay(callback func(entry Entry) error) error {
	return w.replay(func(entries entryReader) error {
		for {
			entry, ok, err := entries()
			if err != nil || !ok {
				return err
			}
			if err := callback(entry); err != nil {
				return fmt.Errorf("failed to replay entry %d: %w", entry.SeqNum, err)
			}
		}
	})
}

// entryReader returns the next entry, or ok=false at the end of the log or
// at a checkpoint marker.
type entryReader func() (Entry, bool, error)

func (w *WAL) replay(fn func(entries entryReader) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}
	if err := w.out.flush(); err != nil {
		return err
	}
	reader, err := entries(w.file, w.header.HeaderLen, w.dec)
	if err != nil {
		return err
	}

	next := func() (Entry, bool, error) {
		var entry Entry
		if err := decodeEntry(reader, &entry); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrCorrupt) {
				return Entry{}, false, nil
			}
			return Entry{}, false, fmt.Errorf("WAL read failed: %w", err)
		}
		if entry.Type == OpCheckpoint {
			return Entry{}, false, nil
		}
		return entry, true, nil
	}

	if err := fn(next); err != nil {
		return err
	}

	_, err = w.file.Seek(0, io.SeekEnd)
	return err
}
