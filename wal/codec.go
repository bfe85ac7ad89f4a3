package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/docstore/internal/hash"
)

// ErrCorrupt is returned when an entry fails its checksum.
var ErrCorrupt = errors.New("wal: corrupt entry")

// maxEntrySize bounds a single frame so a torn length cannot force a huge
// allocation.
const maxEntrySize = 64 << 20

// encodeEntry writes an entry frame.
// Format: [Len:4][CRC32C:4] then body
// [Type:1][SeqNum:8][NsLen:2][Ns][KeyLen:4][Key] and, for prepare and catalog
// entries, [DataLen:4][Data].
func (w *WAL) encodeEntry(entry *Entry) error {
	// OpInsert/OpUpdate/OpDelete are logical operations emitted by ReplayCommitted,
	// not on-disk entry types.
	if entry.Type == OpInsert || entry.Type == OpUpdate || entry.Type == OpDelete {
		return fmt.Errorf("unsupported on-disk WAL entry type: %v", entry.Type)
	}
	if len(entry.Namespace) > math.MaxUint16 {
		return fmt.Errorf("namespace too long: %d bytes", len(entry.Namespace))
	}

	size := 1 + 8 + 2 + len(entry.Namespace) + 4 + len(entry.Key)
	if entry.Type.hasPayload() {
		size += 4 + len(entry.Data)
	}
	if size > maxEntrySize {
		return fmt.Errorf("WAL entry too large: %d bytes", size)
	}

	buf := w.scratch[:0]
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size)) //nolint:gosec // bounded by maxEntrySize
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = append(buf, byte(entry.Type))
	buf = binary.LittleEndian.AppendUint64(buf, entry.SeqNum)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(entry.Namespace)))
	buf = append(buf, entry.Namespace...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(entry.Key))) //nolint:gosec
	buf = append(buf, entry.Key...)
	if entry.Type.hasPayload() {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(entry.Data))) //nolint:gosec
		buf = append(buf, entry.Data...)
	}
	binary.LittleEndian.PutUint32(buf[4:8], hash.CRC32C(buf[8:]))
	w.scratch = buf

	_, err := w.out.Write(buf)
	return err
}

// decodeEntry reads one entry frame. A clean end of stream returns io.EOF.
func decodeEntry(reader io.Reader, entry *Entry) error {
	var head [8]byte
	if _, err := io.ReadFull(reader, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: torn frame header", ErrCorrupt)
		}
		return err
	}
	size := binary.LittleEndian.Uint32(head[0:4])
	if size < 1+8+2+4 || size > maxEntrySize {
		return fmt.Errorf("%w: bad frame size %d", ErrCorrupt, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(reader, body); err != nil {
		return fmt.Errorf("%w: torn frame: %w", ErrCorrupt, err)
	}
	if !hash.Verify(body, binary.LittleEndian.Uint32(head[4:8])) {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	r := frameReader{b: body}
	entry.Type = OperationType(r.u8())
	if entry.Type == OpInsert || entry.Type == OpUpdate || entry.Type == OpDelete {
		return fmt.Errorf("%w: logical entry type %v on disk", ErrCorrupt, entry.Type)
	}
	entry.SeqNum = r.u64()
	entry.Namespace = string(r.bytes(int(r.u16())))
	entry.Key = r.bytes(int(r.u32()))
	entry.Data = nil
	if entry.Type.hasPayload() {
		entry.Data = r.bytes(int(r.u32()))
	}
	if r.err {
		return fmt.Errorf("%w: truncated body", ErrCorrupt)
	}
	return nil
}

type frameReader struct {
	b   []byte
	err bool
}

func (r *frameReader) next(n int) []byte {
	if r.err || n < 0 || n > len(r.b) {
		r.err = true
		return nil
	}
	out := r.b[:n:n]
	r.b = r.b[n:]
	return out
}

func (r *frameReader) u8() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *frameReader) u16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *frameReader) u32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *frameReader) u64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *frameReader) bytes(n int) []byte {
	b := r.next(n)
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
