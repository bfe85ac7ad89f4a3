package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/docstore/codec"
	"github.com/hupe1980/docstore/internal/hash"
	"github.com/hupe1980/docstore/value"
)

const (
	magic   = "DSS1"
	version = 1

	// maxRawSize bounds the uncompressed payload accepted by Decode.
	maxRawSize = 1 << 34
)

var (
	// ErrCorrupt is returned for truncated files and checksum mismatches.
	ErrCorrupt = errors.New("snapshot: corrupt")
	// ErrUnsupported is returned for foreign files and unknown versions.
	ErrUnsupported = errors.New("snapshot: unsupported format")
)

// Header describes an encoded snapshot.
type Header struct {
	Version     uint8
	Compression Compression
	Codec       string
	RawSize     uint64
	PayloadSize uint64
}

// Snapshot is a decoded snapshot.
type Snapshot struct {
	Header  Header
	Catalog Catalog
}

// EncodeOptions tune Encode.
type EncodeOptions struct {
	Compression Compression
	// Codec encodes the catalog. Defaults to codec.Default.
	Codec codec.Codec
}

// Encode serializes a catalog and the Docs of its collections. Count is
// set from len(Docs).
func Encode(cat Catalog, opts EncodeOptions) ([]byte, error) {
	c := opts.Codec
	if c == nil {
		c = codec.Default
	}
	if len(c.Name()) > 255 {
		return nil, fmt.Errorf("snapshot: codec name too long")
	}

	meta := cat
	meta.Collections = make([]Collection, len(cat.Collections))
	for i, coll := range cat.Collections {
		coll.Count = len(coll.Docs)
		coll.Docs = nil
		meta.Collections[i] = coll
	}
	catBytes, err := c.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode catalog: %w", err)
	}

	var raw bytes.Buffer
	_ = binary.Write(&raw, binary.LittleEndian, uint32(len(catBytes)))
	raw.Write(catBytes)
	for _, coll := range cat.Collections {
		for _, d := range coll.Docs {
			b, err := value.MarshalDocument(d)
			if err != nil {
				return nil, fmt.Errorf("snapshot: encode %s record: %w", coll.Name, err)
			}
			raw.Write(b)
		}
	}

	payload, err := compress(opts.Compression, raw.Bytes())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 4+3+len(c.Name())+16+len(payload)+4)
	out = append(out, magic...)
	out = append(out, version, byte(opts.Compression), byte(len(c.Name())))
	out = append(out, c.Name()...)
	out = binary.LittleEndian.AppendUint64(out, uint64(raw.Len()))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(payload)))
	out = append(out, payload...)
	out = binary.LittleEndian.AppendUint32(out, hash.CRC32C(payload))
	return out, nil
}

// ReadHeader parses the header and returns it with the header length.
func ReadHeader(data []byte) (Header, int, error) {
	if len(data) < 7 || string(data[:4]) != magic {
		return Header{}, 0, ErrUnsupported
	}
	h := Header{Version: data[4], Compression: Compression(data[5])}
	if h.Version != version {
		return Header{}, 0, fmt.Errorf("%w: version %d", ErrUnsupported, h.Version)
	}
	off := 7 + int(data[6])
	if len(data) < off+16 {
		return Header{}, 0, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	h.Codec = string(data[7:off])
	h.RawSize = binary.LittleEndian.Uint64(data[off:])
	h.PayloadSize = binary.LittleEndian.Uint64(data[off+8:])
	return h, off + 16, nil
}

// Decode parses and verifies a snapshot.
func Decode(data []byte) (*Snapshot, error) {
	h, off, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(h.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: codec %q", ErrUnsupported, h.Codec)
	}
	if h.RawSize > maxRawSize || uint64(len(data)-off) != h.PayloadSize+4 {
		return nil, fmt.Errorf("%w: payload size", ErrCorrupt)
	}
	payload := data[off : off+int(h.PayloadSize)]
	sum := binary.LittleEndian.Uint32(data[off+int(h.PayloadSize):])
	if !hash.Verify(payload, sum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	raw, err := decompress(h.Compression, payload, h.RawSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if uint64(len(raw)) != h.RawSize || len(raw) < 4 {
		return nil, fmt.Errorf("%w: raw size", ErrCorrupt)
	}

	catLen := int(binary.LittleEndian.Uint32(raw))
	if 4+catLen > len(raw) {
		return nil, fmt.Errorf("%w: catalog length", ErrCorrupt)
	}
	s := &Snapshot{Header: h}
	if err := c.Unmarshal(raw[4:4+catLen], &s.Catalog); err != nil {
		return nil, fmt.Errorf("%w: catalog: %w", ErrCorrupt, err)
	}

	rest := raw[4+catLen:]
	for i := range s.Catalog.Collections {
		coll := &s.Catalog.Collections[i]
		coll.Docs = make([]value.Document, 0, coll.Count)
		for range coll.Count {
			if len(rest) < 5 {
				return nil, fmt.Errorf("%w: %s: truncated records", ErrCorrupt, coll.Name)
			}
			n := int(binary.LittleEndian.Uint32(rest))
			if n < 5 || n > len(rest) {
				return nil, fmt.Errorf("%w: %s: record length", ErrCorrupt, coll.Name)
			}
			d, err := value.UnmarshalDocument(rest[:n])
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, coll.Name, err)
			}
			coll.Docs = append(coll.Docs, d)
			rest = rest[n:]
		}
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrCorrupt)
	}
	return s, nil
}
