package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var (
	walMagic          = [4]byte{'D', 'S', 'W', '0'}
	walHeaderVersion  = uint16(2)
	walHeaderFixedLen = 16 // excludes the payload codec name
)

// PayloadCodec names the encoding of document payloads.
const PayloadCodec = "bson"

type walHeaderInfo struct {
	Compressed       bool
	CompressionLevel int
	Codec            string
	HeaderLen        int64
}

func writeWALHeader(w io.Writer, info walHeaderInfo) (int64, error) {
	var flags uint16
	if info.Compressed {
		flags |= 1
	}
	level := uint8(0)
	if info.Compressed {
		level = uint8(info.CompressionLevel) //nolint:gosec // validated 1..22
	}
	codec := info.Codec
	if codec == "" {
		codec = PayloadCodec
	}
	if len(codec) > 255 {
		return 0, fmt.Errorf("codec name too long: %q", codec)
	}

	buf := make([]byte, 0, walHeaderFixedLen+len(codec))
	buf = append(buf, walMagic[:]...)
	var fixed [12]byte
	binary.LittleEndian.PutUint16(fixed[0:2], walHeaderVersion)
	binary.LittleEndian.PutUint16(fixed[2:4], flags)
	fixed[4] = level
	fixed[5] = uint8(len(codec))
	// fixed[6:12] reserved
	buf = append(buf, fixed[:]...)
	buf = append(buf, codec...)

	if _, err := w.Write(buf); err != nil {
		return 0, fmt.Errorf("failed to write WAL header: %w", err)
	}
	return int64(len(buf)), nil
}

func readWALHeader(f *os.File) (walHeaderInfo, bool, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return walHeaderInfo{}, false, fmt.Errorf("failed to seek WAL: %w", err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		if err == io.EOF {
			return walHeaderInfo{}, false, nil
		}
		return walHeaderInfo{}, false, fmt.Errorf("failed to read WAL header magic: %w", err)
	}
	if magic != walMagic {
		return walHeaderInfo{}, false, fmt.Errorf("unsupported WAL format: invalid header magic")
	}

	fixed := make([]byte, walHeaderFixedLen-4)
	if _, err := io.ReadFull(f, fixed); err != nil {
		return walHeaderInfo{}, true, fmt.Errorf("failed to read WAL header: %w", err)
	}

	version := binary.LittleEndian.Uint16(fixed[0:2])
	if version != walHeaderVersion {
		return walHeaderInfo{}, true, fmt.Errorf("unsupported WAL header version: %d", version)
	}
	flags := binary.LittleEndian.Uint16(fixed[2:4])
	codec := make([]byte, fixed[5])
	if _, err := io.ReadFull(f, codec); err != nil {
		return walHeaderInfo{}, true, fmt.Errorf("failed to read WAL codec name: %w", err)
	}
	if string(codec) != PayloadCodec {
		return walHeaderInfo{}, true, fmt.Errorf("unsupported WAL payload codec %q", codec)
	}

	return walHeaderInfo{
		Compressed:       flags&1 != 0,
		CompressionLevel: int(fixed[4]),
		Codec:            string(codec),
		HeaderLen:        int64(walHeaderFixedLen + len(codec)),
	}, true, nil
}
