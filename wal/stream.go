package wal

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// stream is the append side of the log file: a buffered writer, optionally
// wrapping a zstd encoder. Each reopen starts a new zstd frame; the decoder
// reads concatenated frames as one stream.
type stream struct {
	file *os.File
	buf  *bufio.Writer
	enc  *zstd.Encoder
}

func newStream(f *os.File, compressed bool, level int) (*stream, error) {
	s := &stream{file: f}
	if !compressed {
		s.buf = bufio.NewWriter(f)
		return s, nil
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	s.enc = enc
	s.buf = bufio.NewWriter(enc)
	return s, nil
}

func (s *stream) Write(p []byte) (int, error) { return s.buf.Write(p) }

// flush pushes buffered frames to the file without fsync.
func (s *stream) flush() error {
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if s.enc != nil {
		if err := s.enc.Flush(); err != nil {
			return fmt.Errorf("failed to flush compressor: %w", err)
		}
	}
	return nil
}

// finish flushes and ends the zstd frame. The file stays open.
func (s *stream) finish() error {
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if s.enc != nil {
		if err := s.enc.Close(); err != nil {
			return fmt.Errorf("failed to close compressor: %w", err)
		}
	}
	return nil
}

// entries returns a reader over the entry stream starting at off.
func entries(f *os.File, off int64, dec *zstd.Decoder) (io.Reader, error) {
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	if dec == nil {
		return bufio.NewReader(f), nil
	}
	if err := dec.Reset(f); err != nil {
		return nil, fmt.Errorf("failed to reset decompressor: %w", err)
	}
	return dec, nil
}
