package compression

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// PrefixLength is a length of compression marker in compressed data.
const PrefixLength = 4

// DefaultMinSize is a default size of the smallest payload worth compressing.
const DefaultMinSize = 4 << 10

// Config represents common compression-related configuration.
type Config struct {
	Enabled bool
	// MinSize is a size of the smallest payload compressed. Zero means
	// DefaultMinSize.
	MinSize int

	encoder *zstd.Encoder
}

// zstdFrameMagic contains first 4 bytes of any compressed payload
// https://github.com/klauspost/compress/blob/master/zstd/framedec.go#L58 .
var zstdFrameMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Init initializes compression routines. Decoders are created per stream by
// DecompressReader.
//
// Encoder is created even when compression is disabled: raw payloads that
// start with the zstd magic are always compressed, so that they are never
// confused with compressed ones on read.
func (c *Config) Init() error {
	var err error

	if c.MinSize <= 0 {
		c.MinSize = DefaultMinSize
	}

	c.encoder, err = zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("init zstd encoder: %w", err)
	}

	return nil
}

// NeedsCompression returns true if the payload should be compressed.
func (c *Config) NeedsCompression(data []byte) bool {
	if c.IsCompressed(data) {
		return true
	}
	return c.Enabled && len(data) >= c.MinSize
}

// IsCompressed checks whether given data is compressed.
func (c *Config) IsCompressed(data []byte) bool {
	return len(data) >= PrefixLength && bytes.Equal(data[:PrefixLength], zstdFrameMagic)
}

// Compress compresses data if it needs compression and returns data
// untouched otherwise.
func (c *Config) Compress(data []byte) []byte {
	if c == nil || !c.NeedsCompression(data) {
		return data
	}
	maxSize := c.encoder.MaxEncodedSize(len(data))
	return c.encoder.EncodeAll(data, make([]byte, 0, maxSize))
}

// DecompressReader returns reader of decompressed r contents. Stream is
// decoded on the fly, so large payloads are never buffered entirely. Closing
// the result closes r.
func (c *Config) DecompressReader(r io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	prefix, err := br.Peek(PrefixLength)
	if err != nil && err != io.EOF {
		_ = r.Close()
		return nil, fmt.Errorf("read payload prefix: %w", err)
	}

	if !c.IsCompressed(prefix) {
		return readCloser{Reader: br, close: r.Close}, nil
	}

	dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("init zstd stream decoder: %w", err)
	}

	return readCloser{Reader: dec, close: func() error {
		dec.Close()
		return r.Close()
	}}, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

// Close closes encoder, returns any error occurred.
func (c *Config) Close() error {
	if c.encoder != nil {
		return c.encoder.Close()
	}
	return nil
}
