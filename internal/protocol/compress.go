package protocol

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressor shrinks frame payloads before they go on the wire. Both ends
// must be configured with the same scheme; the framing carries no marker.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	Name() string
}

// NewCompressor maps a configured scheme name onto an implementation.
// The empty name means no compression.
func NewCompressor(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return passthrough{}, nil
	case "zstd":
		return newZstdCompressor()
	default:
		return nil, fmt.Errorf("protocol: unknown compression scheme %q", name)
	}
}

type passthrough struct{}

func (passthrough) Compress(src []byte) ([]byte, error)   { return src, nil }
func (passthrough) Decompress(src []byte) ([]byte, error) { return src, nil }
func (passthrough) Name() string                          { return "none" }

// zstdCompressor reuses one encoder and decoder pair across frames. Both are
// safe for concurrent EncodeAll/DecodeAll calls.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("protocol: creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("protocol: creating zstd decoder: %w", err)
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (z *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("protocol: zstd decompress: %w", err)
	}
	return out, nil
}

func (z *zstdCompressor) Name() string { return "zstd" }
