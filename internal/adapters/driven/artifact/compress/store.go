// Package compress wraps an artifact store with transparent compression.
//
// Writes use the configured codec. Reads detect the codec from the leading
// bytes, so a store can switch codecs without orphaning older artifacts.
package compress

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ArtifactStore = (*Store)(nil)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte("RLZ4")
)

// lz4 header: magic, uncompressed size, compressed size (0 means stored raw).
const lz4HeaderSize = 12

// errCorrupt marks payloads whose codec header does not match the body.
var errCorrupt = errors.New("corrupt compressed artifact")

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Store compresses artifacts on Put and decompresses them on Get.
type Store struct {
	inner driven.ArtifactStore
	codec domain.Compression
}

// New wraps inner. CompressionNone returns inner unchanged.
func New(inner driven.ArtifactStore, codec domain.Compression) (driven.ArtifactStore, error) {
	if codec == domain.CompressionNone || codec == "" {
		return inner, nil
	}
	if !codec.IsValid() {
		return nil, fmt.Errorf("%w: compression %q", domain.ErrInvalidInput, codec)
	}
	return &Store{inner: inner, codec: codec}, nil
}

// Put encodes data with the configured codec and stores it.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	encoded, err := Encode(s.codec, data)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, name, encoded)
}

// Get loads and decodes the artifact.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	raw, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return data, nil
}

// Delete removes the artifact.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// Location returns the wrapped store's location.
func (s *Store) Location(name string) string {
	return s.inner.Location(name)
}

// Encode compresses data with codec.
func Encode(codec domain.Compression, data []byte) ([]byte, error) {
	switch codec {
	case domain.CompressionNone, "":
		return data, nil
	case domain.CompressionZstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case domain.CompressionLZ4:
		return encodeLZ4(data)
	default:
		return nil, fmt.Errorf("%w: compression %q", domain.ErrInvalidInput, codec)
	}
}

// Decode detects the codec from the payload header and decompresses it.
// Payloads without a known header are returned as is.
func Decode(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(data, lz4Magic):
		return decodeLZ4(data)
	default:
		return data, nil
	}
}

// Detect reports which codec produced data.
func Detect(data []byte) domain.Compression {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return domain.CompressionZstd
	case bytes.HasPrefix(data, lz4Magic):
		return domain.CompressionLZ4
	default:
		return domain.CompressionNone
	}
}

func encodeLZ4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf[lz4HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}

	copy(buf, lz4Magic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(data)))
	if n == 0 || n >= len(data) {
		// Incompressible, store raw.
		binary.LittleEndian.PutUint32(buf[8:], 0)
		out := append(buf[:lz4HeaderSize], data...)
		return out, nil
	}
	binary.LittleEndian.PutUint32(buf[8:], uint32(n))
	return buf[:lz4HeaderSize+n], nil
}

func decodeLZ4(data []byte) ([]byte, error) {
	if len(data) < lz4HeaderSize {
		return nil, fmt.Errorf("lz4: %w: short header", errCorrupt)
	}
	size := int(binary.LittleEndian.Uint32(data[4:]))
	compressed := int(binary.LittleEndian.Uint32(data[8:]))
	body := data[lz4HeaderSize:]

	if compressed == 0 {
		if len(body) != size {
			return nil, fmt.Errorf("lz4: %w: stored size %d, have %d", errCorrupt, size, len(body))
		}
		return append([]byte(nil), body...), nil
	}
	if len(body) != compressed {
		return nil, fmt.Errorf("lz4: %w: compressed size %d, have %d", errCorrupt, compressed, len(body))
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("lz4: %w: decoded %d bytes, expected %d", errCorrupt, n, size)
	}
	return out, nil
}
