package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec applied by Compressed.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

// ParseCompression maps a config value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return CompressionNone, fmt.Errorf("unknown compression %q", s)
}

func (c Compression) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return "none"
}

// Envelope: 'S' 'Z' kind 0x00 | u32 big-endian raw size | payload.
// Serialized indexes start with a zero byte, so the magic never collides
// with an uncompressed blob.
const (
	envelopeSize = 8
	magic0       = 'S'
	magic1       = 'Z'
	// maxRawSize bounds the allocation made for a decompressed blob.
	maxRawSize = 1 << 30
)

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

// CompressedStore compresses blobs on Put and transparently decompresses
// them on Get. Blobs written without compression are read as they are.
type CompressedStore struct {
	Store
	kind Compression
}

// Compressed wraps s. With CompressionNone blobs are written unchanged.
func Compressed(s Store, kind Compression) *CompressedStore {
	return &CompressedStore{Store: s, kind: kind}
}

// Get reads and, when enveloped, decompresses the blob.
func (c *CompressedStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := c.Store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return unpack(data)
}

// Put compresses data before writing it.
func (c *CompressedStore) Put(ctx context.Context, name string, data []byte) error {
	packed, err := pack(data, c.kind)
	if err != nil {
		return err
	}
	return c.Store.Put(ctx, name, packed)
}

func pack(data []byte, kind Compression) ([]byte, error) {
	if kind == CompressionNone || len(data) == 0 {
		return data, nil
	}
	if len(data) > maxRawSize {
		return nil, fmt.Errorf("blob of %d bytes is too large to compress", len(data))
	}

	header := make([]byte, envelopeSize)
	header[0], header[1] = magic0, magic1
	binary.BigEndian.PutUint32(header[4:], uint32(len(data)))

	switch kind {
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		header[2] = byte(CompressionZSTD)
		return enc.EncodeAll(data, header), nil
	case CompressionLZ4:
		buf := make([]byte, envelopeSize+lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf[envelopeSize:], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible input is stored as is inside the envelope.
			header[2] = byte(CompressionNone)
			return append(header, data...), nil
		}
		header[2] = byte(CompressionLZ4)
		copy(buf, header)
		return buf[:envelopeSize+n], nil
	}
	return nil, fmt.Errorf("unknown compression %d", kind)
}

func unpack(data []byte) ([]byte, error) {
	if len(data) < envelopeSize || data[0] != magic0 || data[1] != magic1 {
		return data, nil
	}
	size := int(binary.BigEndian.Uint32(data[4:]))
	if size > maxRawSize {
		return nil, fmt.Errorf("compressed blob claims %d bytes", size)
	}
	payload := data[envelopeSize:]

	switch Compression(data[2]) {
	case CompressionNone:
		if len(payload) != size {
			return nil, fmt.Errorf("stored blob has %d bytes, header says %d", len(payload), size)
		}
		return payload, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd blob decompressed to %d bytes, header says %d", len(out), size)
		}
		return out, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 blob decompressed to %d bytes, header says %d", n, size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown compression kind %d", data[2])
}
