package index

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/semantica/internal/codec"
	"github.com/hyperjump/semantica/internal/embedding"
	"github.com/hyperjump/semantica/internal/vector"
)

// headerSize is the width of the big-endian offset of the values section.
const headerSize = 8

// Encode serializes the index:
//
//	[0, 8)        u64 offset of the values section
//	[8, offset)   one block of D big-endian float32 per entry
//	[offset, end) per entry: u64 length L, then L bytes from c.Encode
//
// Entries appear in position order; the projection order is not stored.
func (x *Index[V]) Encode(c codec.Codec[V]) ([]byte, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	offset := headerSize + len(x.entries)*x.opts.dimension*vector.Float32Size
	out := make([]byte, headerSize, offset)
	binary.BigEndian.PutUint64(out, uint64(offset))
	for _, e := range x.entries {
		out = vector.AppendFloat32s(out, e.embedding)
	}
	for i, e := range x.entries {
		b, err := c.Encode(e.value)
		if err != nil {
			return nil, fmt.Errorf("encode value %d with %s codec: %w", i, c.Name(), err)
		}
		out = binary.BigEndian.AppendUint64(out, uint64(len(b)))
		out = append(out, b...)
	}
	return out, nil
}

// Decode rebuilds an index from Encode output. The dimension and options
// are the same as for New. Entries are re-inserted, so the projection order
// is recomputed with the given basis. Nothing is returned unless the whole
// input is well formed.
func Decode[V any](data []byte, c codec.Codec[V], emb embedding.Embedder, opts ...Option) (*Index[V], error) {
	x, err := New[V](emb, opts...)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize {
		return nil, &FormatError{Offset: 0, Reason: fmt.Sprintf("need %d header bytes, have %d", headerSize, len(data))}
	}

	raw := binary.BigEndian.Uint64(data)
	if raw < headerSize || raw > uint64(len(data)) {
		return nil, &FormatError{Offset: 0, Reason: fmt.Sprintf("values offset %d outside [%d, %d]", raw, headerSize, len(data))}
	}
	offset := int(raw)
	block := x.opts.dimension * vector.Float32Size
	if (offset-headerSize)%block != 0 {
		return nil, &FormatError{
			Offset: headerSize,
			Reason: fmt.Sprintf("embedding region of %d bytes is not a multiple of %d-byte blocks", offset-headerSize, block),
		}
	}
	n := (offset - headerSize) / block

	vecs := make([][]float32, n)
	for i := range vecs {
		start := headerSize + i*block
		vecs[i], _ = vector.DecodeFloat32s(data[start : start+block])
	}

	values := make([]V, n)
	pos := offset
	for i := range values {
		if len(data)-pos < 8 {
			return nil, &FormatError{Offset: pos, Reason: fmt.Sprintf("value %d: truncated length prefix", i)}
		}
		l := binary.BigEndian.Uint64(data[pos:])
		pos += 8
		if l > uint64(len(data)-pos) {
			return nil, &FormatError{Offset: pos, Reason: fmt.Sprintf("value %d: length %d exceeds remaining %d bytes", i, l, len(data)-pos)}
		}
		v, err := c.Decode(data[pos : pos+int(l)])
		if err != nil {
			return nil, &FormatError{Offset: pos, Reason: fmt.Sprintf("value %d", i), Err: err}
		}
		values[i] = v
		pos += int(l)
	}
	if pos != len(data) {
		return nil, &FormatError{Offset: pos, Reason: fmt.Sprintf("%d trailing bytes", len(data)-pos)}
	}

	for i := range vecs {
		x.insert(vecs[i], values[i])
	}
	x.logger.Debug("index decoded", zap.Int("entries", n), zap.Int("bytes", len(data)))
	return x, nil
}
