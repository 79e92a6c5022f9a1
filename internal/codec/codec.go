// Package codec converts index payload values to and from the byte strings
// stored in the values section of a serialized index.
package codec

import (
	"encoding/binary"
	"fmt"

	json "github.com/goccy/go-json"
)

// Codec encodes values of type V. Decode must accept exactly what Encode
// produced.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(b []byte) (V, error)
	Name() string
}

// Int32 stores values as 4 big-endian bytes.
type Int32 struct{}

func (Int32) Name() string { return "int32" }

func (Int32) Encode(v int32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, uint32(v)), nil
}

func (Int32) Decode(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("int32 value: expected 4 bytes, got %d", len(b))
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// Int64 stores values as 8 big-endian bytes.
type Int64 struct{}

func (Int64) Name() string { return "int64" }

func (Int64) Encode(v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(v)), nil
}

func (Int64) Decode(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("int64 value: expected 8 bytes, got %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// String stores the raw UTF-8 bytes.
type String struct{}

func (String) Name() string { return "string" }

func (String) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Bytes stores a copy of the slice.
type Bytes struct{}

func (Bytes) Name() string { return "bytes" }

func (Bytes) Encode(v []byte) ([]byte, error) { return append([]byte(nil), v...), nil }

func (Bytes) Decode(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }

// JSON stores any JSON-marshalable value.
type JSON[V any] struct{}

func (JSON[V]) Name() string { return "json" }

func (JSON[V]) Encode(v V) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json value: %w", err)
	}
	return b, nil
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("json value: %w", err)
	}
	return v, nil
}
