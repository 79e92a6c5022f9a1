package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float32Size is the encoded width of one component.
const Float32Size = 4

// AppendFloat32s appends v to dst as big-endian IEEE-754 words.
func AppendFloat32s(dst []byte, v []float32) []byte {
	for _, f := range v {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// EncodeFloat32s returns v as big-endian IEEE-754 words.
func EncodeFloat32s(v []float32) []byte {
	return AppendFloat32s(make([]byte, 0, len(v)*Float32Size), v)
}

// DecodeFloat32s is the inverse of EncodeFloat32s.
func DecodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%Float32Size != 0 {
		return nil, fmt.Errorf("float32 block length %d is not a multiple of %d", len(b), Float32Size)
	}
	out := make([]float32, len(b)/Float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*Float32Size:]))
	}
	return out, nil
}
