package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt32(t *testing.T) {
	c := Int32{}
	b, err := c.Encode(808)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x03, 0x28}, b)

	v, err := c.Decode([]byte{0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)

	_, err = c.Decode([]byte{1, 2})
	assert.Error(t, err)
}

func TestInt64(t *testing.T) {
	c := Int64{}
	b, err := c.Encode(1 << 40)
	require.NoError(t, err)
	require.Len(t, b, 8)
	v, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), v)

	_, err = c.Decode(b[:7])
	assert.Error(t, err)
}

func TestStringAndBytes(t *testing.T) {
	s, err := String{}.Decode([]byte("héllo"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	src := []byte{1, 2, 3}
	enc, err := Bytes{}.Encode(src)
	require.NoError(t, err)
	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, enc, "encode must copy")
}

func TestJSON(t *testing.T) {
	type doc struct {
		Title string `json:"title"`
		Rank  int    `json:"rank"`
	}
	c := JSON[doc]{}
	b, err := c.Encode(doc{Title: "cat", Rank: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"cat","rank":2}`, string(b))

	got, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, doc{Title: "cat", Rank: 2}, got)

	_, err = c.Decode([]byte("{"))
	assert.Error(t, err)
}
