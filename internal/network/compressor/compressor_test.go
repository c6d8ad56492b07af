package compressor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopCompressor(t *testing.T) {
	var c NopCompressor
	assert.False(t, c.ShouldCompress(1<<20))
	out, err := c.Compress(nil, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)
}

func TestZstdCompressor(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	defer c.Close()

	c.SetMinCompressSize(64)
	assert.False(t, c.ShouldCompress(0))
	assert.False(t, c.ShouldCompress(63))
	assert.True(t, c.ShouldCompress(64))

	src := bytes.Repeat([]byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}, 512)
	packed, err := c.Compress(nil, src)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(src))

	plain, err := c.Decompress(nil, packed)
	require.NoError(t, err)
	assert.Equal(t, src, plain)

	_, err = c.Decompress(nil, []byte("garbage"))
	assert.Error(t, err)

	c.Close()
	_, err = c.Compress(nil, src)
	assert.Error(t, err)
}
