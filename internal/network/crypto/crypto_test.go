package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

func TestAEADHMAC(t *testing.T) {
	c, err := NewFromSecret("shared")
	require.NoError(t, err)

	plain := bytes.Repeat([]byte{1, 2, 3}, 100)
	aad := []byte("op|seq")

	packet, err := c.Encrypt(plain, aad)
	require.NoError(t, err)
	assert.NotEqual(t, plain, packet[:len(plain)])

	got, err := c.Decrypt(packet, aad)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	// 另一端用相同口令派生相同密钥。
	peer, err := NewFromSecret("shared")
	require.NoError(t, err)
	got, err = peer.Decrypt(packet, aad)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	_, err = c.Decrypt(packet, []byte("op|other"))
	assert.ErrorIs(t, err, merr.ErrFrameCorrupted)

	tampered := bytes.Clone(packet)
	tampered[len(tampered)/2] ^= 0xff
	_, err = c.Decrypt(tampered, aad)
	assert.ErrorIs(t, err, merr.ErrFrameCorrupted)

	_, err = c.Decrypt(packet[:10], aad)
	assert.ErrorIs(t, err, merr.ErrFrameCorrupted)

	other, err := NewFromSecret("different")
	require.NoError(t, err)
	_, err = other.Decrypt(packet, aad)
	assert.ErrorIs(t, err, merr.ErrFrameCorrupted)
}

func TestKeyValidation(t *testing.T) {
	_, err := NewAESGCMHMACCodec(make([]byte, 16), []byte("mac"))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	_, err = NewAESGCMHMACCodec(make([]byte, 32), nil)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
	_, err = NewFromSecret("")
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestNopEncryptor(t *testing.T) {
	var e NopEncryptor
	out, err := e.Encrypt([]byte("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)
}
