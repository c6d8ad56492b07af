package framer

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

func TestFrameRoundTrip(t *testing.T) {
	f := NewLengthPrefixedFramer(0)
	var buf bytes.Buffer

	env := &Envelope{
		Header: &MessageHeader{
			Op:        4,
			Seq:       1 << 40,
			Flags:     3,
			Timestamp: -5,
		},
		Payload: []byte("array bytes"),
	}
	require.NoError(t, f.WriteFrame(&buf, env))
	assert.Equal(t, uint32(len(env.Payload)), env.Header.Size)

	// 第二帧没有负载也没有头。
	require.NoError(t, f.WriteFrame(&buf, &Envelope{}))

	got, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, *env.Header, *got.Header)
	assert.Equal(t, env.Payload, got.Payload)

	got, err = f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MessageHeader{}, *got.Header)
	assert.Empty(t, got.Payload)

	_, err = f.ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameTooLarge(t *testing.T) {
	f := NewLengthPrefixedFramer(16)
	var buf bytes.Buffer
	err := f.WriteFrame(&buf, &Envelope{Payload: make([]byte, 64)})
	assert.ErrorIs(t, err, merr.ErrFrameTooLarge)
	assert.Zero(t, buf.Len())

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 1024)
	_, err = f.ReadFrame(bytes.NewReader(hdr[:]))
	assert.ErrorIs(t, err, merr.ErrFrameTooLarge)
}

func TestFrameTruncated(t *testing.T) {
	f := NewLengthPrefixedFramer(0)
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, &Envelope{Payload: []byte("0123456789")}))

	_, err := f.ReadFrame(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	assert.ErrorIs(t, err, merr.ErrIoUnexpectEOF)
}

func TestParseEnvelopeCorrupted(t *testing.T) {
	b := AppendEnvelope(nil, &Envelope{Header: &MessageHeader{Op: 1, Size: 9}, Payload: []byte("abc")})
	_, err := ParseEnvelope(b)
	assert.ErrorIs(t, err, merr.ErrFrameCorrupted)

	_, err = ParseEnvelope([]byte{0x0a, 0x10, 0x01})
	assert.ErrorIs(t, err, merr.ErrFrameCorrupted)
}
