package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoboStack/xtensor-ros/application"
	"github.com/RoboStack/xtensor-ros/internal/json"
	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

func newTestEnv(t *testing.T, stdin []byte) (*env, *bytes.Buffer, *bytes.Buffer) {
	cfg, err := application.Load(nil)
	require.NoError(t, err)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &env{
		app:    application.New(),
		cfg:    cfg,
		stdin:  bytes.NewReader(stdin),
		stdout: stdout,
		stderr: stderr,
	}, stdout, stderr
}

func TestDispatchUsage(t *testing.T) {
	e, _, stderr := newTestEnv(t, nil)
	assert.Equal(t, errUsage, dispatch(context.Background(), e, nil))
	assert.Contains(t, stderr.String(), "encode")

	stderr.Reset()
	assert.Equal(t, errUsage, dispatch(context.Background(), e, []string{"bogus"}))
	assert.Contains(t, stderr.String(), `unknown command "bogus"`)

	assert.NoError(t, dispatch(context.Background(), e, []string{"types", "--help"}))
}

func TestTypes(t *testing.T) {
	e, stdout, _ := newTestEnv(t, nil)
	require.NoError(t, dispatch(context.Background(), e, []string{"types"}))

	var views []typeView
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &views))
	require.Len(t, views, len(msgs.Descriptors()))
	assert.Equal(t, "i8", views[0].Name)
	assert.Equal(t, "xtensor_ros/f64", views[len(views)-1].DataType)
	assert.Equal(t, 8, views[len(views)-1].ElemSize)
}

func TestEncodeDecode(t *testing.T) {
	e, stdout, _ := newTestEnv(t, nil)
	args := []string{"encode", "-t", "f64", "--shape", "2,3", "--values", "1,2,3,4,5,6.5"}
	require.NoError(t, dispatch(context.Background(), e, args))

	wire := append([]byte(nil), stdout.Bytes()...)
	// shape: count + 2 x u64, strides: count + 2 x u64, data: count + 6 x f64
	assert.Len(t, wire, 4+16+4+16+4+48)
	assert.Equal(t, uint32(2), binary.NativeEndian.Uint32(wire))

	d, stdout, _ := newTestEnv(t, wire)
	require.NoError(t, dispatch(context.Background(), d, []string{"decode", "--type", "xtensor_ros/f64"}))

	var got struct {
		Type    string    `json:"type"`
		Shape   []uint64  `json:"shape"`
		Strides []uint64  `json:"strides"`
		Data    []float64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, "xtensor_ros/f64", got.Type)
	assert.Equal(t, []uint64{2, 3}, got.Shape)
	assert.Equal(t, []uint64{3, 1}, got.Strides)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6.5}, got.Data)
}

func TestEncodeFramed(t *testing.T) {
	ops, err := opsFor("u8")
	require.NoError(t, err)
	b, err := ops.encode(nil, []string{"1", "0x10", "255"}, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(b)-4), binary.NativeEndian.Uint32(b))

	v, err := ops.decode(b, true)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, v.Shape)
	assert.Equal(t, []uint16{1, 16, 255}, v.Data)

	_, err = ops.decode(b[:len(b)-1], true)
	assert.Error(t, err)
}

func TestEncodeErrors(t *testing.T) {
	_, err := opsFor("")
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
	_, err = opsFor("c128")
	assert.ErrorIs(t, err, merr.ErrTypeUnsupported)

	ops, err := opsFor("i8")
	require.NoError(t, err)
	_, err = ops.encode(nil, []string{"128"}, false)
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	_, err = ops.encode([]uint64{2, 2}, []string{"1", "2", "3"}, false)
	assert.ErrorIs(t, err, merr.ErrShapeMismatch)

	b, err := ops.encode([]uint64{2, 2}, nil, false)
	require.NoError(t, err)
	v, err := ops.decode(b, false)
	require.NoError(t, err)
	assert.Equal(t, []int8{0, 0, 0, 0}, v.Data)

	// shape=[1<<62] strides=[1] 且没有数据。
	hostile := binary.NativeEndian.AppendUint32(nil, 1)
	hostile = binary.NativeEndian.AppendUint64(hostile, 1<<62)
	hostile = binary.NativeEndian.AppendUint32(hostile, 1)
	hostile = binary.NativeEndian.AppendUint64(hostile, 1)
	hostile = binary.NativeEndian.AppendUint32(hostile, 0)
	_, err = ops.decode(hostile, false)
	assert.ErrorIs(t, err, merr.ErrShapeMismatch)
}

func TestParseValue(t *testing.T) {
	f, err := parseValue[float32](" 1.5 ")
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)

	i, err := parseValue[int16]("-0x10")
	require.NoError(t, err)
	assert.Equal(t, int16(-16), i)

	_, err = parseValue[uint32]("-1")
	assert.Error(t, err)
}
