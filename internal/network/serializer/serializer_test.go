package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RoboStack/xtensor-ros/pkg/ndarray"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

func TestWireSerializer(t *testing.T) {
	a, err := ndarray.FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	var s WireSerializer
	b, err := s.Marshal(a)
	require.NoError(t, err)
	assert.Len(t, b, a.SerializedLength())

	got := ndarray.New[float32]()
	require.NoError(t, s.Unmarshal(b, got))
	assert.True(t, a.Equal(got))

	_, err = s.Marshal("not a message")
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
	assert.ErrorIs(t, s.Unmarshal(b, &struct{}{}), merr.ErrTypeMismatch)

	assert.Error(t, s.Unmarshal(b[:5], ndarray.New[float32]()))
}

func TestJSONSerializer(t *testing.T) {
	var s JSONSerializer
	b, err := s.Marshal(map[string]any{"shape": []uint64{2, 3}})
	require.NoError(t, err)

	var got map[string][]uint64
	require.NoError(t, s.Unmarshal(b, &got))
	assert.Equal(t, []uint64{2, 3}, got["shape"])
}

func TestProtoSerializer(t *testing.T) {
	var s ProtoSerializer
	header, err := structpb.NewStruct(map[string]any{
		"topic":  "points",
		"md5sum": "abc",
	})
	require.NoError(t, err)

	b, err := s.Marshal(header)
	require.NoError(t, err)

	got := &structpb.Struct{}
	require.NoError(t, s.Unmarshal(b, got))
	assert.Equal(t, "points", got.Fields["topic"].GetStringValue())

	_, err = s.Marshal(42)
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
	assert.ErrorIs(t, s.Unmarshal(b, 42), merr.ErrTypeMismatch)
}
