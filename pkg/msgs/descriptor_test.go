package msgs

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/RoboStack/xtensor-ros/pkg/serialization"
)

type DescriptorSuite struct {
	suite.Suite
}

func (s *DescriptorSuite) TestKindOf() {
	s.Equal(KindInt8, KindOf[int8]())
	s.Equal(KindInt16, KindOf[int16]())
	s.Equal(KindInt32, KindOf[int32]())
	s.Equal(KindInt64, KindOf[int64]())
	s.Equal(KindUint8, KindOf[uint8]())
	s.Equal(KindUint16, KindOf[uint16]())
	s.Equal(KindUint32, KindOf[uint32]())
	s.Equal(KindUint64, KindOf[uint64]())
	s.Equal(KindFloat32, KindOf[float32]())
	s.Equal(KindFloat64, KindOf[float64]())

	s.Equal(8, KindFloat64.Size())
	s.Equal(1, KindUint8.Size())
	s.Equal(0, KindInvalid.Size())
	s.Equal("float32", KindFloat32.String())
	s.Equal("Kind(200)", Kind(200).String())
}

func (s *DescriptorSuite) TestIsElement() {
	s.True(IsElement[int8]())
	s.True(IsElement[uint64]())
	s.True(IsElement[float32]())

	type celsius float64
	s.False(IsElement[celsius]())
	s.False(IsElement[int]())
	s.False(IsElement[string]())
	s.False(IsElement[complex128]())
	s.False(IsElement[bool]())
}

func (s *DescriptorSuite) TestDescriptorOf() {
	d := DescriptorOf[float64]()
	s.Equal("xtensor_ros/f64", d.DataType)
	s.Equal("f64", d.Name)
	s.Equal("uint64[] shape\nuint64[] strides\nfloat64[] data\n", d.Definition)
	sum := md5.Sum([]byte("uint64[] shape\nuint64[] strides\nfloat64[] data"))
	s.Equal(hex.EncodeToString(sum[:]), d.MD5Sum)
	s.Equal(8, d.ElemSize)
	s.False(d.IsFixedSize())
	s.False(d.IsSimple())

	s.Equal("xtensor_ros/u8", DescriptorOf[uint8]().DataType)
	s.Equal("xtensor_ros/i16", DescriptorOf[int16]().DataType)
}

func (s *DescriptorSuite) TestDescriptorsDistinct() {
	all := Descriptors()
	s.Len(all, 10)

	names := make(map[string]struct{})
	sums := make(map[string]struct{})
	for _, d := range all {
		names[d.DataType] = struct{}{}
		sums[d.MD5Sum] = struct{}{}
		s.NotEqual(KindInvalid, d.Kind)
	}
	s.Len(names, 10)
	s.Len(sums, 10)
}

func (s *DescriptorSuite) TestLookup() {
	d, ok := Lookup("xtensor_ros/i32")
	s.True(ok)
	s.Equal(KindInt32, d.Kind)

	d, ok = Lookup("f32")
	s.True(ok)
	s.Equal(KindFloat32, d.Kind)

	_, ok = Lookup("xtensor_ros/c64")
	s.False(ok)

	d, ok = LookupMD5(DescriptorOf[uint16]().MD5Sum)
	s.True(ok)
	s.Equal(KindUint16, d.Kind)
	_, ok = LookupMD5("00000000000000000000000000000000")
	s.False(ok)
}

func TestDescriptor(t *testing.T) {
	suite.Run(t, new(DescriptorSuite))
}

func TestMessageTraits(t *testing.T) {
	small := &F32{Shape: []uint64{1}, Strides: []uint64{1}, Data: []float32{1}}
	large := &F32{Shape: []uint64{2, 3}, Strides: []uint64{3, 1}, Data: make([]float32, 6)}

	assert.Equal(t, small.MD5Sum(), large.MD5Sum())
	assert.Equal(t, small.Definition(), large.Definition())
	assert.Equal(t, "xtensor_ros/f32", small.DataType())
	assert.False(t, small.IsFixedSize())
	assert.False(t, small.IsSimple())
	assert.NotEqual(t, small.MD5Sum(), (&F64{}).MD5Sum())
}

func TestMessageRoundTrip(t *testing.T) {
	in := &I16{Shape: []uint64{2, 2}, Strides: []uint64{2, 1}, Data: []int16{-1, 2, -3, 4}}
	b, err := serialization.Serialize(in)
	require.NoError(t, err)
	assert.Len(t, b, in.SerializedLength())
	assert.Equal(t, 4+16+4+16+4+8, len(b))

	out := &I16{}
	require.NoError(t, serialization.Deserialize(b, out))
	assert.Equal(t, in, out)
}

func TestMessageDeserializeView(t *testing.T) {
	in := &U64{Shape: []uint64{3}, Strides: []uint64{1}, Data: []uint64{7, 8, 9}}
	b, err := serialization.Serialize(in)
	require.NoError(t, err)

	out := &U64{}
	_, err = out.DeserializeView(serialization.NewIStream(b))
	require.NoError(t, err)
	assert.Equal(t, in.Data, out.Data)
	assert.Equal(t, in.Shape, out.Shape)
}
