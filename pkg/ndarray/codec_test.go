package ndarray

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/serialization"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// sample 生成 shape 为 2x3 的测试数组，元素覆盖负数与小数（类型允许时）。
func sample[T msgs.Element]() *Array[T] {
	a := New[T](2, 3)
	for i := range a.data {
		a.data[i] = T(i*3) - T(1)
	}
	return a
}

func checkCodec[T msgs.Element](t *testing.T, a *Array[T]) {
	t.Helper()

	b, err := Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, a.SerializedLength(), len(b))

	out, err := Unmarshal[T](b)
	require.NoError(t, err)
	assert.True(t, a.Equal(out), "round trip of %s", a.DataType())
	assert.Equal(t, a.Shape(), out.Shape())
	assert.Equal(t, a.Strides(), out.Strides())

	view, err := UnmarshalView[T](b)
	require.NoError(t, err)
	assert.True(t, a.Equal(view))

	// 经过线上消息的路径。
	m := AsMsg(a)
	mb, err := serialization.Serialize(m)
	require.NoError(t, err)
	assert.Equal(t, b, mb, "array and message must share one wire layout")
	assert.Equal(t, a.MD5Sum(), m.MD5Sum())
	assert.Equal(t, a.DataType(), m.DataType())
}

type CodecSuite struct {
	suite.Suite
}

func (s *CodecSuite) TestAllElementTypes() {
	t := s.T()
	checkCodec(t, sample[int8]())
	checkCodec(t, sample[int16]())
	checkCodec(t, sample[int32]())
	checkCodec(t, sample[int64]())
	checkCodec(t, sample[uint8]())
	checkCodec(t, sample[uint16]())
	checkCodec(t, sample[uint32]())
	checkCodec(t, sample[uint64]())
	checkCodec(t, sample[float32]())
	checkCodec(t, sample[float64]())
}

func (s *CodecSuite) TestDistinctDescriptors() {
	seen := map[string]string{}
	record := func(dataType, sum string) {
		prev, ok := seen[sum]
		s.False(ok, "%s collides with %s", dataType, prev)
		seen[sum] = dataType
	}
	record(New[int8]().DataType(), New[int8]().MD5Sum())
	record(New[int16]().DataType(), New[int16]().MD5Sum())
	record(New[int32]().DataType(), New[int32]().MD5Sum())
	record(New[int64]().DataType(), New[int64]().MD5Sum())
	record(New[uint8]().DataType(), New[uint8]().MD5Sum())
	record(New[uint16]().DataType(), New[uint16]().MD5Sum())
	record(New[uint32]().DataType(), New[uint32]().MD5Sum())
	record(New[uint64]().DataType(), New[uint64]().MD5Sum())
	record(New[float32]().DataType(), New[float32]().MD5Sum())
	record(New[float64]().DataType(), New[float64]().MD5Sum())
	s.Len(seen, 10)
}

func (s *CodecSuite) TestSpecialFloats() {
	a, err := FromSlice([]float64{math.Inf(-1), math.MaxFloat64, -0.0, math.SmallestNonzeroFloat64}, 2, 2)
	s.Require().NoError(err)
	checkCodec(s.T(), a)

	nan, err := FromSlice([]float32{float32(math.NaN())}, 1)
	s.Require().NoError(err)
	b, err := Marshal(nan)
	s.Require().NoError(err)
	out, err := Unmarshal[float32](b)
	s.Require().NoError(err)
	s.True(math.IsNaN(float64(out.Data()[0])))
}

func (s *CodecSuite) TestLengthFormula() {
	a := New[float64](4, 5, 6)
	// 4+3*8, 4+3*8, 4+120*8
	s.Equal(28+28+4+960, a.SerializedLength())

	one := New[uint8](1)
	s.Equal(12+12+5, one.SerializedLength())
}

func (s *CodecSuite) TestEmptyArray() {
	a := New[float64](0)
	b, err := Marshal(a)
	s.Require().NoError(err)

	order := binary.NativeEndian
	s.Require().Len(b, 4+8+4+8+4)
	s.Equal(uint32(1), order.Uint32(b[0:]), "shape count")
	s.Equal(uint64(0), order.Uint64(b[4:]), "shape[0]")
	s.Equal(uint32(1), order.Uint32(b[12:]), "strides count")
	s.Equal(uint32(0), order.Uint32(b[24:]), "data count")

	out, err := Unmarshal[float64](b)
	s.Require().NoError(err)
	s.Equal([]uint64{0}, out.Shape())
	s.Len(out.Data(), 0)
	s.Equal(0, out.Size())
}

func (s *CodecSuite) TestIdentityIgnoresShape() {
	small := New[int32](2, 3)
	large := New[int32](10)
	s.Equal(small.MD5Sum(), large.MD5Sum())
	s.Equal(small.Definition(), large.Definition())
	s.Equal(small.DataType(), large.DataType())
	s.Equal(msgs.DescriptorOf[int32]().MD5Sum, small.MD5Sum())
	s.Equal(Descriptor[int32](), msgs.DescriptorOf[int32]())
}

func (s *CodecSuite) TestNeverFixedSize() {
	s.False(New[int8](1).IsFixedSize())
	s.False(New[int8](1).IsSimple())
	s.False(New[float64]().IsFixedSize())
	s.False(New[uint64](3, 3).IsSimple())
}

func (s *CodecSuite) TestNonContiguousStridesSurvive() {
	a := Adapt([]int16{1, 4, 2, 5, 3, 6}, []uint64{2, 3}, []uint64{1, 2})
	b, err := Marshal(a)
	s.Require().NoError(err)
	out, err := Unmarshal[int16](b)
	s.Require().NoError(err)
	s.Equal([]uint64{1, 2}, out.Strides())
	v, err := out.At(1, 0)
	s.Require().NoError(err)
	s.Equal(int16(4), v)
}

func (s *CodecSuite) TestTruncatedInput() {
	b, err := Marshal(sample[uint32]())
	s.Require().NoError(err)
	for _, n := range []int{0, 3, 4, 20, len(b) - 1} {
		_, err := Unmarshal[uint32](b[:n])
		s.ErrorIs(err, merr.ErrStreamOverrun, "prefix of %d bytes", n)
	}
	_, err = Unmarshal[uint32](append(b, 1))
	s.ErrorIs(err, merr.ErrStreamTrailing)
	_, err = UnmarshalView[uint32](append(b, 1))
	s.ErrorIs(err, merr.ErrStreamTrailing)
}

func (s *CodecSuite) TestDeserializeReusesBuffer() {
	dst := New[float32](100)
	backing := dst.Data()
	b, err := Marshal(sample[float32]())
	s.Require().NoError(err)
	s.Require().NoError(serialization.Deserialize(b, dst))
	s.Equal(6, len(dst.Data()))
	s.Equal(&backing[0], &dst.Data()[0])
}

func (s *CodecSuite) TestOversizedShapeRejected() {
	cases := []struct {
		shape   []uint64
		strides []uint64
	}{
		{[]uint64{1 << 62}, []uint64{1}},
		{[]uint64{1 << 32, 1 << 32}, []uint64{1 << 32, 1}},
		{[]uint64{3}, []uint64{math.MaxUint64}},
		{[]uint64{2, 3}, []uint64{3}},
	}
	for _, c := range cases {
		// 几十字节的输入声称远超缓冲区的元素个数。
		b, err := Marshal(Adapt([]float64{}, c.shape, c.strides))
		s.Require().NoError(err)
		_, err = Unmarshal[float64](b)
		s.ErrorIs(err, merr.ErrShapeMismatch, "shape %v strides %v", c.shape, c.strides)
	}

	short, err := Marshal(Adapt([]float64{1, 2, 3, 4, 5}, []uint64{2, 3}, []uint64{3, 1}))
	s.Require().NoError(err)
	_, err = Unmarshal[float64](short)
	s.ErrorIs(err, merr.ErrShapeMismatch)
}

func (s *CodecSuite) TestHugeShapeSizedByDataCount() {
	// shape 在 int 范围内时，缓冲区按 data 计数分配而不是按 shape。
	shape := []uint64{1 << 40}
	b, err := Marshal(Adapt([]int8{7}, shape, []uint64{0}))
	s.Require().NoError(err)
	out, err := Unmarshal[int8](b)
	s.Require().NoError(err)
	s.Equal(shape, out.Shape())
	s.Equal([]int8{7}, out.Data())
}

func (s *CodecSuite) TestFailedDeserializeKeepsArray() {
	dst := New[float32](2, 2)
	s.Require().NoError(dst.Set(5, 1, 1))

	b, err := Marshal(sample[float32]())
	s.Require().NoError(err)
	s.ErrorIs(serialization.Deserialize(b[:len(b)-4], dst), merr.ErrStreamOverrun)
	s.Equal([]uint64{2, 2}, dst.Shape())
	s.Equal([]uint64{2, 1}, dst.Strides())
	s.Equal([]float32{0, 0, 0, 5}, dst.Data())

	hostile, err := Marshal(Adapt([]float32{}, []uint64{1 << 32, 1 << 32}, []uint64{1, 1}))
	s.Require().NoError(err)
	s.Error(serialization.Deserialize(hostile, dst))
	s.Equal([]uint64{2, 2}, dst.Shape())
}

func TestCodec(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func TestAsMsgCopies(t *testing.T) {
	a := sample[int64]()
	m := AsMsg(a)
	assert.Equal(t, a.Shape(), m.Shape)
	assert.Equal(t, a.Strides(), m.Strides)
	assert.Equal(t, a.Data(), m.Data)

	m.Data[0] = 1000
	m.Shape[0] = 9
	v, _ := a.At(0, 0)
	assert.Equal(t, int64(-1), v)
	assert.Equal(t, uint64(2), a.Shape()[0])
}

func TestFromMsgBorrows(t *testing.T) {
	m := &msgs.F64{Shape: []uint64{2, 2}, Strides: []uint64{2, 1}, Data: []float64{1, 2, 3, 4}}
	view := FromMsg(m)

	// 解码后、消息释放前读取视图。
	v, err := view.At(1, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)
	assert.Equal(t, m.Data, view.Data())
	assert.Same(t, &m.Data[0], &view.Data()[0])

	owned := FromMsgCopy(m)
	assert.True(t, owned.Equal(view))
	m.Data[0] = -1
	v, _ = owned.At(0, 0)
	assert.Equal(t, float64(1), v)
}

func TestFromMsgKeepsWireStrides(t *testing.T) {
	m := &msgs.U8{Shape: []uint64{3}, Strides: []uint64{2}, Data: []uint8{1, 0, 2, 0, 3}}
	view := FromMsg(m)
	vals, err := view.Values()
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, vals)
}
