package ndarray

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/tensor"

	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// arrowType 返回元素类型对应的 Arrow 基本类型。
func arrowType(k msgs.Kind) arrow.DataType {
	switch k {
	case msgs.KindInt8:
		return arrow.PrimitiveTypes.Int8
	case msgs.KindInt16:
		return arrow.PrimitiveTypes.Int16
	case msgs.KindInt32:
		return arrow.PrimitiveTypes.Int32
	case msgs.KindInt64:
		return arrow.PrimitiveTypes.Int64
	case msgs.KindUint8:
		return arrow.PrimitiveTypes.Uint8
	case msgs.KindUint16:
		return arrow.PrimitiveTypes.Uint16
	case msgs.KindUint32:
		return arrow.PrimitiveTypes.Uint32
	case msgs.KindUint64:
		return arrow.PrimitiveTypes.Uint64
	case msgs.KindFloat32:
		return arrow.PrimitiveTypes.Float32
	case msgs.KindFloat64:
		return arrow.PrimitiveTypes.Float64
	}
	return nil
}

// ToArrowTensor 把数组包装为 Arrow 张量，不拷贝数据。
//
// Arrow 的 strides 以字节为单位，这里按元素大小换算。返回的张量引用 a 的缓冲区，
// 调用方用完后需调用 Release。
func ToArrowTensor[T msgs.Element](a *Array[T], names ...string) tensor.Interface {
	d := msgs.DescriptorOf[T]()
	var raw []byte
	if len(a.data) > 0 {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(a.data))), len(a.data)*d.ElemSize)
	}
	data := array.NewData(arrowType(d.Kind), len(a.data),
		[]*memory.Buffer{nil, memory.NewBufferBytes(raw)}, nil, 0, 0)
	defer data.Release()

	shape := make([]int64, len(a.shape))
	strides := make([]int64, len(a.strides))
	for i := range a.shape {
		shape[i] = int64(a.shape[i])
	}
	for i := range a.strides {
		strides[i] = int64(a.strides[i]) * int64(d.ElemSize)
	}
	if len(names) != len(shape) {
		names = nil
	}
	return tensor.New(data, shape, strides, names)
}

// FromArrowTensor 在 Arrow 张量的数据缓冲区上构造数组视图，不拷贝数据。
// 张量元素类型必须与 T 一致；视图在张量 Release 之前有效。
func FromArrowTensor[T msgs.Element](t tensor.Interface) (*Array[T], error) {
	d := msgs.DescriptorOf[T]()
	if want := arrowType(d.Kind); !arrow.TypeEqual(want, t.DataType()) {
		return nil, merr.WrapErrTypeMismatch(want.String(), t.DataType().String(), "arrow tensor")
	}

	shape := make([]uint64, t.NumDims())
	strides := make([]uint64, t.NumDims())
	for i, v := range t.Shape() {
		if v < 0 {
			return nil, merr.WrapErrParameterInvalidMsg("negative dimension %d in arrow tensor", v)
		}
		shape[i] = uint64(v)
	}
	for i, v := range t.Strides() {
		if v < 0 || v%int64(d.ElemSize) != 0 {
			return nil, merr.WrapErrParameterInvalidMsg("arrow stride %d is not a non-negative multiple of %d", v, d.ElemSize)
		}
		strides[i] = uint64(v / int64(d.ElemSize))
	}

	ad := t.Data()
	var values []T
	if bufs := ad.Buffers(); len(bufs) > 1 && bufs[1] != nil && bufs[1].Len() > 0 {
		raw := bufs[1].Bytes()
		all := unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(raw))), len(raw)/d.ElemSize)
		values = all[ad.Offset() : ad.Offset()+ad.Len()]
	}
	return Adapt(values, shape, strides), nil
}
