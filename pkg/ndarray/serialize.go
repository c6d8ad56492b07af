package ndarray

import (
	"math"
	"slices"

	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/serialization"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
	"github.com/RoboStack/xtensor-ros/pkg/util/typeutil"
)

// SerializedLength 返回编码后的字节数，仅由 shape、strides、data 的长度决定。
func (a *Array[T]) SerializedLength() int {
	return serialization.SliceLength(a.shape) +
		serialization.SliceLength(a.strides) +
		serialization.SliceLength(a.data)
}

// Serialize 依次写出 shape、strides、data 三个定长前缀序列。
func (a *Array[T]) Serialize(s *serialization.OStream) error {
	if err := serialization.WriteSlice(s, a.shape); err != nil {
		return err
	}
	if err := serialization.WriteSlice(s, a.strides); err != nil {
		return err
	}
	return serialization.WriteSlice(s, a.data)
}

// Deserialize 读取 shape、strides 与 data，缓冲区大小由 data 的计数决定。
// strides 采用线上的值，因此非行优先布局也能原样还原。
// 解码失败时 a 的 shape、strides 与缓冲区长度保持不变。
func (a *Array[T]) Deserialize(s *serialization.IStream) error {
	var shape, strides []uint64
	if err := serialization.ReadSlice(s, &shape); err != nil {
		return err
	}
	if n, ok := typeutil.CheckedProduct(shape); !ok || n > math.MaxInt {
		return merr.WrapErrShapeMismatch(shape, -1, "shape size overflows")
	}
	if err := serialization.ReadSlice(s, &strides); err != nil {
		return err
	}
	data := a.data
	if err := serialization.ReadSlice(s, &data); err != nil {
		return err
	}
	if err := checkLayout(shape, strides, len(data)); err != nil {
		return err
	}
	a.shape, a.strides, a.data = shape, strides, data
	return nil
}

// checkLayout 确认 shape 与 strides 可寻址的最大偏移落在 n 个元素之内。
func checkLayout(shape, strides []uint64, n int) error {
	if len(strides) != len(shape) {
		return merr.WrapErrShapeMismatch(shape, n, "strides rank differs from shape")
	}
	if len(shape) == 0 || slices.Contains(shape, 0) {
		return nil
	}
	var last uint64
	for i, d := range shape {
		step, ok := typeutil.CheckedProduct([]uint64{d - 1, strides[i]})
		if !ok || last > math.MaxUint64-step {
			return merr.WrapErrShapeMismatch(shape, n, "strides overflow")
		}
		last += step
	}
	if last >= uint64(n) {
		return merr.WrapErrShapeMismatch(shape, n, "data shorter than layout")
	}
	return nil
}

// Marshal 把 a 编码为字节切片。
func Marshal[T msgs.Element](a *Array[T]) ([]byte, error) {
	return serialization.Serialize(a)
}

// Unmarshal 从 b 解码出一个拥有独立存储的数组。
func Unmarshal[T msgs.Element](b []byte) (*Array[T], error) {
	a := &Array[T]{}
	if err := serialization.Deserialize(b, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UnmarshalView 从 b 解码数组，data 在对齐允许时直接别名 b。
// 别名成立时返回的数组在 b 被修改或复用后不可再读取。
func UnmarshalView[T msgs.Element](b []byte) (*Array[T], error) {
	m := &msgs.Message[T]{}
	s := serialization.NewIStream(b)
	if _, err := m.DeserializeView(s); err != nil {
		return nil, err
	}
	if s.Left() != 0 {
		return nil, merr.WrapErrStreamTrailing(s.Left())
	}
	return FromMsg(m), nil
}
