package ndarray

import (
	"slices"

	"github.com/RoboStack/xtensor-ros/pkg/msgs"
)

// AsMsg 把数组转换为线上消息。shape、strides 原样拷贝，data 按缓冲区顺序逐元素拷贝，
// 不做数值转换或重排。返回的消息与 a 不共享存储，a 不会被修改。
func AsMsg[T msgs.Element](a *Array[T]) *msgs.Message[T] {
	return &msgs.Message[T]{
		Shape:   slices.Clone(a.shape),
		Strides: slices.Clone(a.strides),
		Data:    slices.Clone(a.data),
	}
}

// FromMsg 在消息的 data 上构造数组视图，寻址完全由消息中的 shape 与 strides 决定。
//
// 视图借用 m 的存储，不拷贝数据；m 被释放或修改后视图不可再使用。
// 需要独立存储时使用 FromMsgCopy。
func FromMsg[T msgs.Element](m *msgs.Message[T]) *Array[T] {
	return Adapt(m.Data, m.Shape, m.Strides)
}

// FromMsgCopy 与 FromMsg 相同，但返回的数组拥有独立存储。
func FromMsgCopy[T msgs.Element](m *msgs.Message[T]) *Array[T] {
	return FromMsg(m).Clone()
}
