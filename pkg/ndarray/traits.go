package ndarray

import (
	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/serialization"
)

var (
	_ serialization.Message = (*Array[float64])(nil)
	_ serialization.Message = (*Array[uint8])(nil)
)

// 以下方法把数组的身份查询转发给 msgs.Message[T]，框架因此把 Array[T]
// 与对应的线上消息视为同一种类型。结果只取决于 T，与 shape 和内容无关。

func (a *Array[T]) MD5Sum() string     { return msgs.DescriptorOf[T]().MD5Sum }
func (a *Array[T]) DataType() string   { return msgs.DescriptorOf[T]().DataType }
func (a *Array[T]) Definition() string { return msgs.DescriptorOf[T]().Definition }

// IsFixedSize 恒为 false：编码长度随 shape 与元素个数变化，即使只有一个元素。
func (a *Array[T]) IsFixedSize() bool { return false }

// IsSimple 恒为 false。
func (a *Array[T]) IsSimple() bool { return false }

// Descriptor 返回 Array[T] 使用的消息描述。
func Descriptor[T msgs.Element]() msgs.Descriptor {
	return msgs.DescriptorOf[T]()
}
