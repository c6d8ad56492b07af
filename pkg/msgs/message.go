package msgs

import (
	"github.com/RoboStack/xtensor-ros/pkg/serialization"
)

// Message 是元素类型为 T 的数组线上消息，字段顺序即线上顺序。
type Message[T Element] struct {
	Shape   []uint64
	Strides []uint64
	Data    []T
}

// 各元素类型对应的消息类型。
type (
	I8  = Message[int8]
	I16 = Message[int16]
	I32 = Message[int32]
	I64 = Message[int64]
	U8  = Message[uint8]
	U16 = Message[uint16]
	U32 = Message[uint32]
	U64 = Message[uint64]
	F32 = Message[float32]
	F64 = Message[float64]
)

var _ serialization.Message = (*F64)(nil)

func (m *Message[T]) MD5Sum() string     { return DescriptorOf[T]().MD5Sum }
func (m *Message[T]) DataType() string   { return DescriptorOf[T]().DataType }
func (m *Message[T]) Definition() string { return DescriptorOf[T]().Definition }
func (m *Message[T]) IsFixedSize() bool  { return false }
func (m *Message[T]) IsSimple() bool     { return false }

// SerializedLength 返回三个定长前缀序列的长度之和。
func (m *Message[T]) SerializedLength() int {
	return serialization.SliceLength(m.Shape) +
		serialization.SliceLength(m.Strides) +
		serialization.SliceLength(m.Data)
}

func (m *Message[T]) Serialize(s *serialization.OStream) error {
	if err := serialization.WriteSlice(s, m.Shape); err != nil {
		return err
	}
	if err := serialization.WriteSlice(s, m.Strides); err != nil {
		return err
	}
	return serialization.WriteSlice(s, m.Data)
}

func (m *Message[T]) Deserialize(s *serialization.IStream) error {
	if err := serialization.ReadSlice(s, &m.Shape); err != nil {
		return err
	}
	if err := serialization.ReadSlice(s, &m.Strides); err != nil {
		return err
	}
	return serialization.ReadSlice(s, &m.Data)
}

// DeserializeView 与 Deserialize 相同，但 Data 尽量直接别名 s 的底层缓冲区。
// 别名发生时，m 在该缓冲区被释放或复用后不可再读取。
func (m *Message[T]) DeserializeView(s *serialization.IStream) (aliased bool, err error) {
	if err = serialization.ReadSlice(s, &m.Shape); err != nil {
		return false, err
	}
	if err = serialization.ReadSlice(s, &m.Strides); err != nil {
		return false, err
	}
	m.Data, aliased, err = serialization.ViewSlice[T](s)
	return aliased, err
}
