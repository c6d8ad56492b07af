package serialization

import (
	"math"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// Serializable 是可写入内存流的值。
//
// SerializedLength 必须与 Serialize 实际写出的字节数严格相等，
// 上层按它预分配缓冲区。
type Serializable interface {
	SerializedLength() int
	Serialize(s *OStream) error
	Deserialize(s *IStream) error
}

// Traits 描述消息类型的静态身份信息。
type Traits interface {
	MD5Sum() string
	DataType() string
	Definition() string
	IsFixedSize() bool
	IsSimple() bool
}

// Message 是框架可直接收发的消息：身份信息加编解码。
type Message interface {
	Traits
	Serializable
}

// Serialize 按 m.SerializedLength() 分配缓冲区并写入 m。
// 写出字节数与声明长度不一致时返回错误。
func Serialize(m Serializable) ([]byte, error) {
	buf := make([]byte, m.SerializedLength())
	s := NewOStream(buf)
	if err := m.Serialize(s); err != nil {
		return nil, err
	}
	if s.Left() != 0 {
		return nil, merr.WrapErrStreamTrailing(s.Left(), "serialized length larger than written bytes")
	}
	return buf, nil
}

// Deserialize 从 b 中解出 m，b 必须恰好被完整消费。
func Deserialize(b []byte, m Serializable) error {
	s := NewIStream(b)
	if err := m.Deserialize(s); err != nil {
		return err
	}
	if s.Left() != 0 {
		return merr.WrapErrStreamTrailing(s.Left())
	}
	return nil
}

// SerializeMessage 在消息体前加上 uint32 总长度，与 ROS 的 serializeMessage 布局一致。
func SerializeMessage(m Serializable) ([]byte, error) {
	n := m.SerializedLength()
	if uint64(n) > math.MaxUint32 {
		return nil, merr.WrapErrParameterTooLarge("message", "serialized length exceeds uint32")
	}
	buf := make([]byte, lengthFieldSize+n)
	s := NewOStream(buf)
	if err := s.NextUint32(uint32(n)); err != nil {
		return nil, err
	}
	if err := m.Serialize(s); err != nil {
		return nil, err
	}
	if s.Left() != 0 {
		return nil, merr.WrapErrStreamTrailing(s.Left(), "serialized length larger than written bytes")
	}
	return buf, nil
}

// DeserializeMessage 校验长度前缀后解出 m。
func DeserializeMessage(b []byte, m Serializable) error {
	s := NewIStream(b)
	n, err := s.NextUint32()
	if err != nil {
		return err
	}
	if int(n) != s.Left() {
		return merr.WrapErrParameterInvalid(int(n), s.Left(), "message length prefix")
	}
	return Deserialize(b[lengthFieldSize:], m)
}

// SeqLength 返回 WriteSeq(v) 写出的字节数。
func SeqLength[T Serializable](v []T) int {
	n := lengthFieldSize
	for i := range v {
		n += v[i].SerializedLength()
	}
	return n
}

// WriteSeq 是 WriteSlice 的逐元素版本，用于不能按内存块拷贝的元素类型。
func WriteSeq[T Serializable](s *OStream, v []T) error {
	if uint64(len(v)) > math.MaxUint32 {
		return merr.WrapErrParameterTooLarge("sequence", "element count exceeds uint32")
	}
	if err := s.NextUint32(uint32(len(v))); err != nil {
		return err
	}
	for i := range v {
		if err := v[i].Serialize(s); err != nil {
			return err
		}
	}
	return nil
}

// ReadSeq 是 ReadSlice 的逐元素版本。
func ReadSeq[T any, PT interface {
	*T
	Serializable
}](s *IStream, dst *[]T) error {
	n, err := s.NextUint32()
	if err != nil {
		return err
	}
	count := int(n)
	// 每个元素至少占 1 字节，超出剩余长度的个数必然越界。
	if count > s.Left() {
		return merr.WrapErrStreamOverrun(count, s.Left(), "read sequence")
	}
	out := make([]T, count)
	for i := range out {
		if err := PT(&out[i]).Deserialize(s); err != nil {
			return err
		}
	}
	*dst = out
	return nil
}
