// Package serialization 提供消息序列化框架：内存游标流、定长前缀序列原语，
// 以及按 trait 接口驱动的消息编解码入口。
//
// 所有多字节整数与元素块均按本机字节序写出。
package serialization

import (
	"encoding/binary"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// byteOrder 为线上使用的字节序。元素块按内存原样拷贝，长度前缀与之保持一致。
var byteOrder = binary.NativeEndian

// OStream 是写入方向的内存游标，底层缓冲区由调用方按 SerializedLength 预先分配。
type OStream struct {
	buf []byte
	pos int
}

// NewOStream 基于 buf 创建写游标。
func NewOStream(buf []byte) *OStream {
	return &OStream{buf: buf}
}

// Advance 预留接下来的 n 个字节并返回对应切片，调用方直接向其中拷贝数据。
// 超出缓冲区时返回 ErrStreamOverrun，游标不移动。
func (s *OStream) Advance(n int) ([]byte, error) {
	if n < 0 || n > len(s.buf)-s.pos {
		return nil, merr.WrapErrStreamOverrun(n, s.Left(), "write")
	}
	b := s.buf[s.pos : s.pos+n : s.pos+n]
	s.pos += n
	return b, nil
}

// NextUint32 写入一个 uint32。
func (s *OStream) NextUint32(v uint32) error {
	b, err := s.Advance(4)
	if err != nil {
		return err
	}
	byteOrder.PutUint32(b, v)
	return nil
}

// Bytes 返回已写入的部分。
func (s *OStream) Bytes() []byte { return s.buf[:s.pos] }

// Len 返回已写入的字节数。
func (s *OStream) Len() int { return s.pos }

// Left 返回剩余可写字节数。
func (s *OStream) Left() int { return len(s.buf) - s.pos }

// IStream 是读取方向的内存游标。Advance 返回的切片与源缓冲区共享内存。
type IStream struct {
	buf []byte
	pos int
}

// NewIStream 基于 buf 创建读游标。
func NewIStream(buf []byte) *IStream {
	return &IStream{buf: buf}
}

// Advance 消费接下来的 n 个字节。剩余不足时返回 ErrStreamOverrun，游标不移动。
func (s *IStream) Advance(n int) ([]byte, error) {
	if n < 0 || n > len(s.buf)-s.pos {
		return nil, merr.WrapErrStreamOverrun(n, s.Left(), "read")
	}
	b := s.buf[s.pos : s.pos+n : s.pos+n]
	s.pos += n
	return b, nil
}

// NextUint32 读取一个 uint32。
func (s *IStream) NextUint32() (uint32, error) {
	b, err := s.Advance(4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b), nil
}

// Len 返回已读取的字节数。
func (s *IStream) Len() int { return s.pos }

// Left 返回尚未读取的字节数。
func (s *IStream) Left() int { return len(s.buf) - s.pos }
