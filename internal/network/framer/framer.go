package framer

import (
	"encoding/binary"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// Framer 抽象了基于 Envelope 的打包/解包能力。
//
// 约定：
//   - 一帧数据的格式为：4 字节大端无符号整型（表示后续 Envelope 序列化后的长度）+ Envelope 二进制数据。
//   - Envelope 使用 protobuf 线上格式编码。
type Framer interface {
	// WriteFrame 将 Envelope 打包为一帧并写入到 w 中。
	WriteFrame(w io.Writer, env *Envelope) error

	// ReadFrame 从 r 中读取一帧数据并解包为 Envelope。
	ReadFrame(r io.Reader) (*Envelope, error)
}

// LengthPrefixedFramer 使用长度前缀（4 字节大端）作为帧边界，适用于 TCP 等流式连接。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大帧大小（Envelope 序列化后长度），单位字节。
	// 为 0 时使用默认值 DefaultMaxFrameSize。
	MaxFrameSize uint32
}

const DefaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB

var _ Framer = (*LengthPrefixedFramer)(nil)

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// WriteFrame 将 Envelope 编码为长度前缀帧，并以一次 Write 写出。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, env *Envelope) error {
	if env == nil {
		return merr.WrapErrParameterMissing("envelope")
	}
	if env.Header == nil {
		env.Header = &MessageHeader{}
	}
	// 自动修正 size 字段，保证与 payload 长度一致。
	env.Header.Size = uint32(len(env.Payload))

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = append(buf.B[:0], 0, 0, 0, 0)
	buf.B = AppendEnvelope(buf.B, env)

	length := len(buf.B) - 4
	if length > int(f.effectiveMaxSize()) {
		return merr.WrapErrFrameTooLarge(length, int(f.effectiveMaxSize()))
	}
	binary.BigEndian.PutUint32(buf.B[:4], uint32(length))

	if _, err := w.Write(buf.B); err != nil {
		return merr.WrapErrIoFailed("write frame", err)
	}
	return nil
}

// ReadFrame 从流中读取一帧数据并解码为 Envelope。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > f.effectiveMaxSize() {
		return nil, merr.WrapErrFrameTooLarge(int(length), int(f.effectiveMaxSize()))
	}
	if length == 0 {
		// 空帧视为空 Envelope。
		return &Envelope{Header: &MessageHeader{}}, nil
	}

	// 使用 ByteBuffer 池降低频繁 make 带来的分配与 GC 压力。
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if cap(buf.B) < int(length) {
		buf.B = make([]byte, int(length))
	} else {
		buf.B = buf.B[:int(length)]
	}
	if _, err := io.ReadFull(r, buf.B); err != nil {
		return nil, merr.WrapErrIoUnexpectEOF("frame body", err)
	}

	return ParseEnvelope(buf.B)
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return f.MaxFrameSize
}
