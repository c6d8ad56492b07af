package framer

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// MessageHeader 是每一帧携带的报文头。
type MessageHeader struct {
	// Op 为操作码，由上层协议定义。
	Op uint32
	// Seq 为发送方单调递增的序号。
	Seq uint64
	// Flags 为压缩、加密等标志位。
	Flags uint64
	// Timestamp 为发送时间，Unix 纳秒。
	Timestamp int64
	// Size 为 Payload 长度，由 framer 写出时自动修正。
	Size uint32
}

// Envelope 是帧的完整内容：报文头与负载。
type Envelope struct {
	Header  *MessageHeader
	Payload []byte
}

// 线上使用 protobuf 编码：
//
//	message MessageHeader { uint32 op = 1; uint64 seq = 2; uint64 flags = 3; int64 timestamp = 4; uint32 size = 5; }
//	message Envelope { MessageHeader header = 1; bytes payload = 2; }
const (
	headerFieldOp        protowire.Number = 1
	headerFieldSeq       protowire.Number = 2
	headerFieldFlags     protowire.Number = 3
	headerFieldTimestamp protowire.Number = 4
	headerFieldSize      protowire.Number = 5

	envelopeFieldHeader  protowire.Number = 1
	envelopeFieldPayload protowire.Number = 2
)

func appendHeader(b []byte, h *MessageHeader) []byte {
	if h.Op != 0 {
		b = protowire.AppendTag(b, headerFieldOp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.Op))
	}
	if h.Seq != 0 {
		b = protowire.AppendTag(b, headerFieldSeq, protowire.VarintType)
		b = protowire.AppendVarint(b, h.Seq)
	}
	if h.Flags != 0 {
		b = protowire.AppendTag(b, headerFieldFlags, protowire.VarintType)
		b = protowire.AppendVarint(b, h.Flags)
	}
	if h.Timestamp != 0 {
		b = protowire.AppendTag(b, headerFieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.Timestamp))
	}
	if h.Size != 0 {
		b = protowire.AppendTag(b, headerFieldSize, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.Size))
	}
	return b
}

// AppendEnvelope 将 env 的 protobuf 编码追加到 b。
func AppendEnvelope(b []byte, env *Envelope) []byte {
	if env.Header != nil {
		var scratch [48]byte
		header := appendHeader(scratch[:0], env.Header)
		b = protowire.AppendTag(b, envelopeFieldHeader, protowire.BytesType)
		b = protowire.AppendBytes(b, header)
	}
	if len(env.Payload) > 0 {
		b = protowire.AppendTag(b, envelopeFieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, env.Payload)
	}
	return b
}

func parseHeader(b []byte) (*MessageHeader, error) {
	h := &MessageHeader{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, merr.WrapErrFrameCorrupted(protowire.ParseError(n).Error(), "header tag")
		}
		b = b[n:]
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, merr.WrapErrFrameCorrupted(protowire.ParseError(n).Error(), "header field")
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, merr.WrapErrFrameCorrupted(protowire.ParseError(n).Error(), "header varint")
		}
		b = b[n:]
		switch num {
		case headerFieldOp:
			h.Op = uint32(v)
		case headerFieldSeq:
			h.Seq = v
		case headerFieldFlags:
			h.Flags = v
		case headerFieldTimestamp:
			h.Timestamp = int64(v)
		case headerFieldSize:
			h.Size = uint32(v)
		}
	}
	return h, nil
}

// ParseEnvelope 解析 protobuf 编码的 Envelope。Payload 会拷贝出 b，调用方可复用 b。
func ParseEnvelope(b []byte) (*Envelope, error) {
	env := &Envelope{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, merr.WrapErrFrameCorrupted(protowire.ParseError(n).Error(), "envelope tag")
		}
		b = b[n:]
		if typ != protowire.BytesType || (num != envelopeFieldHeader && num != envelopeFieldPayload) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, merr.WrapErrFrameCorrupted(protowire.ParseError(n).Error(), "envelope field")
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, merr.WrapErrFrameCorrupted(protowire.ParseError(n).Error(), "envelope bytes")
		}
		b = b[n:]
		switch num {
		case envelopeFieldHeader:
			h, err := parseHeader(v)
			if err != nil {
				return nil, err
			}
			env.Header = h
		case envelopeFieldPayload:
			env.Payload = append([]byte(nil), v...)
		}
	}
	if env.Header == nil {
		env.Header = &MessageHeader{}
	}
	if int(env.Header.Size) != len(env.Payload) {
		return nil, merr.WrapErrFrameCorrupted("payload size mismatch")
	}
	return env, nil
}
