package codec

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/RoboStack/xtensor-ros/internal/network"
	"github.com/RoboStack/xtensor-ros/internal/network/compressor"
	"github.com/RoboStack/xtensor-ros/internal/network/crypto"
	"github.com/RoboStack/xtensor-ros/internal/network/framer"
	"github.com/RoboStack/xtensor-ros/internal/network/serializer"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

// Codec 抽象了“从业务对象到网络帧，以及从网络帧回到业务对象”的完整编解码流程。
//
// Pipeline（写出 Encode）：
//
//	msg --> serializer --> [compress?] --> [encrypt?] --> Envelope{Header+Payload} --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//
//	framer.ReadFrame --> Envelope{Header+Payload} --> [decrypt?] --> [decompress?] --> serializer --> msg
type Codec interface {
	// Encode 将业务对象编码并写入到底层流。
	Encode(w io.Writer, header *framer.MessageHeader, msg any) error

	// EncodeRaw 将已序列化的字节作为负载写出，跳过 serializer。
	EncodeRaw(w io.Writer, header *framer.MessageHeader, body []byte) error

	// Decode 从底层流中读取一帧报文，并解码到 msg 中。
	//
	//   - msg 为接收解码结果的目标对象（通常为指针）；若为 nil，则仅解析并返回 Header。
	Decode(r io.Reader, msg any) (*framer.MessageHeader, error)

	// DecodeRaw 从底层流中读取一帧报文，并返回消息头和已完成解密/解压的业务字节。
	DecodeRaw(r io.Reader) (*framer.MessageHeader, []byte, error)

	// Serializer 返回负载使用的序列化器。
	Serializer() serializer.Serializer
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer
	Serializer serializer.Serializer
	Compressor compressor.Compressor // 允许为 nil（内部会用 NopCompressor）
	Encryptor  crypto.Encryptor      // 允许为 nil（内部会用 NopEncryptor）
}

type codec struct {
	framer     framer.Framer
	serializer serializer.Serializer
	compressor compressor.Compressor
	encryptor  crypto.Encryptor
	encrypt    bool

	fallbackOnce sync.Once
	fallback     *compressor.ZstdCompressor
	fallbackErr  error
}

var _ Codec = (*codec)(nil)

const (
	FlagCompressed uint64 = 1 << 0
	FlagEncrypted  uint64 = 1 << 1
)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.Framer == nil {
		return nil, merr.WrapErrParameterMissing("framer")
	}
	if opts.Serializer == nil {
		return nil, merr.WrapErrParameterMissing("serializer")
	}

	c := &codec{
		framer:     opts.Framer,
		serializer: opts.Serializer,
		compressor: compressor.NopCompressor{},
		encryptor:  crypto.NopEncryptor{},
	}
	if opts.Compressor != nil {
		c.compressor = opts.Compressor
	}
	if opts.Encryptor != nil {
		c.encryptor = opts.Encryptor
		_, nop := opts.Encryptor.(crypto.NopEncryptor)
		c.encrypt = !nop
	}
	return c, nil
}

func (c *codec) Serializer() serializer.Serializer {
	return c.serializer
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, header *framer.MessageHeader, msg any) error {
	if msg == nil {
		return merr.WrapErrParameterMissing("msg")
	}
	body, err := c.serializer.Marshal(msg)
	if err != nil {
		return merr.WrapErrCodec(string(network.StageEncode), err)
	}
	return c.EncodeRaw(w, header, body)
}

// EncodeRaw 实现 Codec.EncodeRaw。
func (c *codec) EncodeRaw(w io.Writer, header *framer.MessageHeader, body []byte) error {
	if w == nil {
		return merr.WrapErrParameterMissing("writer")
	}
	if header == nil {
		return merr.WrapErrParameterMissing("header")
	}

	// 清理压缩/加密相关位，避免复用 header 时遗留旧状态。
	header.Flags &^= (FlagCompressed | FlagEncrypted)

	if c.compressor.ShouldCompress(len(body)) {
		compressed, err := c.compressor.Compress(nil, body)
		if err != nil {
			return merr.WrapErrCodec("compress", err)
		}
		body = compressed
		header.Flags |= FlagCompressed
	}

	if c.encrypt && len(body) > 0 {
		packet, err := c.encryptor.Encrypt(body, buildAAD(header))
		if err != nil {
			return merr.WrapErrCodec("encrypt", err)
		}
		body = packet
		header.Flags |= FlagEncrypted
	}

	env := &framer.Envelope{
		Header:  header,
		Payload: body,
	}
	return c.framer.WriteFrame(w, env)
}

// DecodeRaw 实现 Codec.DecodeRaw。
//
//	framer.ReadFrame --> Envelope{Header+Payload} --> [decrypt?] --> [decompress?]
func (c *codec) DecodeRaw(r io.Reader) (*framer.MessageHeader, []byte, error) {
	if r == nil {
		return nil, nil, merr.WrapErrParameterMissing("reader")
	}

	env, err := c.framer.ReadFrame(r)
	if err != nil {
		// 读帧错误原样返回，便于上层区分 io.EOF 与帧损坏。
		return nil, nil, err
	}

	header := env.Header
	data := env.Payload

	if header.Flags&FlagEncrypted != 0 {
		if !c.encrypt {
			return nil, nil, merr.WrapErrCodec("decrypt", merr.WrapErrFrameCorrupted("encrypted payload but encryption disabled"))
		}
		plain, err := c.encryptor.Decrypt(data, buildAAD(header))
		if err != nil {
			return nil, nil, merr.WrapErrCodec("decrypt", err)
		}
		data = plain
	}

	if header.Flags&FlagCompressed != 0 {
		plain, err := c.decompress(data)
		if err != nil {
			return nil, nil, merr.WrapErrCodec("decompress", err)
		}
		data = plain
	}

	return header, data, nil
}

// decompress 优先使用配置的压缩器；未开启压缩的一端也能解开对端压缩过的帧。
func (c *codec) decompress(data []byte) ([]byte, error) {
	if _, nop := c.compressor.(compressor.NopCompressor); !nop {
		return c.compressor.Decompress(nil, data)
	}
	c.fallbackOnce.Do(func() {
		c.fallback, c.fallbackErr = compressor.NewZstdCompressorWithConcurrency(1)
	})
	if c.fallbackErr != nil {
		return nil, c.fallbackErr
	}
	return c.fallback.Decompress(nil, data)
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(r io.Reader, msg any) (*framer.MessageHeader, error) {
	header, data, err := c.DecodeRaw(r)
	if err != nil {
		return nil, err
	}
	if msg != nil {
		if err := c.serializer.Unmarshal(data, msg); err != nil {
			return header, merr.WrapErrCodec(string(network.StageDecode), err)
		}
	}
	return header, nil
}

// buildAAD 将 MessageHeader 中与完整性相关的字段编码为 AAD。
//
// 约定：AAD 字段顺序为：
//
//	op(uint32) | seq(uint64) | flags(uint64) | timestamp(int64)
//
// flags 不含 FlagEncrypted，加密前后计算结果一致；size 不参与计算。
func buildAAD(h *framer.MessageHeader) []byte {
	var buf [28]byte

	binary.BigEndian.PutUint32(buf[0:4], h.Op)
	binary.BigEndian.PutUint64(buf[4:12], h.Seq)
	binary.BigEndian.PutUint64(buf[12:20], h.Flags&^FlagEncrypted)
	binary.BigEndian.PutUint64(buf[20:28], uint64(h.Timestamp))

	return buf[:]
}
