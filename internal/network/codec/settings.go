package codec

import (
	"strings"

	"github.com/RoboStack/xtensor-ros/internal/network/compressor"
	"github.com/RoboStack/xtensor-ros/internal/network/crypto"
	"github.com/RoboStack/xtensor-ros/internal/network/framer"
	"github.com/RoboStack/xtensor-ros/internal/network/serializer"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Settings 对应配置文件中的 codec 段。
type Settings struct {
	// Compression 为 none 或 zstd。
	Compression     string `mapstructure:"compression"`
	MinCompressSize int    `mapstructure:"min_compress_size"`
	// EncryptionKey 非空时开启帧加密，两端必须一致。
	EncryptionKey string `mapstructure:"encryption_key"`
	MaxFrameSize  int    `mapstructure:"max_frame_size"`
}

// Build 按 Settings 组装 Codec，返回的 release 用于释放压缩器资源。
func Build(s Settings, ser serializer.Serializer) (Codec, func(), error) {
	if s.MaxFrameSize < 0 {
		return nil, nil, merr.WrapErrParameterInvalidRange(0, int(framer.DefaultMaxFrameSize), s.MaxFrameSize, "max_frame_size")
	}
	opts := Options{
		Framer:     framer.NewLengthPrefixedFramer(uint32(s.MaxFrameSize)),
		Serializer: ser,
	}
	release := func() {}

	switch strings.ToLower(s.Compression) {
	case "", CompressionNone:
	case CompressionZstd:
		z, err := compressor.NewZstdCompressor()
		if err != nil {
			return nil, nil, err
		}
		z.SetMinCompressSize(s.MinCompressSize)
		opts.Compressor = z
		release = z.Close
	default:
		return nil, nil, merr.WrapErrParameterInvalidMsg("unknown compression %q", s.Compression)
	}

	if s.EncryptionKey != "" {
		enc, err := crypto.NewFromSecret(s.EncryptionKey)
		if err != nil {
			release()
			return nil, nil, err
		}
		opts.Encryptor = enc
	}

	c, err := New(opts)
	if err != nil {
		release()
		return nil, nil, err
	}
	return c, release, nil
}
