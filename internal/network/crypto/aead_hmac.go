package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

const (
	aes256KeySizeBytes = 32

	encKeyInfo = "xtensor-ros frame encryption"
	macKeyInfo = "xtensor-ros frame mac"
)

// AEADHMACCodec 使用 AES-256-GCM 加密帧负载，并对 nonce、密文和 aad 追加 HMAC-SHA256。
//
// 报文格式：nonce || ciphertext || mac
//   - nonce     ：随机数，长度等于 AEAD.NonceSize()
//   - ciphertext：AES-GCM 加密后的密文（包含 GCM tag）
//   - mac       ：HMAC-SHA256(nonce || ciphertext || aad)
//
// aad 为帧头中不加密但需要防篡改的字段。
type AEADHMACCodec struct {
	aead    cipher.AEAD
	hmacKey []byte
}

var _ Encryptor = (*AEADHMACCodec)(nil)

// NewAESGCMHMACCodec 使用 AES-256-GCM + HMAC-SHA256 创建编码器。
//
// encKey 长度必须为 32 字节（AES-256），macKey 为任意非空 HMAC 密钥。
func NewAESGCMHMACCodec(encKey, macKey []byte) (*AEADHMACCodec, error) {
	if len(encKey) != aes256KeySizeBytes {
		return nil, merr.WrapErrParameterInvalid(aes256KeySizeBytes, len(encKey), "encKey length")
	}
	if len(macKey) == 0 {
		return nil, merr.WrapErrParameterMissing("macKey")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEADHMACCodec{
		aead:    aead,
		hmacKey: append([]byte(nil), macKey...),
	}, nil
}

// NewFromSecret 通过 HKDF-SHA256 从共享口令派生加密与签名密钥。
// 发布端与订阅端使用相同口令即可互通。
func NewFromSecret(secret string) (*AEADHMACCodec, error) {
	if secret == "" {
		return nil, merr.WrapErrParameterMissing("encryption secret")
	}
	encKey, err := hkdf.Key(sha256.New, []byte(secret), nil, encKeyInfo, aes256KeySizeBytes)
	if err != nil {
		return nil, err
	}
	macKey, err := hkdf.Key(sha256.New, []byte(secret), nil, macKeyInfo, sha256.Size)
	if err != nil {
		return nil, err
	}
	return NewAESGCMHMACCodec(encKey, macKey)
}

func (c *AEADHMACCodec) sign(nonce, ciphertext, aad []byte) []byte {
	m := hmac.New(sha256.New, c.hmacKey)
	_, _ = m.Write(nonce)
	_, _ = m.Write(ciphertext)
	_, _ = m.Write(aad)
	return m.Sum(nil)
}

// Encrypt 加密明文并追加签名。
func (c *AEADHMACCodec) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	packet := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead()+sha256.Size)
	if _, err := io.ReadFull(rand.Reader, packet); err != nil {
		return nil, err
	}

	packet = c.aead.Seal(packet, packet[:nonceSize], plaintext, aad)
	mac := c.sign(packet[:nonceSize], packet[nonceSize:], aad)
	return append(packet, mac...), nil
}

// Decrypt 校验签名并解密报文，aad 必须与加密时一致。
func (c *AEADHMACCodec) Decrypt(packet, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(packet) < nonceSize+c.aead.Overhead()+sha256.Size {
		return nil, merr.WrapErrFrameCorrupted("encrypted packet too short")
	}

	nonce := packet[:nonceSize]
	macOffset := len(packet) - sha256.Size
	ciphertext := packet[nonceSize:macOffset]

	if !hmac.Equal(c.sign(nonce, ciphertext, aad), packet[macOffset:]) {
		return nil, merr.WrapErrFrameCorrupted("invalid mac")
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, merr.WrapErrFrameCorrupted(err.Error())
	}
	return plaintext, nil
}
