package crypto

// Encryptor 抽象了帧负载的加密方案。
//
// aad 为关联数据，不加密但需要完整性保护，codec 传入帧头中的 op、seq、timestamp。
type Encryptor interface {
	Encrypt(plaintext, aad []byte) (packet []byte, err error)
	Decrypt(packet, aad []byte) (plaintext []byte, err error)
}

// NopEncryptor 直接透传数据，codec.encryption_key 为空时使用。
type NopEncryptor struct{}

func (NopEncryptor) Encrypt(plaintext, _ []byte) ([]byte, error) {
	return plaintext, nil
}

func (NopEncryptor) Decrypt(packet, _ []byte) ([]byte, error) {
	return packet, nil
}

// 编译期断言：确保 NopEncryptor 实现了 Encryptor 接口。
var _ Encryptor = NopEncryptor{}
