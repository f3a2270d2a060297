// Package crypto 提供托管钱包的信封加密原语
//
// 加密: AES-256-GCM, 每次加密使用新的随机 IV, 认证标签单独存储。
// 密钥派生: PBKDF2-SHA256, 高迭代次数, 按 (userID, 身份属性, 盐) 确定性派生。
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

const (
	// KeySize AES-256 密钥长度
	KeySize = 32
	// IVSize GCM IV 长度
	IVSize = 16
	// TagSize GCM 认证标签长度
	TagSize = 16
	// SaltSize 派生盐长度
	SaltSize = 32
)

var (
	// ErrAuthenticationFailed 认证标签校验失败 (密文被篡改或密钥错误)
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInvalidKeySize 密钥长度错误
	ErrInvalidKeySize = errors.New("invalid key size")
	// ErrInvalidIVSize IV 长度错误
	ErrInvalidIVSize = errors.New("invalid iv size")
	// ErrInvalidTagSize 认证标签长度错误
	ErrInvalidTagSize = errors.New("invalid auth tag size")
)

// Encrypt 加密明文, 返回 (密文, IV, 认证标签)
// 每次调用从安全随机源生成新 IV, 同一密钥下 IV 不重用
func Encrypt(plaintext, key []byte) (ciphertext, iv, tag []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, err
	}

	// Seal 输出为 密文||标签, 拆开单独存储
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	n := len(sealed) - TagSize
	ciphertext = sealed[:n]
	tag = sealed[n:]

	return ciphertext, iv, tag, nil
}

// Decrypt 解密, 认证标签不匹配时返回 ErrAuthenticationFailed
// 绝不返回未通过认证的明文
func Decrypt(ciphertext, key, iv, tag []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(iv) != IVSize {
		return nil, ErrInvalidIVSize
	}
	if len(tag) != TagSize {
		return nil, ErrInvalidTagSize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// NewSalt 生成新的随机盐
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
