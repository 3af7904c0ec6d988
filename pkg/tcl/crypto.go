package tcl

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// AesSymmetricType helps identity which encryption/decryption to use.
	AesSymmetricType = "aes"

	defaultNonceSize = 12
	aesKeyLength     = 32
)

// GetHashWithArgon uses Argon2id to derive a key from a passphrase and salt.
func GetHashWithArgon(passphrase, salt string, timeConsideration uint32, multiplier uint32, threads uint8, hashLength uint32) []byte {

	if passphrase == "" || salt == "" {
		return nil
	}

	if timeConsideration == 0 {
		timeConsideration = 1
	}

	if multiplier == 0 {
		multiplier = 64
	}

	if threads == 0 {
		threads = 1
	}

	return argon2.IDKey([]byte(passphrase), []byte(salt), timeConsideration, multiplier*1024, threads, hashLength)
}

// EnsureHashkey derives the AES key of an enabled EncryptionConfig from its passphrase and salt.
func (ec *EncryptionConfig) EnsureHashkey() error {

	if ec == nil || !ec.Enabled || len(ec.Hashkey) > 0 {
		return nil
	}

	ec.Hashkey = GetHashWithArgon(ec.Passphrase, ec.Salt, ec.TimeConsideration, ec.MemoryMultiplier, ec.Threads, aesKeyLength)
	if ec.Hashkey == nil {
		return errors.New("encryption enabled without passphrase and salt")
	}

	return nil
}

// EncryptWithAes encrypts bytes based on an AES-256 compatible hashed key.
// The nonce is prepended to the cipher data.
func EncryptWithAes(data, hashedKey []byte, nonceSize int) ([]byte, error) {

	if len(data) == 0 || len(hashedKey) == 0 {
		return nil, errors.New("data or hash can't be zero length")
	}

	if nonceSize < 12 || nonceSize > 32 {
		nonceSize = defaultNonceSize
	}

	block, err := aes.NewCipher(hashedKey)
	if err != nil {
		return nil, err
	}

	aesGcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return aesGcm.Seal(nonce, nonce, data, nil), nil
}

// DecryptWithAes decrypts bytes based on an Aes compatible hashed key.
func DecryptWithAes(cipherDataWithNonce, hashedKey []byte, nonceSize int) ([]byte, error) {

	if nonceSize < 12 || nonceSize > 32 {
		nonceSize = defaultNonceSize
	}

	if len(cipherDataWithNonce) <= nonceSize || len(hashedKey) == 0 {
		return nil, errors.New("cipher data must be longer than its nonce and hash can't be zero length")
	}

	block, err := aes.NewCipher(hashedKey)
	if err != nil {
		return nil, err
	}

	aesGcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}

	return aesGcm.Open(nil, cipherDataWithNonce[:nonceSize], cipherDataWithNonce[nonceSize:], nil)
}

func handleEncryption(encryption *EncryptionConfig, data []byte, buffer *bytes.Buffer) error {

	switch encryption.Type {
	case AesSymmetricType:
		fallthrough
	default:
		data, err := EncryptWithAes(data, encryption.Hashkey, defaultNonceSize)
		if err != nil {
			return err
		}

		*buffer = *bytes.NewBuffer(data)

		return nil
	}
}

func handleDecryption(encryption *EncryptionConfig, buffer *bytes.Buffer) error {

	switch encryption.Type {
	case AesSymmetricType:
		fallthrough
	default:
		data, err := DecryptWithAes(buffer.Bytes(), encryption.Hashkey, defaultNonceSize)
		if err != nil {
			return err
		}

		*buffer = *bytes.NewBuffer(data)

		return nil
	}
}
