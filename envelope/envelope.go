// Package envelope holds the client-side cryptography around the consent
// engine: record encryption under a DEK and sealing that DEK to a doctor's
// registered public key. The chaincode never sees plaintext or raw DEKs.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// DEKSize is the size of a data encryption key (AES-256)
const DEKSize = 32

// ErrOpenFailed is returned when a sealed DEK does not open with the given key
var ErrOpenFailed = errors.New("envelope: sealed key does not open with this private key")

// KeyPair is a principal's Curve25519 encryption key pair
type KeyPair struct {
	PublicKey  *[32]byte
	PrivateKey *[32]byte
}

// GenerateKeyPair creates a new encryption key pair
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %v", err)
	}
	return &KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// ParsePrivateKey rebuilds a key pair from an encoded private key
func ParsePrivateKey(encoded string) (*KeyPair, error) {
	priv, err := decodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %v", err)
	}
	pubBytes, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %v", err)
	}
	var pub [32]byte
	copy(pub[:], pubBytes)
	return &KeyPair{PublicKey: &pub, PrivateKey: priv}, nil
}

// EncodedPublicKey returns the form registered in the key registry
func (k *KeyPair) EncodedPublicKey() string {
	return base64.StdEncoding.EncodeToString(k.PublicKey[:])
}

// EncodedPrivateKey returns the private key for local storage
func (k *KeyPair) EncodedPrivateKey() string {
	return base64.StdEncoding.EncodeToString(k.PrivateKey[:])
}

// GenerateDEK generates a fresh data encryption key
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, DEKSize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %v", err)
	}
	return dek, nil
}

// SealDEK encrypts dek to the recipient's encoded public key. Only the
// holder of the matching private key can open the result.
func SealDEK(dek []byte, recipientPublicKey string) (string, error) {
	pub, err := decodeKey(recipientPublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to decode recipient key: %v", err)
	}
	sealed, err := box.SealAnonymous(nil, dek, pub, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to seal DEK: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenDEK decrypts a sealed DEK with the recipient's key pair
func OpenDEK(sealed string, kp *KeyPair) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed DEK: %v", err)
	}
	dek, ok := box.OpenAnonymous(nil, raw, kp.PublicKey, kp.PrivateKey)
	if !ok {
		return nil, ErrOpenFailed
	}
	return dek, nil
}

// EncryptRecord encrypts a record with AES-GCM. The nonce is prepended to
// the ciphertext.
func EncryptRecord(plaintext, dek []byte) ([]byte, error) {
	aesGCM, err := newGCM(dek)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to create nonce: %v", err)
	}
	return aesGCM.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptRecord reverses EncryptRecord
func DecryptRecord(ciphertext, dek []byte) ([]byte, error) {
	aesGCM, err := newGCM(dek)
	if err != nil {
		return nil, err
	}

	nonceSize := aesGCM.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %v", err)
	}
	return plaintext, nil
}

func newGCM(dek []byte) (cipher.AEAD, error) {
	if len(dek) != DEKSize {
		return nil, fmt.Errorf("DEK must be %d bytes, got %d", DEKSize, len(dek))
	}
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %v", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %v", err)
	}
	return aesGCM, nil
}

func decodeKey(encoded string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
