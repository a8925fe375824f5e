package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertext is returned when a stored message cannot be opened: it was
// tampered with, written under another key, or bound to another session.
var ErrCiphertext = errors.New("invalid ciphertext")

// EncryptionService seals chat message bodies at rest with AES-GCM. Each
// ciphertext is bound to associated data (the owning session id), so a row
// copied into another session fails to decrypt.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService accepts a raw 16, 24 or 32 byte key, or the same key
// hex-encoded.
func NewEncryptionService(key string) (*EncryptionService, error) {
	k := []byte(key)
	if len(k) == 64 {
		if dec, err := hex.DecodeString(key); err == nil {
			k = dec
		}
	}
	switch len(k) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", len(k))
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (e *EncryptionService) Encrypt(plaintext, boundTo string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(boundTo))
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (e *EncryptionService) Decrypt(b64, boundTo string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrCiphertext, err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns+e.gcm.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrCiphertext)
	}
	pt, err := e.gcm.Open(nil, data[:ns], data[ns:], []byte(boundTo))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(pt), nil
}
