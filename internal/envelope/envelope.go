// Package envelope seals small JSON documents with the pre-shared provider key.
//
// The wire form is hex(nonce) ":" hex(tag) ":" hex(ciphertext) using AES-256-GCM
// with a 96-bit random nonce and a 128-bit tag.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrDecrypt covers every way an envelope can fail to open.
	ErrDecrypt = errors.New("envelope: decryption failed")
	// ErrInvalidKeyLength is returned for keys that are not 32 bytes.
	ErrInvalidKeyLength = errors.New("envelope: key must be 32 bytes")
)

// Cipher seals and opens envelopes with a single symmetric key.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a hex encoded 256-bit key.
func New(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("envelope: decode key: %w", err)
	}
	return NewFromBytes(key)
}

// NewFromBytes builds a Cipher from a raw key.
func NewFromBytes(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal JSON-encodes v and encrypts it under a fresh nonce.
func (c *Cipher) Seal(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("envelope: encode: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("envelope: nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	body, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(body), nil
}

// Open decrypts env into v. Malformed input and tag mismatches are both
// reported as ErrDecrypt so callers can treat them as a validation failure.
func (c *Cipher) Open(env string, v any) error {
	plaintext, err := c.OpenRaw(env)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrDecrypt, err)
	}
	return nil
}

// OpenRaw returns the decrypted bytes without decoding them. Changing any
// byte of the nonce, tag or ciphertext yields ErrDecrypt. An optional fourth
// hex segment is accepted as a provider salt; it is not authenticated, and
// anything else in that position is rejected.
func (c *Cipher) OpenRaw(env string) ([]byte, error) {
	parts := strings.Split(strings.TrimSpace(env), ":")
	if len(parts) != 3 && len(parts) != 4 {
		return nil, fmt.Errorf("%w: want 3 segments, got %d", ErrDecrypt, len(parts))
	}
	if len(parts) == 4 {
		if _, err := hex.DecodeString(parts[3]); err != nil || parts[3] == "" {
			return nil, fmt.Errorf("%w: salt is not hex", ErrDecrypt)
		}
	}
	nonce, err1 := hex.DecodeString(parts[0])
	tag, err2 := hex.DecodeString(parts[1])
	body, err3 := hex.DecodeString(parts[2])
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(nonce) != nonceSize || len(tag) != tagSize {
		return nil, fmt.Errorf("%w: bad nonce or tag length", ErrDecrypt)
	}
	plaintext, err := c.aead.Open(nil, nonce, append(body, tag...), nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// GenerateKey returns a fresh random key in hex.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
