// Package crypto seals free-text booking fields at rest with AES-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const nonceSize = 12

var ErrMalformed = errors.New("malformed ciphertext")

// Cipher encrypts strings as base64url(nonce || ciphertext). A nil *Cipher
// passes values through unchanged.
type Cipher struct {
	aead cipher.AEAD
}

func New(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return nil, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create aes cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Enabled() bool { return c != nil }

func (c *Cipher) Encrypt(plain string) (string, error) {
	if c == nil || plain == "" {
		return plain, nil
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(encoded string) (string, error) {
	if c == nil || encoded == "" {
		return encoded, nil
	}
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", ErrMalformed
	}
	plain, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}

// EncryptList stores a list as an encrypted JSON array.
func (c *Cipher) EncryptList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return c.Encrypt(string(raw))
}

func (c *Cipher) DecryptList(encoded string) ([]string, error) {
	if encoded == "" {
		return []string{}, nil
	}
	raw, err := c.Decrypt(encoded)
	if err != nil {
		return nil, err
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}
