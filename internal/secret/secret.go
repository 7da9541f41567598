// Package secret encrypts sensitive values, such as wallet addresses, before they are stored.
package secret

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

// ErrDecrypt is returned when a stored value cannot be decrypted with the configured keys.
var ErrDecrypt = errors.New("failed to decrypt value")

// Box encrypts and decrypts strings with fernet tokens.
// The first key encrypts; all keys are tried when decrypting, which allows rotation.
type Box struct {
	keys []*fernet.Key
}

// NewBox parses one or more base64 fernet keys.
func NewBox(encodedKeys ...string) (*Box, error) {
	if len(encodedKeys) == 0 {
		return nil, fmt.Errorf("at least one fernet key is required")
	}
	keys, err := fernet.DecodeKeys(encodedKeys...)
	if err != nil {
		return nil, fmt.Errorf("invalid fernet key: %w", err)
	}
	return &Box{keys: keys}, nil
}

// GenerateKey returns a new random base64 encoded key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}

// Encrypt returns the fernet token for plaintext. Empty input stays empty.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	token, err := fernet.EncryptAndSign([]byte(plaintext), b.keys[0])
	if err != nil {
		return "", fmt.Errorf("failed to encrypt value: %w", err)
	}
	return string(token), nil
}

// Decrypt reverses Encrypt. Tokens never expire.
func (b *Box) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), time.Duration(0), b.keys)
	if msg == nil {
		return "", ErrDecrypt
	}
	return string(msg), nil
}
