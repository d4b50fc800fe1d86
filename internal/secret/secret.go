// Package secret obfuscates provider API keys at rest.
//
// The scheme is a repeating-key XOR encoded as base64. It keeps keys out of
// plain sight in the database file and nothing more; it is not a substitute
// for a secrets manager.
package secret

import (
	"encoding/base64"
	"fmt"
	"os"
)

// KeyProvider supplies the obfuscation key.
type KeyProvider interface {
	Key() []byte
}

// StaticKey is a fixed key, mostly useful in tests.
type StaticKey string

// Key implements KeyProvider.
func (k StaticKey) Key() []byte { return []byte(k) }

// EnvKey reads the key from an environment variable on every call, falling
// back to Default when the variable is unset or empty.
type EnvKey struct {
	Var     string
	Default string
}

// DefaultKey is used when no key is configured.
const DefaultKey = "default-encryption-key"

// Key implements KeyProvider.
func (k EnvKey) Key() []byte {
	if v := os.Getenv(k.Var); v != "" {
		return []byte(v)
	}
	if k.Default != "" {
		return []byte(k.Default)
	}
	return []byte(DefaultKey)
}

// Cipher encrypts and decrypts API keys with the key from Keys.
type Cipher struct {
	Keys KeyProvider
}

// NewCipher creates a Cipher.
func NewCipher(keys KeyProvider) *Cipher {
	return &Cipher{Keys: keys}
}

// Encrypt obfuscates plaintext.
func (c *Cipher) Encrypt(plaintext string) string {
	return base64.StdEncoding.EncodeToString(xor([]byte(plaintext), c.key()))
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decoding encrypted key: %w", err)
	}
	return string(xor(data, c.key())), nil
}

func (c *Cipher) key() []byte {
	k := c.Keys.Key()
	if len(k) == 0 {
		return []byte(DefaultKey)
	}
	return k
}

func xor(in, key []byte) []byte {
	out := make([]byte, len(in))
	for i := range in {
		out[i] = in[i] ^ key[i%len(key)]
	}
	return out
}
