// Package crypto protects venue credentials at rest. Ciphertexts are
// AES-256-GCM with a version prefix (ENC[vN]:base64) so keys can rotate
// without re-encrypting every profile at once.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard nonce
)

var (
	ErrInvalidKey        = errors.New("encryption key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Vault holds one or more key versions. Encrypt always uses the newest
// version; Decrypt picks the version named in the ciphertext prefix.
type Vault struct {
	mu      sync.RWMutex
	keys    map[int]cipher.AEAD
	current int
}

// NewVault creates a vault from a base64-encoded 32-byte primary key.
func NewVault(primaryKeyBase64 string) (*Vault, error) {
	v := &Vault{keys: make(map[int]cipher.AEAD)}
	if err := v.AddKey(1, primaryKeyBase64); err != nil {
		return nil, err
	}
	return v, nil
}

// AddKey registers a key version. The highest version becomes the one used
// for new encryptions.
func (v *Vault) AddKey(version int, keyBase64 string) error {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return fmt.Errorf("decode key v%d: %w", version, err)
	}
	if len(key) != KeySize {
		return ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[version] = aead
	if version > v.current {
		v.current = version
	}
	return nil
}

// Encrypt seals plaintext under the newest key version.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	v.mu.RLock()
	aead := v.keys[v.current]
	version := v.current
	v.mu.RUnlock()

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return fmt.Sprintf("ENC[v%d]:%s", version, base64.StdEncoding.EncodeToString(sealed)), nil
}

// Decrypt opens a ciphertext produced by Encrypt, whatever key version
// sealed it, as long as that version is registered.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	version, encoded, err := splitCiphertext(ciphertext)
	if err != nil {
		return "", err
	}

	v.mu.RLock()
	aead, ok := v.keys[version]
	v.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("key version %d not available", version)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	if len(data) <= NonceSize {
		return "", ErrInvalidCiphertext
	}
	plaintext, err := aead.Open(nil, data[:NonceSize], data[NonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// Rotate re-encrypts a ciphertext under the newest key version.
func (v *Vault) Rotate(ciphertext string) (string, error) {
	plaintext, err := v.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypt for rotation: %w", err)
	}
	return v.Encrypt(plaintext)
}

// CurrentVersion returns the version new encryptions use.
func (v *Vault) CurrentVersion() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// IsEncrypted reports whether s carries the vault ciphertext prefix.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, "ENC[v")
}

// GenerateKey returns a fresh random key, base64-encoded for storage.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func splitCiphertext(ciphertext string) (int, string, error) {
	if !IsEncrypted(ciphertext) {
		return 0, "", ErrInvalidCiphertext
	}
	idx := strings.Index(ciphertext, "]:")
	if idx == -1 {
		return 0, "", ErrInvalidCiphertext
	}
	var version int
	if _, err := fmt.Sscanf(ciphertext[:idx+2], "ENC[v%d]:", &version); err != nil || version <= 0 {
		return 0, "", ErrInvalidCiphertext
	}
	return version, ciphertext[idx+2:], nil
}
