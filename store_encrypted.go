package pathsync

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// encryptionNonceSize is the nonce size for AES-GCM.
	encryptionNonceSize = 12
	// encryptionSaltSize is the salt size for key derivation.
	encryptionSaltSize = 32
	// encryptionKeySize is the AES-256 key size.
	encryptionKeySize = 32
	// pbkdf2Iterations is the number of iterations for key derivation.
	pbkdf2Iterations = 100000

	// encryptedSaltKey is where the store keeps the key-derivation salt.
	encryptedSaltKey = "pathsync:crypto:salt"
)

// EncryptedStore wraps another LocalStore and encrypts every value at rest
// with AES-256-GCM. The key is derived from a password via PBKDF2; the salt
// is persisted in the wrapped store so the same password reopens the data.
type EncryptedStore struct {
	inner LocalStore
	gcm   cipher.AEAD
}

// NewEncryptedStore wraps inner with password-derived encryption. On first
// use a random salt is generated and persisted; later opens reuse it.
func NewEncryptedStore(ctx context.Context, inner LocalStore, password string) (*EncryptedStore, error) {
	if password == "" {
		return nil, errors.New("encrypted store: password is required")
	}

	var salt []byte
	stored, err := inner.Get(ctx, encryptedSaltKey)
	switch {
	case err == nil:
		salt, err = base64.StdEncoding.DecodeString(stored)
		if err != nil || len(salt) != encryptionSaltSize {
			return nil, errors.New("encrypted store: stored salt is corrupt")
		}
	case errors.Is(err, ErrKeyNotFound):
		salt = make([]byte, encryptionSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("encrypted store: generate salt: %w", err)
		}
		if err := inner.Set(ctx, encryptedSaltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
			return nil, fmt.Errorf("encrypted store: persist salt: %w", err)
		}
	default:
		return nil, fmt.Errorf("encrypted store: read salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, encryptionKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &EncryptedStore{inner: inner, gcm: gcm}, nil
}

func (e *EncryptedStore) Get(ctx context.Context, key string) (string, error) {
	stored, err := e.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("encrypted store: decode %q: %w", key, err)
	}
	if len(ciphertext) < encryptionNonceSize {
		return "", errors.New("encrypted store: ciphertext too short")
	}

	nonce := ciphertext[:encryptionNonceSize]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext[encryptionNonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("encrypted store: decrypt %q: %w", key, err)
	}
	return string(plaintext), nil
}

func (e *EncryptedStore) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, encryptionNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("encrypted store: generate nonce: %w", err)
	}

	// Nonce is prepended to the ciphertext.
	ciphertext := e.gcm.Seal(nonce, nonce, []byte(value), nil)
	return e.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(ciphertext))
}

func (e *EncryptedStore) Remove(ctx context.Context, key string) error {
	return e.inner.Remove(ctx, key)
}

func (e *EncryptedStore) Close() error {
	return e.inner.Close()
}
