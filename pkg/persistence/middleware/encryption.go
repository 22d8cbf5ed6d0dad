package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// sealedPrefix marks a value written by this middleware.
const sealedPrefix = "enc:v1:"

// KeySize is the key length for AES-256.
const KeySize = 32

// ErrPlaintext is returned when a value that should be sealed was stored in the clear.
var ErrPlaintext = errors.New("stored value is not encrypted")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data. Must be KeySize bytes.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte

	// AllowPlaintext returns values written before encryption was enabled as they are,
	// instead of failing with ErrPlaintext.
	AllowPlaintext bool
}

// NewEncryptionMiddleware creates a middleware that seals learner answers and variables with
// AES-GCM. Variable values and log entry contents are encrypted; ids, statuses and ordering
// stay readable so the store can still index them.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != KeySize {
		return nil, fmt.Errorf("active key must be %d bytes, got %d", KeySize, len(config.ActiveKey))
	}
	for i, k := range config.FallbackKeys {
		if len(k) != KeySize {
			return nil, fmt.Errorf("fallback key %d must be %d bytes, got %d", i, KeySize, len(k))
		}
	}
	return func(next ports.Store) ports.Store {
		return &encryptedStore{next: next, config: config}
	}, nil
}

type encryptedStore struct {
	next   ports.Store
	config EncryptionConfig
}

func (s *encryptedStore) Begin(ctx context.Context) (ports.Tx, error) {
	tx, err := s.next.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &encryptedTx{Tx: tx, config: s.config}, nil
}

// encryptedTx passes progress and branch calls through untouched.
type encryptedTx struct {
	ports.Tx
	config EncryptionConfig
}

func (t *encryptedTx) Variables(ctx context.Context, userID string) (map[string]string, error) {
	vars, err := t.Tx.Variables(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		plain, err := t.open(v)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", k, err)
		}
		out[k] = plain
	}
	return out, nil
}

func (t *encryptedTx) SetVariable(ctx context.Context, userID, key, value string) error {
	sealed, err := seal(value, t.config.ActiveKey)
	if err != nil {
		return err
	}
	return t.Tx.SetVariable(ctx, userID, key, sealed)
}

func (t *encryptedTx) AppendLog(ctx context.Context, e *domain.LogEntry) error {
	sealed, err := seal(e.Content, t.config.ActiveKey)
	if err != nil {
		return err
	}
	stored := *e
	stored.Content = sealed
	if err := t.Tx.AppendLog(ctx, &stored); err != nil {
		return err
	}
	e.ID, e.Order, e.CreatedAt = stored.ID, stored.Order, stored.CreatedAt
	return nil
}

func (t *encryptedTx) ListLog(ctx context.Context, progressID string) ([]domain.LogEntry, error) {
	entries, err := t.Tx.ListLog(ctx, progressID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Content, err = t.open(entries[i].Content); err != nil {
			return nil, fmt.Errorf("log entry %s: %w", entries[i].ID, err)
		}
	}
	return entries, nil
}

func (t *encryptedTx) FindLogByKey(ctx context.Context, key string) (*domain.LogEntry, error) {
	e, err := t.Tx.FindLogByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if e.Content, err = t.open(e.Content); err != nil {
		return nil, fmt.Errorf("log entry %s: %w", e.ID, err)
	}
	return e, nil
}

func (t *encryptedTx) open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		if t.config.AllowPlaintext {
			return value, nil
		}
		return "", ErrPlaintext
	}
	ciphertext, err := base64.StdEncoding.DecodeString(value[len(sealedPrefix):])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	plain, err := decryptWithRotation(ciphertext, t.config.ActiveKey, t.config.FallbackKeys)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Helpers

func seal(value string, key []byte) (string, error) {
	ciphertext, err := encrypt([]byte(value), key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
