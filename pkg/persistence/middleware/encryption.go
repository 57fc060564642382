package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/ports"
)

// envelopePrefix marks content that holds an encrypted payload.
const envelopePrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.MemoryStore
	config EncryptionConfig
}

type payload struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// NewEncryptionMiddleware creates a middleware that encrypts memory content and tags
// using AES-GCM. Ids, owners and timestamps stay in the clear so the backend can still
// order and delete entries.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.MemoryStore) ports.MemoryStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, mem domain.Memory) error {
	plainText, err := json.Marshal(payload{Content: mem.Content, Tags: mem.Tags})
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt memory: %w", err)
	}

	envelope := mem
	envelope.Content = envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext)
	envelope.Tags = nil
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) List(ctx context.Context, userID string) ([]domain.Memory, error) {
	envelopes, err := m.next.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Memory, 0, len(envelopes))
	for _, env := range envelopes {
		mem, err := m.open(env)
		if err != nil {
			return nil, fmt.Errorf("memory %s: %w", env.ID, err)
		}
		out = append(out, mem)
	}
	return out, nil
}

func (m *encryptionMiddleware) open(env domain.Memory) (domain.Memory, error) {
	encoded, ok := strings.CutPrefix(env.Content, envelopePrefix)
	if !ok {
		// Plain entries written before encryption was enabled are refused.
		return domain.Memory{}, errors.New("memory is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.Memory{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Memory{}, fmt.Errorf("failed to decrypt memory: %w", err)
	}

	var p payload
	if err := json.Unmarshal(plainText, &p); err != nil {
		return domain.Memory{}, fmt.Errorf("failed to unmarshal decrypted memory: %w", err)
	}
	env.Content = p.Content
	env.Tags = p.Tags
	return env, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, userID, id string) error {
	return m.next.Delete(ctx, userID, id)
}

// ParseKey decodes a 32-byte key given as base64 or hex.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, decode := range []func(string) ([]byte, error){
		base64.StdEncoding.DecodeString,
		base64.RawURLEncoding.DecodeString,
		hex.DecodeString,
	} {
		if key, err := decode(s); err == nil && len(key) == 32 {
			return key, nil
		}
	}
	return nil, errors.New("encryption key must be 32 bytes, base64 or hex encoded")
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
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
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
