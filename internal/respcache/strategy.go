package respcache

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tink-crypto/tink-go/v2/tink"
)

// obfuscatedPrefix marks base64-obfuscated payloads. This is reversible
// encoding, not compression: it hides payloads from casual inspection of
// the backing store and nothing more.
const obfuscatedPrefix = "lg64:"

// encryptedPrefix marks AEAD-encrypted payloads, distinguishing them from
// obfuscated or plaintext entries during rollout.
const encryptedPrefix = "lgenc:"

// PayloadStrategy defines how response payloads are encoded before storage
// and decoded on read. The cache key parameter lets implementations bind a
// stored value to its entry.
type PayloadStrategy interface {
	// Encode prepares a payload for storage.
	Encode(payload []byte, key string) (string, error)

	// Decode recovers a payload from its stored form. The key parameter
	// must match the key used during encoding.
	Decode(value string, key string) ([]byte, error)

	// Close releases resources held by the strategy.
	Close() error
}

// PlainStrategy stores payloads as-is.
type PlainStrategy struct{}

func (s *PlainStrategy) Encode(payload []byte, _ string) (string, error) {
	return string(payload), nil
}

func (s *PlainStrategy) Decode(value string, _ string) ([]byte, error) {
	return []byte(value), nil
}

func (s *PlainStrategy) Close() error {
	return nil
}

// ObfuscatingStrategy base64-encodes payloads with an identifying prefix.
type ObfuscatingStrategy struct{}

func (s *ObfuscatingStrategy) Encode(payload []byte, _ string) (string, error) {
	return obfuscatedPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

func (s *ObfuscatingStrategy) Decode(value string, _ string) ([]byte, error) {
	if !strings.HasPrefix(value, obfuscatedPrefix) {
		return nil, fmt.Errorf("missing %q prefix: value may be foreign or corrupted", obfuscatedPrefix)
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, obfuscatedPrefix))
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}

	return payload, nil
}

func (s *ObfuscatingStrategy) Close() error {
	return nil
}

// AEADStrategy encrypts payloads with a Tink AEAD primitive. Payloads are
// encrypted with the cache key as associated data to prevent ciphertext
// swapping between entries, then base64-encoded and prefixed for
// identification.
type AEADStrategy struct {
	aead tink.AEAD
}

// NewAEADStrategy creates an encrypting strategy backed by a Tink AEAD.
func NewAEADStrategy(aead tink.AEAD) *AEADStrategy {
	return &AEADStrategy{aead: aead}
}

func (s *AEADStrategy) Encode(payload []byte, key string) (string, error) {
	ciphertext, err := s.aead.Encrypt(payload, []byte(key))
	if err != nil {
		return "", fmt.Errorf("encrypting payload: %w", err)
	}
	return encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *AEADStrategy) Decode(value string, key string) ([]byte, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return nil, fmt.Errorf("missing %q prefix: value may be unencrypted or corrupted", encryptedPrefix)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}

	payload, err := s.aead.Decrypt(decoded, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return payload, nil
}

func (s *AEADStrategy) Close() error {
	if closer, ok := s.aead.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
