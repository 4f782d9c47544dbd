package store

import (
	"context"
	"fmt"
	"strings"
)

// securePrefix marks values written by the Secure wrapper, distinguishing
// them from plaintext entries written before encryption was enabled.
const securePrefix = "sec:"

// Cipher is the subset of the encryption helper the Secure wrapper needs.
// Defined here so the store package does not depend on the crypto package.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Secure wraps a Store, encrypting values before they are persisted and
// decrypting them on retrieval. Keys are stored as-is.
type Secure struct {
	wrapped Store
	cipher  Cipher
}

// NewSecure creates an encrypting wrapper around the given store.
func NewSecure(wrapped Store, cipher Cipher) *Secure {
	return &Secure{wrapped: wrapped, cipher: cipher}
}

func (s *Secure) Get(ctx context.Context, key string) (string, bool, error) {
	value, found, err := s.wrapped.Get(ctx, key)
	if err != nil || !found {
		return "", found, err
	}

	if !strings.HasPrefix(value, securePrefix) {
		return "", false, fmt.Errorf("stored value for %q is missing the %q prefix: written without encryption or corrupted", key, securePrefix)
	}

	plaintext, err := s.cipher.Decrypt(strings.TrimPrefix(value, securePrefix))
	if err != nil {
		return "", false, fmt.Errorf("decrypting stored value for %q: %w", key, err)
	}

	return plaintext, true, nil
}

func (s *Secure) Set(ctx context.Context, key string, value string) error {
	ciphertext, err := s.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypting value for %q: %w", key, err)
	}

	return s.wrapped.Set(ctx, key, securePrefix+ciphertext)
}

func (s *Secure) Remove(ctx context.Context, key string) error {
	return s.wrapped.Remove(ctx, key)
}

func (s *Secure) Clear(ctx context.Context) error {
	return s.wrapped.Clear(ctx)
}

func (s *Secure) Close() error {
	return s.wrapped.Close()
}
