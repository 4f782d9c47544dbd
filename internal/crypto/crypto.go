// Package crypto implements the symmetric encryption helper protecting
// sensitive fields before they are persisted or transmitted.
//
// Ciphertext layout is hex(IV) || hex(ciphertext) with AES-256-CBC and
// PKCS#7 padding. The IV is generated fresh for every call, so encrypting
// the same plaintext twice under the same key yields different blobs, and
// every blob is self-contained for decryption.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/lumahq/luma-guard/internal/config"
	"github.com/lumahq/luma-guard/internal/store"
	"github.com/rs/zerolog/log"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// ivHexLen is the length of the hex-encoded IV prefix of a ciphertext blob.
const ivHexLen = 2 * aes.BlockSize

var (
	// ErrMalformedCiphertext indicates a blob that is not hex, is truncated,
	// or is not a whole number of cipher blocks. The blob cannot have been
	// produced by Encrypt.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrDecryptFailed indicates structurally valid ciphertext that does not
	// decrypt under the supplied key: either the key is wrong or the data
	// was tampered with.
	ErrDecryptFailed = errors.New("decryption failed")
)

// Service performs symmetric encryption, hashing and password digests using
// a process-wide master key. Callers may override the key per call without
// mutating the master key.
type Service struct {
	masterKey []byte
}

// NewService creates the encryption helper. The master key comes from the
// configuration when supplied (hex), otherwise it is loaded from the durable
// store, generated and persisted on first use if absent.
func NewService(ctx context.Context, st store.Store, cfg config.CryptoConfig) (*Service, error) {
	var key []byte
	var err error

	if cfg.MasterKey != "" {
		key, err = hex.DecodeString(cfg.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("decoding configured master key: %w", err)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("configured master key must be %d bytes, got %d", KeySize, len(key))
		}
	} else {
		key, err = loadOrCreateMasterKey(ctx, st, cfg.MasterKeyStoreKey)
		if err != nil {
			return nil, err
		}
	}

	return &Service{masterKey: key}, nil
}

// Validate performs a test encryption/decryption cycle. Call this at startup
// to fail fast if key material is unusable.
func (s *Service) Validate() error {
	const testPlaintext = "luma-guard-encryption-test"

	blob, err := s.Encrypt(testPlaintext)
	if err != nil {
		return fmt.Errorf("validation encrypt failed: %w", err)
	}

	decrypted, err := s.Decrypt(blob)
	if err != nil {
		return fmt.Errorf("validation decrypt failed: %w", err)
	}

	if decrypted != testPlaintext {
		return fmt.Errorf("validation round-trip failed: plaintext mismatch")
	}

	return nil
}

// Encrypt encrypts plaintext under the master key.
func (s *Service) Encrypt(plaintext string) (string, error) {
	return EncryptWithKey(plaintext, s.masterKey)
}

// Decrypt decrypts a blob produced by Encrypt under the master key.
func (s *Service) Decrypt(blob string) (string, error) {
	return DecryptWithKey(blob, s.masterKey)
}

// EncryptWithKey encrypts plaintext under the supplied 32-byte key.
func EncryptWithKey(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("initializing cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}

	padded := pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + hex.EncodeToString(ciphertext), nil
}

// DecryptWithKey decrypts a blob produced by EncryptWithKey under the
// supplied key. Returns ErrMalformedCiphertext for blobs that cannot have
// been produced by Encrypt, and ErrDecryptFailed when the key is wrong or
// the data was altered.
func DecryptWithKey(blob string, key []byte) (string, error) {
	if len(blob) < ivHexLen {
		return "", fmt.Errorf("%w: blob shorter than IV prefix", ErrMalformedCiphertext)
	}

	iv, err := hex.DecodeString(blob[:ivHexLen])
	if err != nil {
		return "", fmt.Errorf("%w: invalid IV encoding", ErrMalformedCiphertext)
	}

	ciphertext, err := hex.DecodeString(blob[ivHexLen:])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding", ErrMalformedCiphertext)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrMalformedCiphertext)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("initializing cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := unpad(padded)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// EncryptObject serializes a structured value as JSON and encrypts it under
// the master key.
func (s *Service) EncryptObject(v any) (string, error) {
	return EncryptObjectWithKey(v, s.masterKey)
}

// DecryptObject decrypts a blob produced by EncryptObject and deserializes
// it into out.
func (s *Service) DecryptObject(blob string, out any) error {
	return DecryptObjectWithKey(blob, s.masterKey, out)
}

// EncryptObjectWithKey is EncryptObject with a per-call key override.
func EncryptObjectWithKey(v any, key []byte) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serializing object: %w", err)
	}
	return EncryptWithKey(string(data), key)
}

// DecryptObjectWithKey is DecryptObject with a per-call key override.
func DecryptObjectWithKey(blob string, key []byte, out any) error {
	plaintext, err := DecryptWithKey(blob, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plaintext), out); err != nil {
		return fmt.Errorf("deserializing object: %w", err)
	}
	return nil
}

// EncryptFields returns a shallow copy of obj where every named field
// holding a string is replaced by its encrypted blob. Non-string or absent
// fields pass through unchanged.
func (s *Service) EncryptFields(obj map[string]any, fields []string) (map[string]any, error) {
	out := maps.Clone(obj)
	for _, field := range fields {
		value, ok := out[field].(string)
		if !ok {
			continue
		}

		blob, err := s.Encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("encrypting field %q: %w", field, err)
		}
		out[field] = blob
	}
	return out, nil
}

// DecryptFields is the inverse of EncryptFields. A field that fails to
// decrypt (for example, one that was never encrypted) is left unchanged
// with a logged warning rather than failing the whole object.
func (s *Service) DecryptFields(obj map[string]any, fields []string) map[string]any {
	out := maps.Clone(obj)
	for _, field := range fields {
		blob, ok := out[field].(string)
		if !ok {
			continue
		}

		plaintext, err := s.Decrypt(blob)
		if err != nil {
			log.Warn().Err(err).Str("field", field).
				Msg("field failed to decrypt, leaving value unchanged")
			continue
		}
		out[field] = plaintext
	}
	return out
}

// pad applies PKCS#7 padding, always adding at least one byte.
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad removes PKCS#7 padding. Invalid padding means the key was wrong or
// the ciphertext was altered.
func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryptFailed)
	}

	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryptFailed)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrDecryptFailed)
		}
	}

	return data[:len(data)-n], nil
}

// Algorithm selects a one-way digest strength.
type Algorithm string

const (
	// AlgorithmMD5 is the fast, legacy option. Unsuitable for anything
	// security-sensitive; kept for interoperability with existing digests.
	AlgorithmMD5 Algorithm = "md5"

	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"
)

// Hash computes a one-way digest of data, hex-encoded.
func Hash(data string, algorithm Algorithm) (string, error) {
	switch algorithm {
	case AlgorithmMD5:
		sum := md5.Sum([]byte(data))
		return hex.EncodeToString(sum[:]), nil
	case AlgorithmSHA256:
		sum := sha256.Sum256([]byte(data))
		return hex.EncodeToString(sum[:]), nil
	case AlgorithmSHA512:
		sum := sha512.Sum512([]byte(data))
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Credential is a salted password digest.
type Credential struct {
	Hash string `json:"hash"`
	Salt string `json:"salt"`
}

// HashPassword digests password with the given salt, generating a random
// salt when none is supplied.
func HashPassword(password, salt string) (Credential, error) {
	if salt == "" {
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return Credential{}, fmt.Errorf("generating salt: %w", err)
		}
		salt = hex.EncodeToString(raw)
	}

	hash, err := Hash(password+salt, AlgorithmSHA256)
	if err != nil {
		return Credential{}, err
	}

	return Credential{Hash: hash, Salt: salt}, nil
}

// VerifyPassword recomputes the salted digest and compares it to hash in
// constant time.
func VerifyPassword(password, hash, salt string) bool {
	computed, err := Hash(password+salt, AlgorithmSHA256)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
