package crypto

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/lumahq/luma-guard/internal/store"
	"github.com/rs/zerolog/log"
)

// GenerateKey produces a fresh random key suitable for EncryptWithKey.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

// loadOrCreateMasterKey retrieves the persisted master key, generating and
// persisting a new one on first use. The key is created once per
// installation; a corrupt persisted key is fatal rather than silently
// replaced, since replacing it would orphan everything encrypted under it.
func loadOrCreateMasterKey(ctx context.Context, st store.Store, storeKey string) ([]byte, error) {
	encoded, found, err := st.Get(ctx, storeKey)
	if err != nil {
		return nil, fmt.Errorf("loading master key: %w", err)
	}

	if found {
		key, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("persisted master key is not valid hex: %w", err)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("persisted master key must be %d bytes, got %d", KeySize, len(key))
		}
		return key, nil
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := st.Set(ctx, storeKey, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("persisting master key: %w", err)
	}

	log.Info().Msg("generated new master key for this installation")
	return key, nil
}
