package respcache

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/lumahq/luma-guard/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/tink-crypto/tink-go/v2/aead"
	"github.com/tink-crypto/tink-go/v2/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/v2/keyset"
	"github.com/tink-crypto/tink-go/v2/tink"
)

// LoadOrCreateAEAD returns the AEAD primitive for cache payload encryption,
// generating an AES-256-GCM keyset and persisting it on first use.
//
// The keyset is stored cleartext in the durable store: this is a
// per-installation client secret protecting locally cached data, not a
// server-side deployment with a KMS available. An installation that loses
// the store loses the cached data with it, which is acceptable for a cache.
func LoadOrCreateAEAD(ctx context.Context, st store.Store, storeKey string) (tink.AEAD, error) {
	encoded, found, err := st.Get(ctx, storeKey)
	if err != nil {
		return nil, fmt.Errorf("loading cache keyset: %w", err)
	}

	var handle *keyset.Handle
	if found {
		handle, err = insecurecleartextkeyset.Read(keyset.NewJSONReader(strings.NewReader(encoded)))
		if err != nil {
			return nil, fmt.Errorf("parsing persisted cache keyset: %w", err)
		}
	} else {
		handle, err = keyset.NewHandle(aead.AES256GCMKeyTemplate())
		if err != nil {
			return nil, fmt.Errorf("creating cache keyset: %w", err)
		}

		var buf bytes.Buffer
		if err := insecurecleartextkeyset.Write(handle, keyset.NewJSONWriter(&buf)); err != nil {
			return nil, fmt.Errorf("serializing cache keyset: %w", err)
		}
		if err := st.Set(ctx, storeKey, buf.String()); err != nil {
			return nil, fmt.Errorf("persisting cache keyset: %w", err)
		}

		log.Info().Msg("generated new cache encryption keyset for this installation")
	}

	primitive, err := aead.New(handle)
	if err != nil {
		return nil, fmt.Errorf("creating AEAD primitive: %w", err)
	}

	return primitive, nil
}
