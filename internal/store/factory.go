package store

import (
	"crypto/tls"
	"fmt"

	"github.com/lumahq/luma-guard/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"
)

// NewFromConfig creates a store implementation based on the provided
// configuration. The store type must be "memory", "file" or "valkey"; any
// other value returns an error.
func NewFromConfig(storeConfig config.StoreConfig) (Store, error) {
	switch storeConfig.Type {
	case "valkey":
		log.Info().
			Str("store_type", "valkey").
			Str("address", storeConfig.Valkey.Address).
			Bool("tls", storeConfig.Valkey.TLS).
			Msg("initializing distributed store")

		if storeConfig.Valkey.Address == "" {
			return nil, fmt.Errorf("valkey address is required when store type is valkey")
		}

		valkeyOpts := valkey.ClientOption{
			InitAddress: []string{storeConfig.Valkey.Address},
			AuthCredentialsFn: StaticCredentialsFn(
				storeConfig.Valkey.Username,
				storeConfig.Valkey.Password,
			),
		}

		// Configure TLS if enabled
		if storeConfig.Valkey.TLS {
			valkeyOpts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		valkeyClient, err := valkey.NewClient(valkeyOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create valkey client: %w", err)
		}

		return NewValkey(valkeyClient), nil

	case "file":
		log.Info().
			Str("store_type", "file").
			Str("path", storeConfig.FilePath).
			Msg("initializing file store")

		file, err := NewFile(storeConfig.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create file store: %w", err)
		}

		return file, nil

	case "memory":
		log.Info().
			Str("store_type", "memory").
			Msg("initializing in-memory store")

		return NewMemory(), nil

	default:
		return nil, fmt.Errorf("invalid store type %q: must be \"memory\", \"file\" or \"valkey\"", storeConfig.Type)
	}
}
