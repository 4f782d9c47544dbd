package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	CSRF      CSRFConfig
	Crypto    CryptoConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	// Timeout applied to outgoing fetches made on behalf of the response
	// cache. A hung upstream degrades to a cache miss, never a stalled caller.
	OutgoingFetchTimeoutSeconds int `env:"SERVER_OUTGOING_FETCH_TIMEOUT_SECS, default=10"`
}

// StoreConfig selects the durable key-value store backing the cache, CSRF
// manager and encryption key material.
type StoreConfig struct {
	// Type selects the store implementation: "memory" (default), "file" or
	// "valkey".
	Type string `env:"STORE_TYPE, default=memory"`

	// FilePath is the location of the persisted store when Type is "file".
	FilePath string `env:"STORE_FILE_PATH, default=luma-guard-store.json"`

	// Valkey holds distributed store settings.
	Valkey ValkeyConfig
}

// ValkeyConfig specifies distributed store configuration.
type ValkeyConfig struct {
	// Address is the Valkey server address (host:port).
	Address string `env:"VALKEY_ADDRESS"`

	// TLS enables TLS connection to Valkey. Defaults to true so the secure
	// option is the default.
	TLS bool `env:"VALKEY_TLS, default=true"`

	// Username for Valkey authentication.
	Username string `env:"VALKEY_USERNAME"`

	// Password for Valkey authentication.
	Password string `env:"VALKEY_PASSWORD"`
}

// CacheConfig specifies response cache configuration.
type CacheConfig struct {
	// TTLSeconds is the default entry lifetime when a caller does not supply
	// one.
	TTLSeconds int `env:"CACHE_TTL_SECS, default=300"`

	// MaxSize bounds the number of entries; inserting at capacity evicts the
	// oldest-inserted entry.
	MaxSize int `env:"CACHE_MAX_SIZE, default=100"`

	// Obfuscate base64-encodes payloads before storage. This is reversible
	// encoding, not compression.
	Obfuscate bool `env:"CACHE_OBFUSCATE, default=true"`

	// Durable persists cache entries through the configured store so they
	// survive process restarts. Requires STORE_TYPE=file or valkey.
	Durable bool `env:"CACHE_DURABLE, default=false"`

	// Encryption holds settings for encrypting cached payloads at rest.
	Encryption CacheEncryptionConfig
}

// CacheEncryptionConfig holds settings for cache payload encryption.
type CacheEncryptionConfig struct {
	// Enabled turns on AEAD encryption for cached payloads.
	// Requires CACHE_DURABLE=true.
	Enabled bool `env:"CACHE_ENCRYPTION_ENABLED, default=false"`

	// KeysetStoreKey is the durable store key holding the Tink keyset.
	KeysetStoreKey string `env:"CACHE_ENCRYPTION_KEYSET_STORE_KEY, default=luma:cache:keyset"`
}

// RateLimitConfig carries one fixed-window quota per action class. Each
// class is an independently keyed limiter: an identifier's authentication
// quota is unrelated to its search quota.
type RateLimitConfig struct {
	Auth    LimitConfig `env:", prefix=RATELIMIT_AUTH_"`
	Search  LimitConfig `env:", prefix=RATELIMIT_SEARCH_"`
	Upload  LimitConfig `env:", prefix=RATELIMIT_UPLOAD_"`
	Payment LimitConfig `env:", prefix=RATELIMIT_PAYMENT_"`
	Review  LimitConfig `env:", prefix=RATELIMIT_REVIEW_"`
	Contact LimitConfig `env:", prefix=RATELIMIT_CONTACT_"`
	API     LimitConfig `env:", prefix=RATELIMIT_API_"`
}

// LimitConfig is a single fixed-window quota.
type LimitConfig struct {
	WindowSeconds int `env:"WINDOW_SECS"`
	MaxRequests   int `env:"MAX_REQUESTS"`
}

// CSRFConfig specifies anti-forgery token settings.
type CSRFConfig struct {
	// LifetimeMinutes is the fixed token lifetime.
	LifetimeMinutes int `env:"CSRF_LIFETIME_MINS, default=30"`

	// RefreshCheckSeconds is the interval of the proactive expiry check.
	RefreshCheckSeconds int `env:"CSRF_REFRESH_CHECK_SECS, default=60"`

	// StoreKey is the durable store key holding the persisted token.
	StoreKey string `env:"CSRF_STORE_KEY, default=luma:csrf:token"`
}

// CryptoConfig specifies encryption helper settings.
type CryptoConfig struct {
	// MasterKey optionally supplies the 32-byte master key as hex. When
	// empty, the key is loaded from the durable store, generated on first
	// use if absent.
	MasterKey string `env:"CRYPTO_MASTER_KEY"`

	// MasterKeyStoreKey is the durable store key holding the generated
	// master key.
	MasterKeyStoreKey string `env:"CRYPTO_MASTER_KEY_STORE_KEY, default=luma:crypto:master-key"`
}

// Default quotas per action class, applied when the corresponding
// environment variables are unset. Narrow window and low quota for
// authentication (brute-force resistance); wide window and high quota for
// generic API traffic.
var defaultLimits = map[string]LimitConfig{
	"auth":    {WindowSeconds: 900, MaxRequests: 5},
	"search":  {WindowSeconds: 60, MaxRequests: 30},
	"upload":  {WindowSeconds: 3600, MaxRequests: 20},
	"payment": {WindowSeconds: 3600, MaxRequests: 10},
	"review":  {WindowSeconds: 3600, MaxRequests: 5},
	"contact": {WindowSeconds: 3600, MaxRequests: 3},
	"api":     {WindowSeconds: 60, MaxRequests: 100},
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	cfg.RateLimit.applyDefaults()

	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *RateLimitConfig) applyDefaults() {
	for name, ptr := range map[string]*LimitConfig{
		"auth":    &c.Auth,
		"search":  &c.Search,
		"upload":  &c.Upload,
		"payment": &c.Payment,
		"review":  &c.Review,
		"contact": &c.Contact,
		"api":     &c.API,
	} {
		def := defaultLimits[name]
		if ptr.WindowSeconds == 0 {
			ptr.WindowSeconds = def.WindowSeconds
		}
		if ptr.MaxRequests == 0 {
			ptr.MaxRequests = def.MaxRequests
		}
	}
}

// Validate checks cross-section constraints of the configuration.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory", "file", "valkey":
	default:
		return fmt.Errorf("invalid store type %q: must be \"memory\", \"file\" or \"valkey\"", c.Store.Type)
	}

	// Valkey requires address
	if c.Store.Type == "valkey" && c.Store.Valkey.Address == "" {
		return fmt.Errorf("VALKEY_ADDRESS required when STORE_TYPE=valkey")
	}

	if c.Store.Type == "file" && c.Store.FilePath == "" {
		return fmt.Errorf("STORE_FILE_PATH required when STORE_TYPE=file")
	}

	// Durable cache entries only survive restarts with a persistent store.
	if c.Cache.Durable && c.Store.Type == "memory" {
		return fmt.Errorf("durable cache requires STORE_TYPE=file or valkey")
	}

	// Payload encryption protects data at rest: it only applies to the
	// durable strategy.
	if c.Cache.Encryption.Enabled && !c.Cache.Durable {
		return fmt.Errorf("cache encryption requires CACHE_DURABLE=true")
	}

	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive")
	}

	return nil
}
