package config

import (
	"context"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	ctx := context.Background()

	cfg, err := load(ctx, envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Server.ShutdownTimeoutSeconds)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, 100, cfg.Cache.MaxSize)
	assert.True(t, cfg.Cache.Obfuscate)
	assert.False(t, cfg.Cache.Durable)
	assert.False(t, cfg.Cache.Encryption.Enabled)
	assert.Equal(t, 30, cfg.CSRF.LifetimeMinutes)
	assert.Equal(t, 60, cfg.CSRF.RefreshCheckSeconds)
	assert.Equal(t, "luma:csrf:token", cfg.CSRF.StoreKey)
	assert.Equal(t, "luma:crypto:master-key", cfg.Crypto.MasterKeyStoreKey)
}

func TestLoad_RateLimitDefaults(t *testing.T) {
	ctx := context.Background()

	cfg, err := load(ctx, envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, LimitConfig{WindowSeconds: 900, MaxRequests: 5}, cfg.RateLimit.Auth)
	assert.Equal(t, LimitConfig{WindowSeconds: 60, MaxRequests: 30}, cfg.RateLimit.Search)
	assert.Equal(t, LimitConfig{WindowSeconds: 3600, MaxRequests: 20}, cfg.RateLimit.Upload)
	assert.Equal(t, LimitConfig{WindowSeconds: 3600, MaxRequests: 10}, cfg.RateLimit.Payment)
	assert.Equal(t, LimitConfig{WindowSeconds: 3600, MaxRequests: 5}, cfg.RateLimit.Review)
	assert.Equal(t, LimitConfig{WindowSeconds: 3600, MaxRequests: 3}, cfg.RateLimit.Contact)
	assert.Equal(t, LimitConfig{WindowSeconds: 60, MaxRequests: 100}, cfg.RateLimit.API)
}

func TestLoad_RateLimitOverride(t *testing.T) {
	ctx := context.Background()

	cfg, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"RATELIMIT_AUTH_WINDOW_SECS":  "300",
		"RATELIMIT_AUTH_MAX_REQUESTS": "10",
	}))
	require.NoError(t, err)

	assert.Equal(t, LimitConfig{WindowSeconds: 300, MaxRequests: 10}, cfg.RateLimit.Auth)
	// other classes keep their defaults
	assert.Equal(t, LimitConfig{WindowSeconds: 60, MaxRequests: 30}, cfg.RateLimit.Search)
}

func TestLoad_ValkeyStoreRequiresAddress(t *testing.T) {
	ctx := context.Background()

	_, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"STORE_TYPE": "valkey",
	}))
	assert.ErrorContains(t, err, "VALKEY_ADDRESS required")
}

func TestLoad_ValkeyStore(t *testing.T) {
	ctx := context.Background()

	cfg, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"STORE_TYPE":     "valkey",
		"VALKEY_ADDRESS": "valkey.internal:6379",
		"VALKEY_TLS":     "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, "valkey", cfg.Store.Type)
	assert.Equal(t, "valkey.internal:6379", cfg.Store.Valkey.Address)
	assert.False(t, cfg.Store.Valkey.TLS)
}

func TestLoad_InvalidStoreType(t *testing.T) {
	ctx := context.Background()

	_, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"STORE_TYPE": "redis",
	}))
	assert.ErrorContains(t, err, "invalid store type")
}

func TestLoad_DurableCacheRequiresPersistentStore(t *testing.T) {
	ctx := context.Background()

	_, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"CACHE_DURABLE": "true",
	}))
	assert.ErrorContains(t, err, "durable cache requires")
}

func TestLoad_DurableCacheWithFileStore(t *testing.T) {
	ctx := context.Background()

	cfg, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"STORE_TYPE":    "file",
		"CACHE_DURABLE": "true",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.Cache.Durable)
}

func TestLoad_CacheEncryptionRequiresDurable(t *testing.T) {
	ctx := context.Background()

	_, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"STORE_TYPE":               "file",
		"CACHE_ENCRYPTION_ENABLED": "true",
	}))
	assert.ErrorContains(t, err, "cache encryption requires")
}

func TestLoad_CacheMaxSizeMustBePositive(t *testing.T) {
	ctx := context.Background()

	_, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"CACHE_MAX_SIZE": "-1",
	}))
	assert.ErrorContains(t, err, "CACHE_MAX_SIZE must be positive")
}
