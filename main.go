package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/lumahq/luma-guard/internal/config"
	"github.com/lumahq/luma-guard/internal/crypto"
	"github.com/lumahq/luma-guard/internal/csrf"
	"github.com/lumahq/luma-guard/internal/fetch"
	"github.com/lumahq/luma-guard/internal/ratelimit"
	"github.com/lumahq/luma-guard/internal/respcache"
	"github.com/lumahq/luma-guard/internal/server"
	"github.com/lumahq/luma-guard/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinas/alice"
)

// components holds the explicitly constructed utility layer. Everything is
// built once at startup and passed to the handlers that need it; nothing is
// a module-level singleton, so tests can construct their own.
type components struct {
	store   store.Store
	crypto  *crypto.Service
	cache   *respcache.Cache
	limits  *ratelimit.Registry
	csrf    *csrf.Manager
	fetcher fetch.Fetcher
}

func buildComponents(ctx context.Context, cfg config.Config, hooks *server.ShutdownHooks) (*components, error) {
	st, err := store.NewFromConfig(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store configuration failed: %w", err)
	}
	hooks.Add("store", st.Close)

	cryptoService, err := crypto.NewService(ctx, st, cfg.Crypto)
	if err != nil {
		return nil, fmt.Errorf("encryption helper configuration failed: %w", err)
	}
	if err := cryptoService.Validate(); err != nil {
		return nil, fmt.Errorf("encryption helper validation failed: %w", err)
	}

	strategy, err := cacheStrategy(ctx, cfg.Cache, st)
	if err != nil {
		return nil, fmt.Errorf("cache strategy configuration failed: %w", err)
	}

	var durable store.Store
	if cfg.Cache.Durable {
		durable = st
	}

	fetchTimeout := time.Duration(cfg.Server.OutgoingFetchTimeoutSeconds) * time.Second
	fetcher := fetch.NewHTTP(http.DefaultClient, fetchTimeout)

	cache, err := respcache.New(ctx, respcache.Options{
		TTL:      time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		MaxSize:  cfg.Cache.MaxSize,
		Strategy: strategy,
		Durable:  durable,
		Fetcher:  fetcher,
	})
	if err != nil {
		return nil, fmt.Errorf("response cache configuration failed: %w", err)
	}
	hooks.Add("response cache", cache.Close)

	// persisted tokens are encrypted at rest
	csrfManager := csrf.NewManager(store.NewSecure(st, cryptoService), cfg.CSRF)

	refreshInterval := time.Duration(cfg.CSRF.RefreshCheckSeconds) * time.Second
	refresher := csrf.NewRefresher(ctx, csrfManager, refreshInterval)
	hooks.Add("csrf refresher", refresher.Close)

	return &components{
		store:   st,
		crypto:  cryptoService,
		cache:   cache,
		limits:  ratelimit.NewRegistry(cfg.RateLimit),
		csrf:    csrfManager,
		fetcher: fetcher,
	}, nil
}

// cacheStrategy selects the payload encoding: AEAD encryption when enabled,
// base64 obfuscation when configured, plaintext otherwise.
func cacheStrategy(ctx context.Context, cfg config.CacheConfig, st store.Store) (respcache.PayloadStrategy, error) {
	if cfg.Encryption.Enabled {
		aead, err := respcache.LoadOrCreateAEAD(ctx, st, cfg.Encryption.KeysetStoreKey)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("cache payload encryption enabled")
		return respcache.NewAEADStrategy(aead), nil
	}

	if cfg.Obfuscate {
		return &respcache.ObfuscatingStrategy{}, nil
	}

	return &respcache.PlainStrategy{}, nil
}

func configureServerRoutes(c *components) http.Handler {
	mux := http.NewServeMux()

	// The request body size is fairly limited to prevent accidental or
	// deliberate abuse. Given the current API shape, this is not
	// configurable.
	requestLimitBytes := int64(20 << 10) // 20 KB
	requestLimiter := maxRequestSize(requestLimitBytes)

	standard := alice.New(requestLimiter)
	authLimited := standard.Append(ratelimit.Middleware(c.limits.For(ratelimit.ActionAuth), nil))
	apiLimited := standard.Append(ratelimit.Middleware(c.limits.For(ratelimit.ActionAPI), nil))
	protected := apiLimited.Append(csrf.Middleware(c.csrf))

	mux.Handle("GET /healthcheck", standard.Then(handleHealthCheck()))
	mux.Handle("GET /session/csrf", authLimited.Then(handleGetCSRFToken(c.csrf)))
	mux.Handle("POST /session/logout", protected.Then(handlePostLogout(c.csrf)))
	mux.Handle("POST /cache/invalidate", protected.Then(handlePostCacheInvalidate(c.cache)))

	return mux
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launch()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launch() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	hooks := &server.ShutdownHooks{}

	c, err := buildComponents(ctx, cfg, hooks)
	if err != nil {
		return err
	}

	handler := configureServerRoutes(c)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second

	log.Info().Int("port", cfg.Server.Port).Msg("starting server")
	if err := server.Serve(ctx, srv, shutdownTimeout, hooks); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}
