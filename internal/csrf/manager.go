// Package csrf manages the lifecycle of the single anti-forgery token
// attached to mutating requests: issuance, persistence, validation, refresh
// and clearing.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lumahq/luma-guard/internal/config"
	"github.com/lumahq/luma-guard/internal/store"
	"github.com/rs/zerolog/log"
)

// tokenBytes is the entropy of a token value before hex encoding.
const tokenBytes = 32

// Token is an issued anti-forgery token. It is valid strictly before
// ExpiresAt.
type Token struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token's lifetime has elapsed at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithClock overrides the manager's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the process's single active token, keeping the in-memory
// copy and the durable copy in sync. Exactly one token is active at a time;
// generating a new one overwrites any prior token.
type Manager struct {
	store    store.Store
	storeKey string
	lifetime time.Duration
	now      func() time.Time

	mu    sync.Mutex
	token *Token
}

// NewManager creates a token manager persisting through the given store.
func NewManager(st store.Store, cfg config.CSRFConfig, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		storeKey: cfg.StoreKey,
		lifetime: time.Duration(cfg.LifetimeMinutes) * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate issues a fresh token with a full lifetime, persists it, and
// adopts it as the active token.
func (m *Manager) Generate(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.generateLocked(ctx)
}

// Get returns the active token, never an expired or empty one. An unexpired
// in-memory token is returned directly; otherwise the durable copy is
// rehydrated and adopted if still valid; otherwise a new token is
// generated.
func (m *Manager) Get(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if m.token != nil && !m.token.Expired(now) {
		return *m.token, nil
	}

	if token, ok := m.rehydrate(ctx); ok && !token.Expired(now) {
		m.token = &token
		return token, nil
	}

	return m.generateLocked(ctx)
}

// Validate reports whether candidate matches the active token. Get may
// rotate the token during validation, so a mismatch can mean the caller
// holds a stale value; either way the result is a boolean, never an error.
func (m *Manager) Validate(ctx context.Context, candidate string) (bool, error) {
	token, err := m.Get(ctx)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(token.Value), []byte(candidate)) == 1, nil
}

// Refresh unconditionally regenerates the token. Used after a rejection
// signal from a downstream system.
func (m *Manager) Refresh(ctx context.Context) (Token, error) {
	return m.Generate(ctx)
}

// Expired reports whether no valid token is currently held in memory.
func (m *Manager) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token == nil || m.token.Expired(m.now())
}

// Clear removes the active token and its durable copy. Used on logout.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = nil
	if err := m.store.Remove(ctx, m.storeKey); err != nil {
		return fmt.Errorf("removing persisted token: %w", err)
	}
	return nil
}

// generateLocked issues and persists a fresh token. Callers must hold the
// lock.
func (m *Manager) generateLocked(ctx context.Context) (Token, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return Token{}, fmt.Errorf("generating token value: %w", err)
	}

	now := m.now()
	token := Token{
		Value:     hex.EncodeToString(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.lifetime),
	}

	data, err := json.Marshal(token)
	if err != nil {
		return Token{}, fmt.Errorf("serializing token: %w", err)
	}
	if err := m.store.Set(ctx, m.storeKey, string(data)); err != nil {
		return Token{}, fmt.Errorf("persisting token: %w", err)
	}

	m.token = &token
	return token, nil
}

// rehydrate attempts to load the persisted token. Failures degrade to "no
// token": a fresh one will be generated. Callers must hold the lock.
func (m *Manager) rehydrate(ctx context.Context) (Token, bool) {
	data, found, err := m.store.Get(ctx, m.storeKey)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load persisted csrf token")
		return Token{}, false
	}
	if !found {
		return Token{}, false
	}

	var token Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		log.Warn().Err(err).Msg("persisted csrf token is corrupt, regenerating")
		return Token{}, false
	}
	if token.Value == "" {
		return Token{}, false
	}

	return token, true
}
