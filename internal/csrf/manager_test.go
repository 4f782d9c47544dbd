package csrf

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lumahq/luma-guard/internal/config"
	"github.com/lumahq/luma-guard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testCSRFConfig() config.CSRFConfig {
	return config.CSRFConfig{
		LifetimeMinutes:     30,
		RefreshCheckSeconds: 60,
		StoreKey:            "test:csrf:token",
	}
}

func TestGenerate_IssuesFullLifetimeToken(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewManager(store.NewMemory(), testCSRFConfig(), WithClock(clock.Now))

	token, err := m.Generate(ctx)
	require.NoError(t, err)

	assert.Len(t, token.Value, 2*tokenBytes)
	assert.Equal(t, clock.Now(), token.IssuedAt)
	assert.Equal(t, clock.Now().Add(30*time.Minute), token.ExpiresAt)
}

func TestGenerate_ReplacesActiveToken(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), testCSRFConfig())

	first, err := m.Generate(ctx)
	require.NoError(t, err)
	second, err := m.Generate(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.Value, second.Value)

	ok, err := m.Validate(ctx, first.Value)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_ReturnsActiveTokenWhileValid(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), testCSRFConfig())

	first, err := m.Get(ctx)
	require.NoError(t, err)

	second, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGet_NeverReturnsExpiredToken(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewManager(store.NewMemory(), testCSRFConfig(), WithClock(clock.Now))

	first, err := m.Get(ctx)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	second, err := m.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Value, second.Value)
	assert.True(t, clock.Now().Before(second.ExpiresAt))
}

func TestGet_RehydratesPersistedToken(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	first := NewManager(st, testCSRFConfig())
	issued, err := first.Get(ctx)
	require.NoError(t, err)

	// a new manager over the same store adopts the persisted token
	second := NewManager(st, testCSRFConfig())
	adopted, err := second.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, issued.Value, adopted.Value)
}

func TestGet_DiscardsExpiredPersistedToken(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	clock := newFakeClock()

	first := NewManager(st, testCSRFConfig(), WithClock(clock.Now))
	issued, err := first.Get(ctx)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	second := NewManager(st, testCSRFConfig(), WithClock(clock.Now))
	adopted, err := second.Get(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, issued.Value, adopted.Value)
}

func TestGet_CorruptPersistedTokenRegenerates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Set(ctx, "test:csrf:token", "{not json"))

	m := NewManager(st, testCSRFConfig())

	token, err := m.Get(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Value)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), testCSRFConfig())

	token, err := m.Get(ctx)
	require.NoError(t, err)

	ok, err := m.Validate(ctx, token.Value)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Validate(ctx, "forged-value")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Validate(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefresh_IssuesNewToken(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), testCSRFConfig())

	first, err := m.Get(ctx)
	require.NoError(t, err)

	refreshed, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Value, refreshed.Value)

	// the refreshed token is now the active one
	ok, err := m.Validate(ctx, refreshed.Value)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewManager(store.NewMemory(), testCSRFConfig(), WithClock(clock.Now))

	assert.True(t, m.Expired())

	_, err := m.Get(ctx)
	require.NoError(t, err)
	assert.False(t, m.Expired())

	clock.Advance(31 * time.Minute)
	assert.True(t, m.Expired())
}

func TestClear_RemovesActiveAndPersistedToken(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := NewManager(st, testCSRFConfig())

	issued, err := m.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Clear(ctx))

	_, found, err := st.Get(ctx, "test:csrf:token")
	require.NoError(t, err)
	assert.False(t, found)

	// the next Get issues a brand new token
	next, err := m.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Value, next.Value)
}
