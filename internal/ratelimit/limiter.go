// Package ratelimit bounds the number of operations an identifier may
// perform inside a fixed time window, with independently configured quotas
// per action class.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Config is a single fixed-window quota.
type Config struct {
	// Window is the quota interval. The counter resets at fixed wall-clock
	// intervals rather than sliding.
	Window time.Duration

	// MaxRequests is the number of operations allowed per identifier per
	// window.
	MaxRequests int
}

// Result is the outcome of a quota check. Denial is a value, never an
// error: callers decide whether to retry, queue, or reject the action.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time

	// RetryAfter is the whole number of seconds until the window resets,
	// rounded up. Only meaningful when Allowed is false.
	RetryAfter int
}

type window struct {
	count   int
	resetAt time.Time
}

// Option adjusts limiter construction.
type Option func(*Limiter)

// WithClock overrides the limiter's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Limiter counts operations per identifier within fixed windows. Windows
// are created lazily on first check and replaced once their reset time
// passes.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string]*window
	now     func() time.Time
}

// New creates a limiter with the given quota.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		windows: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes one unit of the identifier's quota if available. Within a
// window, successive allowed calls report strictly decreasing Remaining
// until it reaches zero; further calls are denied with an unchanged
// ResetTime until the window rolls over.
//
// Expired windows across all identifiers are purged on every call to bound
// memory growth.
func (l *Limiter) Check(identifier string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purgeLocked(now)

	w, ok := l.windows[identifier]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.cfg.Window)}
		l.windows[identifier] = w
	}

	if w.count >= l.cfg.MaxRequests {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  w.resetAt,
			RetryAfter: retryAfterSeconds(w.resetAt.Sub(now)),
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Remaining: l.cfg.MaxRequests - w.count,
		ResetTime: w.resetAt,
	}
}

// Reset deletes the identifier's window, granting a fresh quota
// immediately.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, identifier)
}

// Status reports the identifier's current window without consuming quota.
// Returns false when no live window exists.
func (l *Limiter) Status(identifier string) (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identifier]
	if !ok || !now.Before(w.resetAt) {
		return Result{}, false
	}

	r := Result{
		Allowed:   w.count < l.cfg.MaxRequests,
		Remaining: max(l.cfg.MaxRequests-w.count, 0),
		ResetTime: w.resetAt,
	}
	if !r.Allowed {
		r.RetryAfter = retryAfterSeconds(w.resetAt.Sub(now))
	}
	return r, true
}

// purgeLocked drops all expired windows. Callers must hold the lock.
func (l *Limiter) purgeLocked(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}

func retryAfterSeconds(until time.Duration) int {
	return int(math.Ceil(until.Seconds()))
}
