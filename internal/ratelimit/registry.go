package ratelimit

import (
	"time"

	"github.com/lumahq/luma-guard/internal/config"
)

// Action identifies a class of rate-limited operation. Each class has its
// own limiter: exhausting an identifier's authentication quota says nothing
// about its search quota.
type Action string

const (
	ActionAuth    Action = "auth"
	ActionSearch  Action = "search"
	ActionUpload  Action = "upload"
	ActionPayment Action = "payment"
	ActionReview  Action = "review"
	ActionContact Action = "contact"
	ActionAPI     Action = "api"
)

// Registry holds one limiter per action class.
type Registry struct {
	limiters map[Action]*Limiter
	fallback *Limiter
}

// NewRegistry builds the per-class limiters from configuration.
func NewRegistry(cfg config.RateLimitConfig, opts ...Option) *Registry {
	build := func(lc config.LimitConfig) *Limiter {
		return New(Config{
			Window:      time.Duration(lc.WindowSeconds) * time.Second,
			MaxRequests: lc.MaxRequests,
		}, opts...)
	}

	api := build(cfg.API)
	return &Registry{
		limiters: map[Action]*Limiter{
			ActionAuth:    build(cfg.Auth),
			ActionSearch:  build(cfg.Search),
			ActionUpload:  build(cfg.Upload),
			ActionPayment: build(cfg.Payment),
			ActionReview:  build(cfg.Review),
			ActionContact: build(cfg.Contact),
			ActionAPI:     api,
		},
		fallback: api,
	}
}

// For returns the limiter for an action class. Unknown actions fall back to
// the generic API limiter.
func (r *Registry) For(action Action) *Limiter {
	if l, ok := r.limiters[action]; ok {
		return l
	}
	return r.fallback
}

// Check consumes quota for identifier under the given action class.
func (r *Registry) Check(action Action, identifier string) Result {
	return r.For(action).Check(identifier)
}
