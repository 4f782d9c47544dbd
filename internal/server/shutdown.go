package server

import (
	"context"

	"github.com/rs/zerolog/log"
)

type hookDefinition struct {
	name string
	fn   func() error
}

// ShutdownHooks manages a collection of hooks to be executed during
// application shutdown. Hooks are executed in the order they were added,
// and execution continues even if a hook fails.
type ShutdownHooks struct {
	hooks []hookDefinition
}

// Add registers a shutdown hook. Nil hooks are ignored with a warning
// logged.
func (s *ShutdownHooks) Add(name string, hook func() error) {
	if hook == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	log.Debug().Str("hook", name).Msg("adding shutdown hook")
	s.hooks = append(s.hooks, hookDefinition{name: name, fn: hook})
}

// Execute runs all registered shutdown hooks in order. Success and failure
// of each hook is logged; a failing hook does not stop the rest.
func (s *ShutdownHooks) Execute(ctx context.Context) {
	l := log.Ctx(ctx)
	for _, hook := range s.hooks {
		hookLog := l.With().Str("hook", hook.name).Logger()

		hookLog.Info().Msg("shutdown started")
		if err := hook.fn(); err != nil {
			hookLog.Warn().Err(err).Msg("shutdown failed")
		} else {
			hookLog.Info().Msg("shutdown complete")
		}
	}
}
