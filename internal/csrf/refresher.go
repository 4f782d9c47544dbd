package csrf

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Refresher proactively replaces the token before requests observe it as
// stale. It checks expiry on an interval, independent of any individual
// request; the check is cheap and idempotent. Refresh failures are logged
// and retried at the next tick.
type Refresher struct {
	manager *Manager
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRefresher starts the periodic expiry check. Call Close to stop it.
func NewRefresher(ctx context.Context, manager *Manager, interval time.Duration) *Refresher {
	r := &Refresher{
		manager: manager,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go r.refreshLoop(ctx, interval)

	return r
}

// Close stops the refresh goroutine and waits for it to exit.
func (r *Refresher) Close() error {
	close(r.stopCh)
	<-r.doneCh
	return nil
}

// refreshLoop runs in a goroutine, checking token expiry at each tick.
func (r *Refresher) refreshLoop(ctx context.Context, interval time.Duration) {
	defer close(r.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh regenerates the token when the current one has expired.
func (r *Refresher) refresh(ctx context.Context) {
	if !r.manager.Expired() {
		return
	}

	if _, err := r.manager.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("proactive csrf token refresh failed, will retry")
		return
	}

	log.Debug().Msg("csrf token refreshed proactively")
}
