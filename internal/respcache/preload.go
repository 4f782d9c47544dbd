package respcache

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Preload returns the cached payload when a live entry exists; otherwise it
// fetches the response, stores it, and returns it. Any failure degrades to
// nil — never an error — so callers fall back to fetching fresh themselves.
// Concurrent preloads of the same request share a single fetch.
func (c *Cache) Preload(ctx context.Context, url string, params map[string]string, opts ...SetOption) []byte {
	if payload, ok := c.Get(ctx, url, params); ok {
		return payload
	}

	if c.fetcher == nil {
		log.Warn().Str("url", url).Msg("preload requested without a fetcher configured")
		return nil
	}

	result, err, _ := c.group.Do(Key(url, params), func() (any, error) {
		payload, err := c.fetcher.Fetch(ctx, url, params)
		if err != nil {
			return nil, err
		}

		if err := c.Set(ctx, url, payload, params, opts...); err != nil {
			// The fetched payload is still usable; only persistence failed.
			log.Warn().Err(err).Str("url", url).Msg("failed to store preloaded response")
		}

		return payload, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("preload fetch failed")
		return nil
	}

	return result.([]byte)
}

// BackgroundRefresh refetches the response without blocking the caller,
// overwriting the cache entry on success. Failures are logged and otherwise
// silently ignored: the existing entry (if any) continues to serve until it
// expires.
func (c *Cache) BackgroundRefresh(ctx context.Context, url string, params map[string]string, opts ...SetOption) {
	if c.fetcher == nil {
		log.Warn().Str("url", url).Msg("background refresh requested without a fetcher configured")
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Warn().Interface("recover", r).Str("url", url).
					Msg("background refresh panicked; continuing")
			}
		}()

		payload, err := c.fetcher.Fetch(ctx, url, params)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("background refresh fetch failed")
			return
		}

		if err := c.Set(ctx, url, payload, params, opts...); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("background refresh store failed")
		}
	}()
}
