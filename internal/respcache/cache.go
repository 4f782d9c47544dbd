// Package respcache maps request signatures to previously fetched responses
// with time-to-live expiry, a bounded size with insertion-order eviction,
// and optional persistence through the durable store.
package respcache

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lumahq/luma-guard/internal/fetch"
	"github.com/lumahq/luma-guard/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultDurableKey is the store key the serialized entry list is persisted
// under when no other key is configured.
const DefaultDurableKey = "luma:cache:entries"

// Entry is a cached response. An entry is expired once now - CreatedAt
// exceeds TTL; expired entries are never returned and are evicted lazily on
// the next read.
type Entry struct {
	Payload      string        `json:"payload"`
	CreatedAt    time.Time     `json:"created_at"`
	TTL          time.Duration `json:"ttl"`
	ETag         string        `json:"etag,omitempty"`
	LastModified string        `json:"last_modified,omitempty"`
}

// Expired reports whether the entry's lifetime has elapsed at now.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// persistedEntry pairs an entry with its key for the flat serialized list
// written to the durable store.
type persistedEntry struct {
	Key string `json:"key"`
	Entry
}

// Options configures a Cache.
type Options struct {
	// TTL is the default entry lifetime, used when Set is not given one.
	TTL time.Duration

	// MaxSize bounds the entry count. At capacity, Set evicts the
	// oldest-inserted entry. Insertion-order eviction is a deliberate
	// simplification over recency tracking: entries are small and
	// short-lived, so the cheaper policy wins.
	MaxSize int

	// Strategy encodes payloads before storage. Nil stores them as-is.
	Strategy PayloadStrategy

	// Durable, when non-nil, persists entries through the store so they
	// survive restarts. Entries are serialized as a flat list and
	// rehydrated on construction.
	Durable store.Store

	// DurableKey overrides the store key for the serialized entry list.
	DurableKey string

	// Fetcher performs network retrieval for Preload and BackgroundRefresh.
	Fetcher fetch.Fetcher

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Cache is the response cache. The zero value is not usable; construct with
// New.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	order   []string // insertion order, oldest first

	ttl        time.Duration
	maxSize    int
	strategy   PayloadStrategy
	durable    store.Store
	durableKey string
	fetcher    fetch.Fetcher
	now        func() time.Time

	group   singleflight.Group
	metrics *metrics
}

// New creates a response cache. When a durable store is configured,
// previously persisted entries are rehydrated before the cache is returned;
// entries that expired while the process was down are dropped.
func New(ctx context.Context, opts Options) (*Cache, error) {
	if opts.MaxSize <= 0 {
		return nil, fmt.Errorf("cache max size must be positive, got %d", opts.MaxSize)
	}
	if opts.Strategy == nil {
		opts.Strategy = &PlainStrategy{}
	}
	if opts.DurableKey == "" {
		opts.DurableKey = DefaultDurableKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		entries:    make(map[string]Entry),
		ttl:        opts.TTL,
		maxSize:    opts.MaxSize,
		strategy:   opts.Strategy,
		durable:    opts.Durable,
		durableKey: opts.DurableKey,
		fetcher:    opts.Fetcher,
		now:        opts.Now,
		metrics:    newMetrics(),
	}

	if c.durable != nil {
		if err := c.rehydrate(ctx); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// SetOption adjusts a single Set call.
type SetOption func(*Entry)

// WithTTL overrides the cache's default TTL for one entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(e *Entry) { e.TTL = ttl }
}

// WithValidators records the response validators alongside the entry.
func WithValidators(etag, lastModified string) SetOption {
	return func(e *Entry) {
		e.ETag = etag
		e.LastModified = lastModified
	}
}

// Get returns the cached payload for the request, or false if no entry
// exists or the entry has expired. An expired or undecodable entry is
// deleted as a side effect of the read.
func (c *Cache) Get(ctx context.Context, url string, params map[string]string) ([]byte, bool) {
	key := Key(url, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.metrics.recordLookup(ctx, lookupMiss)
		return nil, false
	}

	if entry.Expired(c.now()) {
		c.evictLocked(ctx, key)
		c.metrics.recordLookup(ctx, lookupExpired)
		return nil, false
	}

	payload, err := c.strategy.Decode(entry.Payload, key)
	if err != nil {
		// Corrupt or foreign data is a miss, not a fatal error: evict the
		// entry and let the caller refetch.
		log.Warn().Err(err).Str("url", url).Msg("cached payload failed to decode, evicting")
		c.evictLocked(ctx, key)
		c.metrics.recordLookup(ctx, lookupCorrupt)
		return nil, false
	}

	c.metrics.recordLookup(ctx, lookupHit)
	return payload, true
}

// Set inserts or overwrites the entry for the request. At capacity, the
// oldest-inserted entry is evicted to make room.
func (c *Cache) Set(ctx context.Context, url string, payload []byte, params map[string]string, opts ...SetOption) error {
	key := Key(url, params)

	encoded, err := c.strategy.Encode(payload, key)
	if err != nil {
		return fmt.Errorf("encoding payload for %q: %w", url, err)
	}

	entry := Entry{
		Payload:   encoded,
		CreatedAt: c.now(),
		TTL:       c.ttl,
	}
	for _, opt := range opts {
		opt(&entry)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry

	return c.persistLocked(ctx)
}

// Has reports whether a live entry exists for the request. Expired entries
// are treated as absent but are not evicted by this check.
func (c *Cache) Has(_ context.Context, url string, params map[string]string) bool {
	key := Key(url, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	return ok && !entry.Expired(c.now())
}

// Delete removes the entry for the request, reporting whether one was
// removed.
func (c *Cache) Delete(ctx context.Context, url string, params map[string]string) (bool, error) {
	key := Key(url, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false, nil
	}

	c.deleteLocked(key)
	return true, c.persistLocked(ctx)
}

// Clear removes all entries and, when the cache is durable, the persisted
// blob with them.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	c.order = nil

	if c.durable == nil {
		return nil
	}
	if err := c.durable.Remove(ctx, c.durableKey); err != nil {
		return fmt.Errorf("clearing persisted cache entries: %w", err)
	}
	return nil
}

// Len reports the current number of entries, counting expired entries that
// have not yet been lazily evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports the lookup counters accumulated since construction.
func (c *Cache) Stats() Stats {
	return c.metrics.snapshot()
}

// Close releases the payload strategy's resources.
func (c *Cache) Close() error {
	return c.strategy.Close()
}

// evictOldestLocked removes the oldest-inserted entry without persisting;
// callers persist afterwards. Callers must hold the lock.
func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	log.Debug().Str("key", oldest).Msg("cache at capacity, evicting oldest entry")
	c.deleteLocked(oldest)
}

// evictLocked removes an entry during a read. Lazy evictions must not fail
// the read, so persistence failure is only logged. Callers must hold the
// lock.
func (c *Cache) evictLocked(ctx context.Context, key string) {
	c.deleteLocked(key)
	if err := c.persistLocked(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to persist cache after eviction")
	}
}

// deleteLocked removes an entry from the map and the insertion-order list.
// Callers must hold the lock.
func (c *Cache) deleteLocked(key string) {
	delete(c.entries, key)
	if i := slices.Index(c.order, key); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}

// persistLocked re-serializes all entries to the durable store. Callers
// must hold the lock. No-op for memory-only caches.
func (c *Cache) persistLocked(ctx context.Context) error {
	if c.durable == nil {
		return nil
	}

	list := make([]persistedEntry, 0, len(c.order))
	for _, key := range c.order {
		list = append(list, persistedEntry{Key: key, Entry: c.entries[key]})
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("serializing cache entries: %w", err)
	}
	if err := c.durable.Set(ctx, c.durableKey, string(data)); err != nil {
		return fmt.Errorf("persisting cache entries: %w", err)
	}
	return nil
}

// rehydrate loads the serialized entry list from the durable store,
// restoring insertion order and dropping entries that expired while the
// process was down.
func (c *Cache) rehydrate(ctx context.Context) error {
	blob, found, err := c.durable.Get(ctx, c.durableKey)
	if err != nil {
		return fmt.Errorf("loading persisted cache entries: %w", err)
	}
	if !found {
		return nil
	}

	var list []persistedEntry
	if err := json.Unmarshal([]byte(blob), &list); err != nil {
		// A corrupt blob is a cache problem, not a startup problem: start
		// empty and overwrite it on the next mutation.
		log.Warn().Err(err).Msg("persisted cache entries are corrupt, starting empty")
		return nil
	}

	now := c.now()
	for _, pe := range list {
		if pe.Entry.Expired(now) {
			continue
		}
		if _, exists := c.entries[pe.Key]; exists {
			continue
		}
		c.entries[pe.Key] = pe.Entry
		c.order = append(c.order, pe.Key)
	}

	log.Info().Int("entries", len(c.entries)).Msg("rehydrated response cache")
	return nil
}
