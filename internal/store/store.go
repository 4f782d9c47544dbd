package store

import (
	"context"
)

// Store is a uniform interface over a persistent key-value store. Values are
// UTF-8 text blobs; callers serialize structured data before storage.
//
// Higher components (response cache, CSRF manager, encryption key material)
// depend on this abstraction rather than a concrete storage technology.
type Store interface {
	// Get retrieves a value. Returns the value, whether it was found, and
	// any error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value, overwriting any previous value for the key.
	Set(ctx context.Context, key string, value string) error

	// Remove deletes a key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear removes all values held by this store.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
