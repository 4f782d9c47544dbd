package store

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// namespace is prepended to every key so that Clear can remove this
// process's values without touching unrelated data on a shared server.
const namespace = "guard:"

// Valkey is a store backed by a Valkey server, for deployments where
// persisted state must be shared across instances or survive host loss.
type Valkey struct {
	client valkey.Client
}

// NewValkey creates a store over an existing Valkey client. The store takes
// ownership of the client and closes it with Close.
func NewValkey(client valkey.Client) *Valkey {
	return &Valkey{client: client}
}

// StaticCredentialsFn returns an AuthCredentialsFn that always returns the
// configured username and password.
func StaticCredentialsFn(username, password string) func(valkey.AuthCredentialsContext) (valkey.AuthCredentials, error) {
	return func(valkey.AuthCredentialsContext) (valkey.AuthCredentials, error) {
		return valkey.AuthCredentials{
			Username: username,
			Password: password,
		}, nil
	}
}

func (v *Valkey) Get(ctx context.Context, key string) (string, bool, error) {
	cmd := v.client.B().Get().Key(namespace + key).Build()
	result := v.client.Do(ctx, cmd)

	if err := result.Error(); err != nil {
		// Key not found is not an error in our semantics
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get stored value: %w", err)
	}

	value, err := result.ToString()
	if err != nil {
		return "", false, fmt.Errorf("failed to convert stored value to string: %w", err)
	}

	return value, true, nil
}

func (v *Valkey) Set(ctx context.Context, key string, value string) error {
	cmd := v.client.B().Set().Key(namespace + key).Value(value).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set stored value: %w", err)
	}
	return nil
}

func (v *Valkey) Remove(ctx context.Context, key string) error {
	cmd := v.client.B().Del().Key(namespace + key).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to remove stored value: %w", err)
	}
	return nil
}

// Clear removes all keys within this store's namespace, walking the keyspace
// with SCAN to avoid blocking the server.
func (v *Valkey) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		cmd := v.client.B().Scan().Cursor(cursor).Match(namespace + "*").Count(100).Build()
		entry, err := v.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return fmt.Errorf("failed to scan stored keys: %w", err)
		}

		if len(entry.Elements) > 0 {
			del := v.client.B().Del().Key(entry.Elements...).Build()
			if err := v.client.Do(ctx, del).Error(); err != nil {
				return fmt.Errorf("failed to remove stored values: %w", err)
			}
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

func (v *Valkey) Close() error {
	v.client.Close()
	return nil
}
