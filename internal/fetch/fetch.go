// Package fetch defines the outbound network collaborator consumed by the
// response cache. It deliberately knows nothing about caching: it issues a
// GET and returns the body, or an error.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Fetcher retrieves the response body for a url and query parameters.
type Fetcher interface {
	Fetch(ctx context.Context, url string, params map[string]string) ([]byte, error)
}

// maxResponseBytes bounds the response body read. Larger payloads do not
// belong in a response cache.
const maxResponseBytes = 4 << 20 // 4 MB

// HTTP is a Fetcher over an *http.Client with a bounded per-request timeout,
// so a hung upstream cannot stall a caller indefinitely.
type HTTP struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTP creates an HTTP fetcher. A nil client uses http.DefaultClient.
func NewHTTP(client *http.Client, timeout time.Duration) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client, timeout: timeout}
}

func (h *HTTP) Fetch(ctx context.Context, rawURL string, params map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", rawURL, err)
	}

	query := u.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %q: %w", rawURL, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %q: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %q: %w", rawURL, err)
	}

	return body, nil
}
