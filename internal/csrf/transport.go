package csrf

import (
	"fmt"
	"net/http"
)

// Request headers attached to mutating requests.
const (
	// HeaderToken carries the anti-forgery token value.
	HeaderToken = "X-CSRF-Token"

	// HeaderRequestedWith marks the request as programmatic rather than a
	// plain form submission.
	HeaderRequestedWith = "X-Requested-With"

	requestedWithValue = "XMLHttpRequest"
)

// mutating reports whether a method changes state and therefore needs the
// token attached.
func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Transport is an http.RoundTripper that attaches the active token to every
// mutating request. Read requests pass through untouched.
type Transport struct {
	manager *Manager
	next    http.RoundTripper
}

// NewTransport wraps next with token attachment. A nil next uses
// http.DefaultTransport.
func NewTransport(manager *Manager, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{manager: manager, next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !mutating(req.Method) {
		return t.next.RoundTrip(req)
	}

	token, err := t.manager.Get(req.Context())
	if err != nil {
		return nil, fmt.Errorf("attaching csrf token: %w", err)
	}

	// RoundTrippers must not mutate the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set(HeaderToken, token.Value)
	req.Header.Set(HeaderRequestedWith, requestedWithValue)

	return t.next.RoundTrip(req)
}
