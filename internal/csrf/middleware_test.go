package csrf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumahq/luma-guard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedHandler(m *Manager) http.Handler {
	return Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddleware_AllowsMutatingRequestWithValidToken(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), testCSRFConfig())

	token, err := m.Get(ctx)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/cache/invalidate", nil)
	req.Header.Set(HeaderToken, token.Value)

	rec := httptest.NewRecorder()
	protectedHandler(m).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RejectsMissingToken(t *testing.T) {
	m := NewManager(store.NewMemory(), testCSRFConfig())

	req := httptest.NewRequest("POST", "/cache/invalidate", nil)

	rec := httptest.NewRecorder()
	protectedHandler(m).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error": "invalid or missing csrf token"}`, rec.Body.String())
}

func TestMiddleware_RejectsForgedToken(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), testCSRFConfig())

	_, err := m.Get(ctx)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/cache/invalidate", nil)
	req.Header.Set(HeaderToken, "forged-value")

	rec := httptest.NewRecorder()
	protectedHandler(m).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddleware_ReadRequestsPassUnvalidated(t *testing.T) {
	m := NewManager(store.NewMemory(), testCSRFConfig())

	req := httptest.NewRequest("GET", "/session/csrf", nil)

	rec := httptest.NewRecorder()
	protectedHandler(m).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
