package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lumahq/luma-guard/internal/csrf"
	"github.com/lumahq/luma-guard/internal/respcache"
	"github.com/rs/zerolog/log"
)

// tokenResponse is the body returned by the CSRF token endpoint.
type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// invalidateRequest identifies the cache entry to invalidate.
type invalidateRequest struct {
	URL    string            `json:"url"`
	Params map[string]string `json:"params,omitempty"`
}

type invalidateResponse struct {
	Removed bool `json:"removed"`
}

func handleGetCSRFToken(manager *csrf.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		token, err := manager.Get(r.Context())
		if err != nil {
			log.Info().Msgf("token issue failed: %v", err)
			requestError(w, http.StatusInternalServerError)
			return
		}

		writeJSON(w, tokenResponse{Token: token.Value, ExpiresAt: token.ExpiresAt})
	})
}

func handlePostLogout(manager *csrf.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if err := manager.Clear(r.Context()); err != nil {
			log.Info().Msgf("token clear failed: %v", err)
			requestError(w, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handlePostCacheInvalidate(cache *respcache.Cache) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		var req invalidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			requestError(w, http.StatusBadRequest)
			return
		}

		removed, err := cache.Delete(r.Context(), req.URL, req.Params)
		if err != nil {
			log.Info().Msgf("cache invalidation failed: %v", err)
			requestError(w, http.StatusInternalServerError)
			return
		}

		writeJSON(w, invalidateResponse{Removed: removed})
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// At this point the status code has been written, so we can only log
		log.Info().Msgf("failed to write response: %v", err)
	}
}

func requestError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

// drainRequestBody drains the request body by reading and discarding the
// contents. This is useful to ensure the request body is fully consumed,
// which is important for connection reuse in HTTP/1 clients.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		// 5kb max: after this we'll assume the client is broken or malicious
		// and close the connection
		io.CopyN(io.Discard, r.Body, 5*1024*1024)
	}
}
