package csrf

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Middleware validates the token header on mutating requests, rejecting
// mismatches with 403. Read requests pass through unvalidated. A mismatch
// is a security-relevant condition, so it is reported to the caller rather
// than silently tolerated.
func Middleware(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := manager.Validate(r.Context(), r.Header.Get(HeaderToken))
			if err != nil {
				log.Warn().Err(err).Msg("csrf validation could not complete")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if !ok {
				log.Info().Str("path", r.URL.Path).Msg("csrf token mismatch")
				writeJSONError(w, http.StatusForbidden, "invalid or missing csrf token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Info().Msgf("failed to write JSON error response: %v", err)
	}
}
