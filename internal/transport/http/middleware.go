package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// RateLimiter gates requests per origin key. Implementations live in
// internal/infra; they fail open.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateLimit rejects requests over the per-origin budget with 429.
func RateLimit(limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), clientOrigin(r)) {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"ok": false, "error": "Too many requests, slow down."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows any origin. The frontend is served from a different host.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccessLog tags each request with an id and logs method, path, and origin.
func AccessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("request",
				"id", uuid.NewString(),
				"method", r.Method,
				"path", r.URL.Path,
				"origin", clientOrigin(r),
			)
			next.ServeHTTP(w, r)
		})
	}
}
