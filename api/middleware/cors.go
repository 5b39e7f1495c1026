package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

// CORS applies the storefront origin allow list. The app reads Retry-After
// to back off a cart race and Content-Language to pick product names.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed = append(allowed, origin)
		}
	}
	// browsers reject credentialed responses for a wildcard origin
	wildcard := slices.Contains(allowed, "*")

	return cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type", IdempotencyHeader, RequestIDHeader},
		ExposedHeaders: []string{
			RequestIDHeader,
			replayHeader,
			"Retry-After",
			"Content-Language",
		},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}).Handler
}
