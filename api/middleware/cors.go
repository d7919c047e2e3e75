package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the configured storefront origins. The guest session and
// idempotency headers must be listed or browsers strip them on preflight.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			SessionIDHeader, IdempotencyKeyHeader, RequestIDHeader,
		},
		ExposedHeaders:   []string{RequestIDHeader, idempotentReplayHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
