package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS lets the configured origins call GET and POST with Authorization and
// Content-Type headers. An empty list allows no cross-origin caller.
func CORS(origins []string) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         3600,
	}
	if len(origins) == 0 {
		// rs/cors treats an empty list as "*".
		options.AllowOriginFunc = func(string) bool { return false }
	}

	return cors.New(options).Handler
}
