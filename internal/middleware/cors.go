package middleware

import (
	"net/http"

	"github.com/mermaidai/drive/internal/config"
	"github.com/rs/cors"
)

// CORS returns a middleware that answers preflights and sets CORS headers
// for the configured origins. No origins means any origin.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Retry-After"},
		MaxAge:         3600,
	})
	return c.Handler
}
