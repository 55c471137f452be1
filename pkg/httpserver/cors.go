package httpserver

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS wraps h with a CORS policy for the configured origins. The tenant
// headers are allowed so browser clients can select a school explicitly.
func CORS(h http.Handler, allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Authorization", "Content-Type", "X-Request-ID",
			"X-Tenant-ID", "X-Tenant-Subdomain",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(h)
}
