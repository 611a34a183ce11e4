package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// corsHandler wraps the hub's HTTP surface so browser spectator pages can
// reach it cross-origin.
func corsHandler(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(next)
}
