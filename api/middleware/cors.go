package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const publicCurrencyPath = "/api/v1/market-currency"

// CORS echoes the storefront extension origin with credentials. Any other origin is only
// allowed to read the public market currency endpoint.
func CORS(extensionOrigin string) func(http.Handler) http.Handler {
	origin := strings.TrimRight(strings.TrimSpace(extensionOrigin), "/")
	handler := cors.New(cors.Options{
		AllowOriginFunc: func(r *http.Request, requestOrigin string) bool {
			if origin != "" && strings.EqualFold(strings.TrimRight(requestOrigin, "/"), origin) {
				return true
			}
			return isPublicCurrencyRead(r)
		},
		AllowedMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id", "X-Requested-With"},
		ExposedHeaders:     []string{"X-Request-Id", "Retry-After"},
		AllowCredentials:   true,
		MaxAge:             300,
		OptionsPassthrough: true,
	}).Handler
	return func(next http.Handler) http.Handler {
		return handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPreflight(r) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func isPublicCurrencyRead(r *http.Request) bool {
	if r == nil || strings.TrimSuffix(r.URL.Path, "/") != publicCurrencyPath {
		return false
	}
	if r.Method == http.MethodGet {
		return true
	}
	// preflight for the public read
	return r.Method == http.MethodOptions && strings.EqualFold(r.Header.Get("Access-Control-Request-Method"), http.MethodGet)
}
