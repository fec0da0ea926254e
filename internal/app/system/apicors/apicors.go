// Package apicors provides CORS middleware for the ingestion API, which
// authenticates with an API key instead of cookies.
//
// With API key authentication no credentials are sent, so any origin may be
// allowed. Feeds that run in a browser can instead be pinned to a fixed list
// of origins with For.
package apicors

import (
	"net/http"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Authorization, Content-Type, Accept"
	maxAge       = "86400" // 24 hours
)

// For returns Middleware when origins is empty and MiddlewareWithOrigins otherwise.
func For(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return Middleware()
	}
	return MiddlewareWithOrigins(origins...)
}

// Middleware returns CORS middleware that allows any origin without
// credentials and answers preflight OPTIONS requests itself.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			setCommon(w)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MiddlewareWithOrigins returns CORS middleware that only allows specific origins.
//
//	r.Use(apicors.MiddlewareWithOrigins("https://feeds.example.org"))
func MiddlewareWithOrigins(allowedOrigins ...string) func(http.Handler) http.Handler {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			// Origins not in the set get no CORS headers; the browser blocks them.
			if origin := r.Header.Get("Origin"); origin != "" {
				if _, allowed := originSet[origin]; allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
			}
			setCommon(w)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setCommon(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", allowMethods)
	w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
	w.Header().Set("Access-Control-Max-Age", maxAge)
}
