package middleware

import "net/http"

// CacheControl sets the Cache-Control header on every response.
func CacheControl(value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore keeps browsers and shared caches from storing session-scoped
// responses.
func NoStore() func(http.Handler) http.Handler {
	return CacheControl("no-store")
}
