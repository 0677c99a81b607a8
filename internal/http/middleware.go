package http

import (
	"net/http"
	"strings"
)

// SecurityHeaders adds security-related headers to all responses.
// imgSources are extra CSP image origins, such as an S3 endpoint.
func SecurityHeaders(imgSources ...string) func(http.Handler) http.Handler {
	img := append([]string{"'self'", "data:", "https:"}, imgSources...)
	csp := "default-src 'self'; script-src 'self'; style-src 'self'; img-src " + strings.Join(img, " ") +
		"; form-action 'self'; frame-ancestors 'none'; base-uri 'self'"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", csp)

			next.ServeHTTP(w, r)
		})
	}
}

// NoCache stops browsers from showing authenticated pages from history
// after logout. Static assets stay cacheable.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/static/") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		next.ServeHTTP(w, r)
	})
}
