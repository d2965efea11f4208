package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// HTTPSRedirect redirects plain-HTTP requests arriving through a TLS
// terminating proxy. The proxy reports the original scheme in
// X-Forwarded-Proto; only an explicit "http" triggers the redirect.
func HTTPSRedirect() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Forwarded-Proto") != "http" {
				next.ServeHTTP(w, r)
				return
			}
			host := r.Header.Get("X-Forwarded-Host")
			if host == "" {
				host = r.Host
			}
			w.Header().Set("X-Forwarded-Proto", "https")
			http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusFound)
		})
	}
}

var repeatedSlashes = regexp.MustCompile(`/+`)

// TrailingSlash permanently redirects any path ending in "/" (other than the
// root) to the same path without it. Repeated slashes are collapsed and the
// query string is kept.
func TrailingSlash() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Path
			if len(p) <= 1 || !strings.HasSuffix(p, "/") {
				next.ServeHTTP(w, r)
				return
			}
			target := repeatedSlashes.ReplaceAllString(p[:len(p)-1], "/")
			if target == "" {
				target = "/"
			}
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})
	}
}
