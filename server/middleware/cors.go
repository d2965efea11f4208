package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Headers a cross-origin EventSource or fetch-based stream reader sends.
var defaultCORSHeaders = []string{"Accept", "Cache-Control", "Last-Event-ID"}

// CORSConfig lets pages on other origins open the event stream. With no
// allowed origins no CORS header is ever written and the stream stays
// same-origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// AllowedMethods defaults to GET and HEAD.
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	// AllowedHeaders defaults to the headers stream clients send.
	AllowedHeaders   []string      `yaml:"allowed_headers" mapstructure:"allowed_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

// CORS answers preflights from allowed origins with 204 and tags every other
// response from them with Access-Control-Allow-Origin.
func CORS(cfg *CORSConfig) Middleware {
	methods := strings.Join(orDefault(cfg.AllowedMethods, []string{http.MethodGet, http.MethodHead}), ", ")
	headers := strings.Join(orDefault(cfg.AllowedHeaders, defaultCORSHeaders), ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !originAllowed(origin, cfg.AllowedOrigins) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge/time.Second)))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string) bool {
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
