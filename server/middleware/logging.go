package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/pingstream/logger"
)

var quietPaths = map[string]bool{
	"/health":    true,
	"/liveness":  true,
	"/readiness": true,
	"/metrics":   true,

	"/metrics/prometheus": true,
}

// RequestLogger returns middleware that logs one line per request in the
// compact "METHOD path status size - duration ms" form, with the same values
// as structured fields. Health paths are skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			duration := time.Since(start)

			ms := float64(duration.Microseconds()) / 1000
			fields := map[string]interface{}{
				"method":             r.Method,
				"path":               r.URL.RequestURI(),
				logger.FieldStatus:   sw.status,
				"size":               sw.size,
				logger.FieldDuration: ms,
			}
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields[logger.FieldRequestID] = id
			}

			msg := fmt.Sprintf("%s %s %d %d - %.3f ms", r.Method, r.URL.RequestURI(), sw.status, sw.size, ms)
			switch {
			case sw.status >= 500:
				log.Error(msg, fields)
			case sw.status >= 400:
				log.Warn(msg, fields)
			default:
				log.Info(msg, fields)
			}
		})
	}
}
