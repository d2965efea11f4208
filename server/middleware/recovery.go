package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "github.com/kbukum/pingstream/errors"
	"github.com/kbukum/pingstream/logger"
)

// Recovery returns middleware that recovers from panics, logs the stack and
// responds with an Internal AppError. http.ErrAbortHandler is re-raised so the server
// aborts the connection as intended.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("Panic recovered", map[string]interface{}{
					logger.FieldError: fmt.Sprintf("%v", rec),
					"stack":           string(debug.Stack()),
					"path":            r.URL.Path,
					"method":          r.Method,
				})
				apperrors.WriteJSON(w, apperrors.Internal(fmt.Errorf("panic: %v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
