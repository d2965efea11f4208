package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/pingstream/errors"
)

// Cache policies for static assets.
const (
	CacheImmutable = "public, max-age=31536000, immutable"
	CacheHourly    = "public, max-age=3600"
)

// ServeStatic serves fingerprinted assets under /build from <dir>/build with
// a one-year immutable cache, and any other existing file in dir with a
// one-hour cache. Unknown paths get a JSON 404.
func (s *Server) ServeStatic(dir string) {
	build := s.engine.Group("/build", cacheControl(CacheImmutable))
	build.StaticFS("/", gin.Dir(filepath.Join(dir, "build"), false))

	files := http.FileServer(http.Dir(dir))
	s.engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
			if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
				c.Header("Cache-Control", CacheHourly)
				files.ServeHTTP(c.Writer, c.Request)
				return
			}
		}
		RespondWithError(c, apperrors.NotFound("route "+c.Request.URL.Path))
	})
}

func cacheControl(value string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
