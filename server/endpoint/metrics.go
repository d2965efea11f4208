package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsProvider contributes service-specific values to the metrics endpoint.
type StatsProvider func() map[string]any

// Metrics returns a handler reporting runtime memory, goroutines and the
// values of stats, if any, under "service".
func Metrics(stats StatsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		body := gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":       m.Alloc / 1024 / 1024,
				"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
				"sys_mb":         m.Sys / 1024 / 1024,
				"gc_runs":        m.NumGC,
			},
		}
		if stats != nil {
			body["service"] = stats()
		}
		c.JSON(http.StatusOK, body)
	}
}
