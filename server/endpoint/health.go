// Package endpoint holds the gin handlers behind the operational routes.
package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pingstream/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// StatusBody is the body shared by /health, /readiness and /liveness.
type StatusBody struct {
	Status     string             `json:"status"`
	Service    string             `json:"service"`
	Timestamp  string             `json:"timestamp"`
	Components []component.Health `json:"components,omitempty"`
}

func newStatusBody(serviceName, status string) StatusBody {
	return StatusBody{
		Status:    status,
		Service:   serviceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// aggregate folds component statuses into one: unhealthy wins over degraded,
// and no components means healthy.
func aggregate(components []component.Health) component.HealthStatus {
	status := component.StatusHealthy
	for _, ch := range components {
		switch ch.Status {
		case component.StatusUnhealthy:
			return component.StatusUnhealthy
		case component.StatusDegraded:
			status = component.StatusDegraded
		}
	}
	return status
}

func check(c *gin.Context, checker HealthChecker) []component.Health {
	if checker == nil {
		return nil
	}
	return checker(c.Request.Context())
}

// Health reports every component. Any unhealthy component turns the response
// into a 503; the event source reports its open session count here.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		components := check(c, checker)
		status := aggregate(components)

		p := newStatusBody(serviceName, string(status))
		p.Components = components
		if status == component.StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, p)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// Readiness is Health without the component list, for load balancers.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if aggregate(check(c, checker)) == component.StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, newStatusBody(serviceName, "not_ready"))
			return
		}
		c.JSON(http.StatusOK, newStatusBody(serviceName, "ready"))
	}
}

// Liveness answers as long as the process can serve requests.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, newStatusBody(serviceName, "alive"))
	}
}
