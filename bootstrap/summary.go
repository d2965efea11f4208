package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/pingstream/component"
)

// Summary collects and prints what the application started with.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	endpoints       []string
}

// NewSummary creates a new startup summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// AddEndpoint records an externally reachable URL (listen address, SSE path).
func (s *Summary) AddEndpoint(url string) {
	s.endpoints = append(s.endpoints, url)
}

// Write prints the summary, collecting component descriptions, routes and
// live health from the registry.
func (s *Summary) Write(w io.Writer, registry *component.Registry) {
	fmt.Fprintf(w, "\n%s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.endpoints) > 0 {
		fmt.Fprintf(w, "\nEndpoints\n")
		for i, e := range s.endpoints {
			fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(s.endpoints)), e)
		}
	}

	if registry == nil {
		fmt.Fprintln(w)
		return
	}

	components := registry.All()
	if len(components) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	fmt.Fprintf(w, "\nComponents\n")
	var routes []component.Route
	for i, c := range components {
		line := c.Name()
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name != "" {
				line = desc.Name
			}
			if desc.Type != "" {
				line += " [" + desc.Type + "]"
			}
			if desc.Details != "" {
				line += ": " + desc.Details
			}
			if desc.Port > 0 {
				line += fmt.Sprintf(" (:%d)", desc.Port)
			}
		}
		fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(components)), line)
		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "\nRoutes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s -> %s\n", treePrefix(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	health := registry.HealthAll(context.Background())
	fmt.Fprintf(w, "\nHealth\n")
	healthy := 0
	for i, h := range health {
		if h.Status == component.StatusHealthy {
			healthy++
		}
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(health)), healthIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
	}
	fmt.Fprintf(w, "\n%d/%d components healthy\n\n", healthy, len(health))
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
