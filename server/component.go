package server

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/pingstream/component"
)

const componentName = "http-server"

var (
	_ component.Component     = (*Component)(nil)
	_ component.Describable   = (*Component)(nil)
	_ component.RouteProvider = (*Component)(nil)
)

// System routes are listed after application routes in the startup summary.
var systemPaths = map[string]bool{
	"/health":    true,
	"/liveness":  true,
	"/readiness": true,
	"/metrics":   true,

	"/metrics/prometheus": true,
	"/version":   true,
}

// Component wraps Server to implement component.Component.
type Component struct {
	server *Server
}

// NewComponent returns a component.Component backed by the given Server.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Server returns the wrapped server.
func (sc *Component) Server() *Server { return sc.server }

// Name returns the component name used for registration.
func (sc *Component) Name() string { return componentName }

// Start starts the underlying HTTP server.
func (sc *Component) Start(ctx context.Context) error {
	return sc.server.Start(ctx)
}

// Stop gracefully shuts down the underlying HTTP server.
func (sc *Component) Stop(ctx context.Context) error {
	return sc.server.Stop(ctx)
}

// Health reports healthy once the listener is bound.
func (sc *Component) Health(context.Context) component.Health {
	sc.server.mu.RLock()
	bound := sc.server.listener != nil
	sc.server.mu.RUnlock()
	if !bound {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "listener not bound"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy, Message: sc.server.Addr()}
}

// Describe returns summary info for the startup display.
func (sc *Component) Describe() component.Description {
	cfg := sc.server.config
	return component.Description{
		Name:    "HTTP Server",
		Type:    "server",
		Details: fmt.Sprintf("%s:%d (h2c)", cfg.Host, cfg.Port),
		Port:    cfg.Port,
	}
}

// Routes returns mounted handlers and registered Gin routes, application
// routes first.
func (sc *Component) Routes() []component.Route {
	sc.server.mu.RLock()
	routes := append([]component.Route(nil), sc.server.mounts...)
	sc.server.mu.RUnlock()

	ginRoutes := sc.server.engine.Routes()

	sort.Slice(ginRoutes, func(i, j int) bool {
		iSys, jSys := systemPaths[ginRoutes[i].Path], systemPaths[ginRoutes[j].Path]
		if iSys != jSys {
			return !iSys
		}
		if ginRoutes[i].Path != ginRoutes[j].Path {
			return ginRoutes[i].Path < ginRoutes[j].Path
		}
		return ginRoutes[i].Method < ginRoutes[j].Method
	})

	for _, r := range ginRoutes {
		routes = append(routes, component.Route{
			Method:  r.Method,
			Path:    r.Path,
			Handler: handlerName(r.Handler),
		})
	}
	return routes
}

// handlerName shortens Gin's fully qualified handler names:
// "github.com/kbukum/pingstream/sse.(*Hub).Handle-fm" becomes "sse.Hub.Handle"
// and "github.com/kbukum/pingstream/server/endpoint.Health.func1" becomes
// "endpoint.Health".
func handlerName(full string) string {
	name := strings.TrimSuffix(full, "-fm")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")

	parts := strings.Split(name, ".")
	for len(parts) > 2 && strings.HasPrefix(parts[len(parts)-1], "func") {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}
