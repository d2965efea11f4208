package sse

import (
	"context"
	"fmt"

	"github.com/kbukum/pingstream/component"
)

// Component wraps a Hub as a lifecycle-managed component. Stopping it ends
// every live stream.
type Component struct {
	hub *Hub
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates the component around a new Hub.
func NewComponent(cfg Config, opts ...Option) *Component {
	return &Component{hub: NewHub(cfg, opts...)}
}

// Hub returns the underlying handler.
func (c *Component) Hub() *Hub { return c.hub }

// Name returns the component name.
func (c *Component) Name() string { return "sse" }

// Start lets the Hub accept streams.
func (c *Component) Start(_ context.Context) error {
	c.hub.Open()
	return nil
}

// Stop cancels all sessions and waits for them until ctx is done.
func (c *Component) Stop(ctx context.Context) error {
	return c.hub.Shutdown(ctx)
}

// Health reports the number of open streams. A hub that turns new streams
// away is degraded, not unhealthy: the process still serves everything else.
func (c *Component) Health(_ context.Context) component.Health {
	h := component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d sessions open", c.hub.Active()),
	}
	if !c.hub.Accepting() {
		h.Status = component.StatusDegraded
		h.Message = "not accepting streams"
	}
	return h
}

// Describe returns summary info for the startup display.
func (c *Component) Describe() component.Description {
	cfg := c.hub.Config()
	return component.Description{
		Name:    "SSE Hub",
		Type:    "sse",
		Details: fmt.Sprintf("Path: %s, interval: %s", cfg.Path, cfg.Interval),
	}
}
