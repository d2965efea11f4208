package sse

import (
	"fmt"
	"strings"
	"time"
)

// Default values.
const (
	DefaultPath     = "/sse/ev1"
	DefaultInterval = time.Second
)

// Config configures the event source.
type Config struct {
	// Path is the endpoint the stream is mounted on.
	Path string `yaml:"path" mapstructure:"path" validate:"required,startswith=/"`
	// Interval is the ping period.
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=10ms"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("sse.path must start with / (got: %q)", c.Path)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("sse.interval must be positive (got: %s)", c.Interval)
	}
	return nil
}
