package server

import (
	"fmt"

	"github.com/kbukum/pingstream/server/middleware"
	"github.com/kbukum/pingstream/util"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string                     `yaml:"host" mapstructure:"host"`
	Port         int                        `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  int                        `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int                        `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds, cleared for event streams
	IdleTimeout  int                        `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	MaxBodySize  string                     `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "1MB"
	ForceHTTPS   bool                       `yaml:"force_https" mapstructure:"force_https"`
	Compression  bool                       `yaml:"compression" mapstructure:"compression"`
	PublicDir    string                     `yaml:"public_dir" mapstructure:"public_dir"`
	CORS         middleware.CORSConfig      `yaml:"cors" mapstructure:"cors"`
	Security     middleware.SecurityConfig  `yaml:"security" mapstructure:"security"`
	RateLimit    middleware.RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DefaultPort matches the PORT fallback of the original service.
const DefaultPort = 3000

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
	if c.PublicDir == "" {
		c.PublicDir = "public"
	}
	if c.RateLimit.Multiple == 0 {
		c.RateLimit.Multiple = 1
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("server.read_timeout must be non-negative (got: %d)", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must be non-negative (got: %d)", c.IdleTimeout)
	}
	if _, err := util.ParseSize(c.MaxBodySize); err != nil {
		return fmt.Errorf("server.max_body_size: %w", err)
	}
	if c.RateLimit.Multiple < 0 {
		return fmt.Errorf("server.rate_limit.multiple must be non-negative (got: %d)", c.RateLimit.Multiple)
	}
	return nil
}
