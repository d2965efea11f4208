package main

import (
	"github.com/kbukum/pingstream/config"
	"github.com/kbukum/pingstream/observability"
	"github.com/kbukum/pingstream/server"
	"github.com/kbukum/pingstream/sse"
	"github.com/kbukum/pingstream/validation"
)

const serviceName = "pingserver"

// AppConfig is the pingserver configuration. Every key can be overridden by
// an environment variable: SERVER_PORT, SSE_INTERVAL, LOGGING_LEVEL, and the
// bare PORT for the listen port.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	SSE           sse.Config           `yaml:"sse" mapstructure:"sse"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills unset values in every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.SSE.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks struct tags first, then each section's own rules.
func (c *AppConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.SSE.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// loadConfig reads config.yml, .env and the environment.
func loadConfig() (*AppConfig, error) {
	var cfg AppConfig
	err := config.LoadConfig(serviceName, &cfg,
		config.WithDefault("name", serviceName),
		config.WithDefault("server.compression", true),
		config.WithDefault("server.security.csp_report_only", true),
		config.WithDefault("server.rate_limit.enabled", true),
		config.WithDefault("observability.prometheus", true),
		config.WithEnvAlias("PORT", "server.port"),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
