package observability

import (
	"fmt"
	"time"
)

// Config configures OpenTelemetry export.
type Config struct {
	// Enabled turns OTLP export on. Instruments are always created.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g. "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// SampleRate is the trace sampling ratio (0.0 to 1.0).
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	// MetricInterval is the metric export period.
	MetricInterval time.Duration `yaml:"metric_interval" mapstructure:"metric_interval"`
	// Prometheus mounts a scrape endpoint at PrometheusPath.
	Prometheus bool `yaml:"prometheus" mapstructure:"prometheus"`
}

// ServiceInfo identifies the service on exported telemetry.
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
}

// ApplyDefaults fills unset fields with development defaults.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 15 * time.Second
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be between 0 and 1 (got: %v)", c.SampleRate)
	}
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("observability.endpoint is required when export is enabled")
	}
	return nil
}
