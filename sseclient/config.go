package sseclient

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/pingstream/validation"
)

const defaultConnectTimeout = 10 * time.Second

// Config configures a Subscription.
type Config struct {
	// URL is the event stream endpoint.
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`

	// ConnectTimeout bounds the wait for response headers. Defaults to 10s.
	// It does not limit how long the stream stays open.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// Headers are sent with the request in addition to Accept.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("sseclient: invalid url %q: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("sseclient: url must be http or https (got: %q)", c.URL)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("sseclient: connect_timeout must be positive")
	}
	return nil
}
