package bootstrap

import (
	"github.com/kbukum/pingstream/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.ServiceConfig (value embedding) satisfies it
// through promoted methods; types may override ApplyDefaults and Validate to
// cover their own sections.
//
//	type ServerConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    SSE sse.Config `yaml:"sse" mapstructure:"sse"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
