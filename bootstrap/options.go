package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/pingstream/logger"
)

// Option adjusts an App at construction. Options are not generic so one set
// works for every config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	shutdownTimeout time.Duration
	summaryOut      io.Writer
}

// WithLogger replaces the logger built from the config's logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithShutdownTimeout overrides config.ServiceConfig.ShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithSummaryOutput redirects the startup summary; io.Discard silences it.
func WithSummaryOutput(w io.Writer) Option {
	return func(o *appOptions) { o.summaryOut = w }
}
