package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/pingstream/component"
	"github.com/kbukum/pingstream/logger"
)

const componentName = "telemetry"

var (
	_ component.Component   = (*Telemetry)(nil)
	_ component.Describable = (*Telemetry)(nil)
)

// Telemetry is a component owning the tracer and meter providers.
type Telemetry struct {
	cfg     Config
	svc     ServiceInfo
	readers []sdkmetric.Reader

	mu  sync.RWMutex
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
	log *logger.Logger
}

// NewTelemetry creates the telemetry component. Extra readers are attached to
// the meter provider in addition to the OTLP exporter.
func NewTelemetry(cfg Config, svc ServiceInfo, readers ...sdkmetric.Reader) *Telemetry {
	cfg.ApplyDefaults()
	return &Telemetry{
		cfg:     cfg,
		svc:     svc,
		readers: readers,
		log:     logger.WithComponent(componentName),
	}
}

// Name returns the component name.
func (t *Telemetry) Name() string { return componentName }

// Start builds both providers and installs them globally.
func (t *Telemetry) Start(ctx context.Context) error {
	tp, err := NewTracerProvider(ctx, t.cfg, t.svc)
	if err != nil {
		return fmt.Errorf("tracer provider: %w", err)
	}
	mp, err := NewMeterProvider(ctx, t.cfg, t.svc, t.readers...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("meter provider: %w", err)
	}

	installTracerProvider(tp)
	otel.SetMeterProvider(mp)

	t.mu.Lock()
	t.tp, t.mp = tp, mp
	t.mu.Unlock()

	t.log.Info("Telemetry initialized", logger.Fields(
		"export", t.cfg.Enabled,
		logger.FieldEndpoint, t.cfg.Endpoint,
		"sample_rate", t.cfg.SampleRate,
	))
	return nil
}

// Stop flushes and shuts down both providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	t.mu.Lock()
	tp, mp := t.tp, t.mp
	t.tp, t.mp = nil, nil
	t.mu.Unlock()

	var errs []error
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Health reports whether the providers are installed.
func (t *Telemetry) Health(context.Context) component.Health {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.tp == nil || t.mp == nil {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "providers not started"}
	}
	msg := "export disabled"
	if t.cfg.Enabled {
		msg = "exporting to " + t.cfg.Endpoint
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy, Message: msg}
}

// Describe returns summary info for the startup display.
func (t *Telemetry) Describe() component.Description {
	details := "OpenTelemetry (no export)"
	if t.cfg.Enabled {
		details = "OpenTelemetry OTLP/HTTP " + t.cfg.Endpoint
	}
	return component.Description{Name: "Telemetry", Type: "telemetry", Details: details}
}
