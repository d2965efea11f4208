package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusPath is where the scrape handler is mounted.
const PrometheusPath = "/metrics/prometheus"

// Prometheus exposes the meter provider's instruments in the Prometheus text
// format. Its Reader must be handed to NewTelemetry before Start.
type Prometheus struct {
	registry *prometheus.Registry
	reader   sdkmetric.Reader
}

// NewPrometheus creates a private registry with the Go runtime and process
// collectors plus an OTel reader that registers into it.
func NewPrometheus() (*Prometheus, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	return &Prometheus{registry: reg, reader: exporter}, nil
}

// Reader returns the metric reader to attach to the meter provider.
func (p *Prometheus) Reader() sdkmetric.Reader { return p.reader }

// Handler serves the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
