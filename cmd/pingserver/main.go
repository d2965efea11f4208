// Command pingserver serves the ping event stream, the demo page and the
// operational endpoints.
package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/pingstream/bootstrap"
	"github.com/kbukum/pingstream/component"
	"github.com/kbukum/pingstream/logger"
	"github.com/kbukum/pingstream/observability"
	"github.com/kbukum/pingstream/server"
	"github.com/kbukum/pingstream/sse"
	"github.com/kbukum/pingstream/ui"
	"github.com/kbukum/pingstream/version"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", logger.ErrorFields("load_config", err))
	}
	if cfg.Version == "" {
		cfg.Version = version.Short()
	}

	app, err := newApp(cfg)
	if err != nil {
		logger.Fatal("Failed to build application", logger.ErrorFields("build", err))
	}
	if err := app.Run(context.Background()); err != nil {
		logger.Fatal("Application exited with error", logger.ErrorFields("run", err))
	}
}

// newApp wires telemetry, the event source and the HTTP server. Components
// stop in reverse: the server first, whose shutdown hook ends open streams,
// then the hub, then telemetry.
func newApp(cfg *AppConfig, opts ...bootstrap.Option) (*bootstrap.App[*AppConfig], error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}

	var (
		prom    *observability.Prometheus
		readers []sdkmetric.Reader
	)
	if cfg.Observability.Prometheus {
		if prom, err = observability.NewPrometheus(); err != nil {
			return nil, err
		}
		readers = append(readers, prom.Reader())
	}
	telemetry := observability.NewTelemetry(cfg.Observability, observability.ServiceInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Environment: cfg.Environment,
	}, readers...)
	requestMetrics, err := observability.NewRequestMetrics(observability.Meter())
	if err != nil {
		return nil, err
	}
	sseMetrics, err := sse.NewMetrics(observability.Meter())
	if err != nil {
		return nil, err
	}

	events := sse.NewComponent(cfg.SSE,
		sse.WithMetrics(sseMetrics),
		sse.WithLogger(app.Logger.WithComponent("sse")),
	)
	hub := events.Hub()

	srv := server.New(cfg.Server, app.Logger)
	if err := srv.ApplyMiddleware(requestMetrics); err != nil {
		return nil, fmt.Errorf("middleware: %w", err)
	}
	srv.Handle("GET "+cfg.SSE.Path, hub)
	srv.OnShutdown(hub.CloseSessions)
	if err := ui.Register(srv.GinEngine(), cfg.SSE.Path); err != nil {
		return nil, err
	}
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll, hub.Stats)
	if prom != nil {
		srv.GinEngine().GET(observability.PrometheusPath, gin.WrapH(prom.Handler()))
	}
	srv.ServeStatic(cfg.Server.PublicDir)

	for _, c := range []component.Component{telemetry, events, server.NewComponent(srv)} {
		if err := app.RegisterComponent(c); err != nil {
			return nil, err
		}
	}

	app.OnStop(func(context.Context) error {
		app.Logger.Info("Event stream totals", hub.Stats())
		return nil
	})
	app.OnReady(func(context.Context) error {
		app.Summary.AddEndpoint("http://" + srv.Addr() + "/")
		app.Summary.AddEndpoint("http://" + srv.Addr() + cfg.SSE.Path)
		return nil
	})
	return app, nil
}
