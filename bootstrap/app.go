package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/pingstream/component"
	"github.com/kbukum/pingstream/logger"
)

// Hook runs at a fixed point of the lifecycle. A failing OnReady hook aborts
// startup; OnStop hook errors are logged and returned from Run.
type Hook func(ctx context.Context) error

// App owns the component registry and drives start, serve and stop.
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	shutdownTimeout time.Duration
	summaryOut      io.Writer

	onReady []Hook
	onStop  []Hook
}

// NewApp applies defaults, validates cfg and sets up logging. Nothing is
// started until Run or RunTask.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()

	o := appOptions{
		shutdownTimeout: base.ShutdownTimeout,
		summaryOut:      os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		logger.Init(&base.Logging)
		log = logger.GetGlobalLogger()
	}

	return &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		Logger:          log,
		Summary:         NewSummary(base.Name, base.Version),
		shutdownTimeout: o.shutdownTimeout,
		summaryOut:      o.summaryOut,
	}, nil
}

// RegisterComponent adds c to the registry. Registration order is start order.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnReady registers hooks that run once every component has started, right
// before the summary is printed.
func (a *App[C]) OnReady(hooks ...Hook) {
	a.onReady = append(a.onReady, hooks...)
}

// OnStop registers hooks that run at shutdown before any component stops,
// while open streams are still being served.
func (a *App[C]) OnStop(hooks ...Hook) {
	a.onStop = append(a.onStop, hooks...)
}

// ReadyCheck returns an error naming every component that is not healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// Run starts every component and blocks until SIGINT/SIGTERM or until ctx
// is done, then shuts down within the configured timeout.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.waitForSignal(ctx)
	return a.stop()
}

// RunTask runs task between startup and shutdown. The task's context ends on
// SIGINT/SIGTERM.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	taskCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	taskErr := task(taskCtx)
	cancel()

	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("Starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.ErrorFields("ready_check", err))
	}
	for i, h := range a.onReady {
		if err := h(ctx); err != nil {
			return fmt.Errorf("onReady hook %d failed: %w", i, err)
		}
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.Write(a.summaryOut, a.Components)
	return nil
}

func (a *App[C]) waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal", logger.Fields("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
	}
}

func (a *App[C]) stop() error {
	a.Logger.Info("Shutting down application", logger.Fields("timeout", a.shutdownTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for i, h := range a.onStop {
		if err := h(ctx); err != nil {
			a.Logger.Error("OnStop hook error", logger.ErrorFields("on_stop", err))
			shutdownErr = fmt.Errorf("onStop hook %d failed: %w", i, err)
		}
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.ErrorFields("stop_components", err))
		shutdownErr = err
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}
