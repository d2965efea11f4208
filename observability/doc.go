// Package observability wires OpenTelemetry tracing and metrics into
// pingstream services.
//
// The Telemetry component installs the global tracer and meter providers on
// Start and flushes them on Stop. When export is disabled the providers are
// still installed without exporters, so spans and instruments stay cheap
// no-ops for callers.
//
//	tel := observability.NewTelemetry(cfg.Observability, observability.ServiceInfo{Name: "pingserver"})
//	_ = app.RegisterComponent(tel)
//
//	ctx, span := observability.StartSpan(ctx, "sse.session")
//	defer span.End()
package observability
