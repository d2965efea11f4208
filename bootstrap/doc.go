// Package bootstrap orchestrates the lifecycle of pingstream services.
//
// An App is built from a typed configuration that embeds
// config.ServiceConfig. It initializes logging, starts registered components
// in order, runs the OnReady hooks, blocks until SIGINT/SIGTERM, then runs the
// OnStop hooks and stops components in reverse order within
// ServiceConfig.ShutdownTimeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	_ = app.RegisterComponent(hub)
//	_ = app.RegisterComponent(httpServer)
//	if err := app.Run(ctx); err != nil {
//	    logger.Fatal("server exited", logger.ErrorFields("run", err))
//	}
package bootstrap
