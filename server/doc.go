// Package server provides the Gin-based HTTP server that hosts the event
// stream, the demo page, static assets and the operational endpoints.
//
// Middleware is applied around the root ServeMux rather than inside Gin, so
// streaming handlers see the same stack as JSON routes. The response writer
// wrappers keep http.Flusher and Unwrap intact for SSE.
//
//	srv := server.New(cfg.Server, log)
//	if err := srv.ApplyMiddleware(metrics); err != nil { ... }
//	srv.RegisterDefaultEndpoints("pingserver", registry.HealthAll, hub.Stats)
//	srv.GinEngine().GET("/sse/ev1", gin.WrapH(hub))
//	_ = app.RegisterComponent(server.NewComponent(srv))
package server
