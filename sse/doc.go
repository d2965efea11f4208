// Package sse implements the ping event source: an HTTP handler that streams
// a Server-Sent Events frame "data: ping <epoch-ms>" on a fixed period to
// every accepted client.
//
// Each accepted request owns one Session with its own SessionTimer. The
// timer is armed when the stream opens and disarmed exactly once when the
// request context ends, the client stops accepting writes, or the Hub shuts
// down. Sessions share no state besides the Hub's bookkeeping.
//
//	hub := sse.NewHub(cfg.SSE, sse.WithMetrics(metrics))
//	srv.Handle("GET "+cfg.SSE.Path, hub)
//	srv.OnShutdown(hub.CloseSessions)
package sse
