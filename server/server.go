package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/pingstream/component"
	"github.com/kbukum/pingstream/logger"
	"github.com/kbukum/pingstream/observability"
	"github.com/kbukum/pingstream/server/endpoint"
	"github.com/kbukum/pingstream/server/middleware"
)

// Server is an HTTP server backed by Gin. Server-level middleware wraps the
// root ServeMux, so it also covers handlers mounted with Handle.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger

	mu          sync.RWMutex
	middlewares []middleware.Middleware
	mounts      []component.Route
	listener    net.Listener
}

// New creates a new Server. No middleware is applied yet; call
// ApplyMiddleware or Use before Start.
func New(cfg Config, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	// Trailing slashes are handled by middleware.TrailingSlash for every path.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	mux := http.NewServeMux()
	mux.Handle("/", engine)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
			ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
		},
		engine: engine,
		mux:    mux,
		config: cfg,
		log:    log.WithComponent("server"),
	}
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handle mounts an http.Handler at the given ServeMux pattern, e.g.
// "GET /sse/ev1". Handlers mounted here bypass Gin's response writer, which
// long-lived streams rely on for write deadline control.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)

	method, path := "ANY", pattern
	if m, p, ok := strings.Cut(pattern, " "); ok {
		method, path = m, strings.TrimSpace(p)
	}
	s.mu.Lock()
	s.mounts = append(s.mounts, component.Route{Method: method, Path: path, Handler: strings.TrimPrefix(fmt.Sprintf("%T", handler), "*")})
	s.mu.Unlock()

	s.log.Debug("Handler mounted", logger.Fields("pattern", pattern))
}

// OnShutdown registers f to run when Stop begins. Long-lived handlers use it
// to end their streams so shutdown does not wait on them.
func (s *Server) OnShutdown(f func()) {
	s.httpServer.RegisterOnShutdown(f)
}

// Use appends server-level middleware. The first registered runs outermost.
func (s *Server) Use(mws ...middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mws...)
}

// ApplyMiddleware installs the standard stack: recovery, request ID,
// tracing, request logging, HTTPS redirect, trailing-slash redirect,
// security headers, CORS, compression, tiered rate limiting and the body
// size limit. Optional parts follow the config.
func (s *Server) ApplyMiddleware(metrics *observability.RequestMetrics) error {
	base := logger.GetGlobalLogger().WithComponent("http")

	mws := []middleware.Middleware{
		middleware.Recovery(base),
		middleware.RequestID(),
		middleware.Tracing(metrics),
		middleware.RequestLogger(base),
	}
	if s.config.ForceHTTPS {
		mws = append(mws, middleware.HTTPSRedirect())
	}
	mws = append(mws,
		middleware.TrailingSlash(),
		middleware.SecurityHeaders(s.config.Security),
		middleware.CORS(&s.config.CORS),
	)
	if s.config.Compression {
		gz, err := middleware.Compression(1024)
		if err != nil {
			return err
		}
		mws = append(mws, gz)
	}
	if s.config.RateLimit.Enabled {
		mws = append(mws, middleware.RateLimit(s.config.RateLimit))
	}
	mws = append(mws, middleware.BodySizeLimit(s.config.MaxBodySize))

	s.Use(mws...)
	return nil
}

// RegisterDefaultEndpoints registers /health, /liveness, /readiness,
// /metrics and /version.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker, stats endpoint.StatsProvider) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/liveness", endpoint.Liveness(serviceName))
	s.engine.GET("/readiness", endpoint.Readiness(serviceName, checker))
	s.engine.GET("/metrics", endpoint.Metrics(stats))
	s.engine.GET("/version", endpoint.Version(serviceName))
}

// Handler returns the fully wrapped root handler: middleware around the
// ServeMux, served over HTTP/1.1 or HTTP/2 cleartext.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	chain := middleware.Chain(s.middlewares...)
	s.mu.RUnlock()

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          time.Duration(s.config.IdleTimeout) * time.Second,
	}
	return h2c.NewHandler(chain(s.mux), h2s)
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(_ context.Context) error {
	s.httpServer.Handler = s.Handler()

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("HTTP server listening", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Stop gracefully shuts down the server. Hooks registered with OnShutdown
// run as soon as shutdown begins, so open event streams end instead of
// holding it up; connections still open after the timeout are closed.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		_ = s.httpServer.Close()
		s.log.Error("Server shutdown error", logger.ErrorFields("shutdown", err))
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("HTTP server shut down")
	return nil
}

// Addr returns the bound listen address once started, otherwise the
// configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
