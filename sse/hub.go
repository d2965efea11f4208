package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/pingstream/errors"
	"github.com/kbukum/pingstream/logger"
)

// ContentType is the media type of the stream and the only Accept value the
// Hub serves.
const ContentType = "text/event-stream"

// BadRequestBody is written, as plain text, to requests that do not ask for
// an event stream.
const BadRequestBody = "This endpoint is designed for SSE"

// ErrHubClosed is the cancellation cause of sessions ended by the Hub.
var ErrHubClosed = errors.New("sse: hub closed")

type liveSession struct {
	cancel context.CancelCauseFunc
	wg     *sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

// WithClock replaces the wall clock. Tests use it to drive ticks by hand.
func WithClock(c Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// WithMetrics records session instruments.
func WithMetrics(m *Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithLogger sets the logger sessions log through.
func WithLogger(l *logger.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// Hub is the http.Handler serving the ping stream. It gives every accepted
// request its own Session and keeps a cancel func per live session so the
// streams can be ended on shutdown.
type Hub struct {
	cfg     Config
	clock   Clock
	metrics *Metrics
	log     *logger.Logger

	mu       sync.Mutex
	sessions map[string]liveSession
	closed   bool
	// wg tracks the sessions admitted since the last Open. Each generation
	// gets its own WaitGroup so a Shutdown that timed out never shares one
	// with sessions admitted after a later Open.
	wg *sync.WaitGroup

	total  atomic.Uint64
	frames atomic.Uint64
}

// NewHub creates a Hub serving pings on cfg.Interval.
func NewHub(cfg Config, opts ...Option) *Hub {
	cfg.ApplyDefaults()
	h := &Hub{
		cfg:      cfg,
		clock:    SystemClock{},
		sessions: make(map[string]liveSession),
		wg:       new(sync.WaitGroup),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.WithComponent("sse")
	}
	return h
}

// Config returns the configuration the Hub was built with.
func (h *Hub) Config() Config { return h.cfg }

// ServeHTTP validates the request, opens the stream and runs a Session until
// the client leaves or the Hub closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") != ContentType {
		h.rejectNotSSE(w)
		return
	}

	// a HEAD response has no body, so a session would tick into nothing
	if r.Method == http.MethodHead {
		setStreamHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
		return
	}

	id := uuid.NewString()
	ctx, ok := h.register(r.Context(), id)
	if !ok {
		apperrors.WriteJSON(w, apperrors.ServiceUnavailable("event stream"))
		return
	}
	defer h.unregister(id)

	if !canFlush(w) {
		h.log.Error("Streaming not supported", logger.Fields(logger.FieldSessionID, id))
		apperrors.WriteJSON(w, apperrors.StreamingUnsupported())
		return
	}
	// server read/write timeouts would otherwise end the stream
	rc := http.NewResponseController(w)
	deadlines := map[string]func(time.Time) error{
		"read":  rc.SetReadDeadline,
		"write": rc.SetWriteDeadline,
	}
	for name, reset := range deadlines {
		if err := reset(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.log.Warn("Could not clear "+name+" deadline", logger.Fields(
				logger.FieldSessionID, id,
				logger.FieldError, err.Error(),
			))
		}
	}

	setStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.log.Debug("Client gone before first frame", logger.Fields(
			logger.FieldSessionID, id,
			logger.FieldError, err.Error(),
		))
		return
	}

	session := newSession(id, r.RemoteAddr, flushSink{w: w, rc: rc}, h.clock, h.cfg.Interval, h.log, h.metrics)
	h.total.Add(1)
	_ = session.Run(ctx)
	h.frames.Add(session.Frames())
}

func setStreamHeaders(header http.Header) {
	header.Set("Content-Type", ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
}

// rejectNotSSE answers with the plain-text 400 and opens no stream.
func (h *Hub) rejectNotSSE(w http.ResponseWriter) {
	appErr := apperrors.NotEventStream(BadRequestBody)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(appErr.HTTPStatus)
	_, _ = w.Write([]byte(appErr.Message))
}

func (h *Hub) register(parent context.Context, id string) (context.Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ctx, cancel := context.WithCancelCause(parent)
	h.wg.Add(1)
	h.sessions[id] = liveSession{cancel: cancel, wg: h.wg}
	return ctx, true
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	live, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		live.cancel(context.Canceled)
		live.wg.Done()
	}
}

// Open makes the Hub accept streams again after Shutdown. Sessions that
// outlived a timed-out Shutdown are not waited for by later Shutdowns.
func (h *Hub) Open() {
	h.mu.Lock()
	if h.closed {
		h.wg = new(sync.WaitGroup)
		h.closed = false
	}
	h.mu.Unlock()
}

// CloseSessions stops accepting streams and cancels every live session
// without waiting for them to finish. It is safe to use as an
// http.Server shutdown hook.
func (h *Hub) CloseSessions() {
	h.mu.Lock()
	h.closed = true
	cancels := make([]context.CancelCauseFunc, 0, len(h.sessions))
	for _, live := range h.sessions {
		cancels = append(cancels, live.cancel)
	}
	h.mu.Unlock()

	for _, cancel := range cancels {
		cancel(ErrHubClosed)
	}
	if len(cancels) > 0 {
		h.log.Info("Closing SSE sessions", logger.Fields("sessions", len(cancels)))
	}
}

// Shutdown cancels every live session and waits until all of them have
// returned or ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.CloseSessions()
	h.mu.Lock()
	wg := h.wg
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d sse sessions: %w", h.Active(), ctx.Err())
	}
}

// Accepting reports whether new streams are admitted.
func (h *Hub) Accepting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// Active returns the number of live sessions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Stats reports counters for the /metrics endpoint.
func (h *Hub) Stats() map[string]any {
	return map[string]any{
		"sse_sessions_active": h.Active(),
		"sse_sessions_total":  h.total.Load(),
		"sse_frames_sent":     h.frames.Load(),
	}
}

// canFlush walks the Unwrap chain the way http.ResponseController does.
func canFlush(w http.ResponseWriter) bool {
	for {
		switch t := w.(type) {
		case interface{ FlushError() error }, http.Flusher:
			return true
		case interface{ Unwrap() http.ResponseWriter }:
			w = t.Unwrap()
		default:
			return false
		}
	}
}
