package sseclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/pingstream/logger"
)

// State is the lifecycle state of a Subscription. Closed states are terminal.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosedNormal
	StateClosedError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedNormal:
		return "closed"
	case StateClosedError:
		return "closed-error"
	default:
		return "unknown"
	}
}

// Closed reports whether s is terminal.
func (s State) Closed() bool { return s == StateClosedNormal || s == StateClosedError }

// Handler is called with every received event, from the reader goroutine.
type Handler func(Event)

// Option configures a Subscription.
type Option func(*Subscription)

// WithHTTPClient sets the client used for the request. Its Timeout must be
// zero, or it will cut the stream short.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Subscription) { s.client = c }
}

// WithHandler registers the per-event callback.
func WithHandler(h Handler) Option {
	return func(s *Subscription) { s.handler = h }
}

// WithLogger sets the logger transport failures are reported through.
func WithLogger(l *logger.Logger) Option {
	return func(s *Subscription) { s.log = l }
}

// Subscription is one connection to an event stream plus the latest payload
// received on it.
type Subscription struct {
	cfg     Config
	client  *http.Client
	handler Handler
	log     *logger.Logger

	mu        sync.Mutex
	state     State
	latest    Event
	hasLatest bool
	received  uint64
	err       error
	cancel    context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

// New creates an idle Subscription.
func New(cfg Config, opts ...Option) (*Subscription, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Subscription{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.log == nil {
		s.log = logger.WithComponent("sseclient")
	}
	return s, nil
}

// Open connects and starts reading in the background. It returns once the
// response headers are accepted or the attempt failed; a failed attempt
// leaves the subscription in StateClosedError. ctx bounds the lifetime of
// the whole stream.
func (s *Subscription) Open(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state.Closed():
		s.mu.Unlock()
		return ErrClosed
	case s.state != StateIdle:
		s.mu.Unlock()
		return ErrAlreadyOpened
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateConnecting
	s.mu.Unlock()

	resp, err := s.connect(ctx)
	if err != nil {
		if s.State() == StateClosedNormal {
			s.finish()
			return ErrClosed
		}
		s.fail(err)
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		_ = resp.Body.Close()
		s.finish()
		return ErrClosed
	}
	s.state = StateOpen
	s.mu.Unlock()

	s.log.Debug("Subscription open", logger.Fields(logger.FieldEndpoint, s.cfg.URL))
	go s.readLoop(NewReader(resp.Body))
	return nil
}

func (s *Subscription) connect(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("sseclient: building request: %w", err)
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// the timer only guards the wait for headers
	timer := time.AfterFunc(s.cfg.ConnectTimeout, func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		cancel()
	})
	resp, err := s.client.Do(req)
	timedOut := !timer.Stop()
	if err != nil {
		if timedOut {
			return nil, fmt.Errorf("sseclient: no response within %s: %w", s.cfg.ConnectTimeout, err)
		}
		return nil, fmt.Errorf("sseclient: connecting to %s: %w", s.cfg.URL, err)
	}
	if timedOut {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("sseclient: no response within %s: %w", s.cfg.ConnectTimeout, context.DeadlineExceeded)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedContentType, resp.Header.Get("Content-Type"))
	}
	return resp, nil
}

func (s *Subscription) readLoop(r Reader) {
	defer func() {
		_ = r.Close()
		s.finish()
	}()

	for {
		ev, err := r.Next()
		if err != nil {
			if s.State() == StateClosedNormal {
				return
			}
			if errors.Is(err, io.EOF) {
				err = ErrStreamEnded
			}
			s.fail(err)
			return
		}

		s.mu.Lock()
		if s.state != StateOpen {
			s.mu.Unlock()
			return
		}
		s.latest = *ev
		s.hasLatest = true
		s.received++
		handler := s.handler
		s.mu.Unlock()

		if handler != nil {
			handler(*ev)
		}
	}
}

// fail moves a live subscription to StateClosedError.
func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.state.Closed() {
		s.mu.Unlock()
		return
	}
	s.state = StateClosedError
	s.err = err
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.log.Error("Subscription failed", logger.Fields(
		logger.FieldEndpoint, s.cfg.URL,
		logger.FieldError, err.Error(),
	))
	s.finish()
}

func (s *Subscription) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Close releases the connection in any state. It is idempotent and safe to
// call from a Handler. A subscription that already failed stays in
// StateClosedError.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.state.Closed() {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	s.state = StateClosedNormal
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if prev == StateIdle {
		s.finish()
	}
	s.log.Debug("Subscription closed", logger.Fields(logger.FieldEndpoint, s.cfg.URL))
	return nil
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latest returns the most recent event and whether one was received.
func (s *Subscription) Latest() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// Received returns the number of events delivered.
func (s *Subscription) Received() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Err returns the error that ended the subscription, if it failed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the subscription has reached a closed state and its
// reader has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }
