package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kbukum/pingstream/logger"
	"github.com/kbukum/pingstream/observability"
)

// Reasons a session ends. Run wraps one of them with the underlying cause.
var (
	ErrClientGone       = errors.New("sse: client gone")
	ErrSessionCancelled = errors.New("sse: session cancelled")
	ErrSessionPanic     = errors.New("sse: session panicked")
)

// Sink receives encoded frames. A non-nil error means the client can no
// longer be written to.
type Sink interface {
	Write(frame []byte) error
}

// SessionState is the lifecycle state of a Session.
type SessionState int32

const (
	SessionPending SessionState = iota
	SessionOpen
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionOpen:
		return "open"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one open event stream: a sink, the timer driving it and a few
// counters for observation. A Session is run by exactly one goroutine.
type Session struct {
	ID         string
	RemoteAddr string

	sink    Sink
	clock   Clock
	timer   *SessionTimer
	log     *logger.Logger
	metrics *Metrics

	state  atomic.Int32
	frames atomic.Uint64
	lastMs int64
}

func newSession(id, remoteAddr string, sink Sink, clock Clock, interval time.Duration, log *logger.Logger, metrics *Metrics) *Session {
	log = log.WithFields(logger.Fields(
		logger.FieldSessionID, id,
		logger.FieldRemoteAddr, remoteAddr,
	))
	s := &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		sink:       sink,
		clock:      clock,
		log:        log,
		metrics:    metrics,
	}
	s.timer = NewSessionTimer(clock, interval, func() {
		s.metrics.timerDisarmed(context.Background())
	})
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Frames returns the number of frames delivered so far.
func (s *Session) Frames() uint64 { return s.frames.Load() }

// Timer exposes the session's timer.
func (s *Session) Timer() *SessionTimer { return s.timer }

// Run arms the timer and writes one ping frame per tick until ctx is done or
// a write fails. The timer is disarmed before Run returns. The returned error
// wraps ErrSessionCancelled, ErrClientGone or ErrSessionPanic; Run never
// panics.
func (s *Session) Run(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSSESession)
	span.SetAttributes(attribute.String("sse.session_id", s.ID))

	start := s.clock.Now()
	s.state.Store(int32(SessionOpen))
	s.metrics.sessionOpened(ctx)
	s.log.Debug("SSE session opened")

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrSessionPanic, rec)
		}
		s.timer.Disarm()
		s.state.Store(int32(SessionClosed))
		s.metrics.sessionClosed(ctx)

		frames := s.frames.Load()
		span.SetAttributes(attribute.Int64("sse.frames", int64(frames)))
		if errors.Is(err, ErrSessionPanic) {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		fields := logger.Fields(
			"frames", frames,
			logger.FieldDuration, s.clock.Now().Sub(start).Milliseconds(),
			logger.FieldReason, err.Error(),
		)
		if errors.Is(err, ErrSessionPanic) {
			s.log.Error("SSE session closed", fields)
		} else {
			s.log.Debug("SSE session closed", fields)
		}
	}()

	ticks, err := s.timer.Arm()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionCancelled, err)
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrSessionCancelled, context.Cause(ctx))
		case <-ticks:
			// a tick racing cancellation must not produce a frame
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrSessionCancelled, context.Cause(ctx))
			}
			if werr := s.sink.Write(s.nextPing().Encode()); werr != nil {
				s.timer.Disarm()
				s.metrics.writeFailed(ctx)
				return fmt.Errorf("%w: %w", ErrClientGone, werr)
			}
			s.frames.Add(1)
			s.metrics.frameSent(ctx)
		}
	}
}

// nextPing stamps the frame with the current time, never going backwards
// within the session even if the wall clock does.
func (s *Session) nextPing() Message {
	now := s.clock.Now()
	ms := now.UnixMilli()
	if ms < s.lastMs {
		now = time.UnixMilli(s.lastMs)
		ms = s.lastMs
	}
	s.lastMs = ms
	return Ping(now)
}

// flushSink writes to an http.ResponseWriter and flushes after every frame.
type flushSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (f flushSink) Write(frame []byte) error {
	if _, err := f.w.Write(frame); err != nil {
		return err
	}
	return f.rc.Flush()
}
