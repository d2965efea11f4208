package sse

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the event source instruments. A nil *Metrics records nothing.
type Metrics struct {
	sessionsActive metric.Int64UpDownCounter
	sessionsTotal  metric.Int64Counter
	framesSent     metric.Int64Counter
	writeFailures  metric.Int64Counter
	timersDisarmed metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	sessionsActive, err := meter.Int64UpDownCounter("sse.sessions.active",
		metric.WithDescription("Number of open event streams"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sse.sessions.active: %w", err)
	}
	sessionsTotal, err := meter.Int64Counter("sse.sessions.total",
		metric.WithDescription("Event streams opened"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sse.sessions.total: %w", err)
	}
	framesSent, err := meter.Int64Counter("sse.frames.sent",
		metric.WithDescription("Frames written and flushed to clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sse.frames.sent: %w", err)
	}
	writeFailures, err := meter.Int64Counter("sse.write.failures",
		metric.WithDescription("Frame writes that failed because the client was gone"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sse.write.failures: %w", err)
	}
	timersDisarmed, err := meter.Int64Counter("sse.timers.disarmed",
		metric.WithDescription("Session timers released"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sse.timers.disarmed: %w", err)
	}

	return &Metrics{
		sessionsActive: sessionsActive,
		sessionsTotal:  sessionsTotal,
		framesSent:     framesSent,
		writeFailures:  writeFailures,
		timersDisarmed: timersDisarmed,
	}, nil
}

func (m *Metrics) sessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
	m.sessionsTotal.Add(ctx, 1)
}

func (m *Metrics) sessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
}

func (m *Metrics) frameSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1)
}

func (m *Metrics) writeFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.writeFailures.Add(ctx, 1)
}

func (m *Metrics) timerDisarmed(ctx context.Context) {
	if m == nil {
		return
	}
	m.timersDisarmed.Add(ctx, 1)
}
