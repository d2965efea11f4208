package sse

import (
	"errors"
	"sync"
	"time"
)

// ErrTimerDisarmed is returned when arming a timer that was already disarmed.
var ErrTimerDisarmed = errors.New("sse: timer already disarmed")

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock supplies the current time and tickers. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// NewTicker wraps time.NewTicker.
func (SystemClock) NewTicker(d time.Duration) Ticker { return systemTicker{time.NewTicker(d)} }

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// SessionTimer is the periodic timer owned by one session. Arm starts it;
// Disarm stops it and may be called any number of times from any goroutine.
type SessionTimer struct {
	clock    Clock
	interval time.Duration
	onDisarm func()

	mu       sync.Mutex
	ticker   Ticker
	disarmed bool
	once     sync.Once
}

// NewSessionTimer creates an unarmed timer. onDisarm, if set, runs once when
// the timer is released.
func NewSessionTimer(clock Clock, interval time.Duration, onDisarm func()) *SessionTimer {
	return &SessionTimer{clock: clock, interval: interval, onDisarm: onDisarm}
}

// Arm starts the ticker and returns its channel. Arming an armed timer
// returns the same channel.
func (t *SessionTimer) Arm() (<-chan time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disarmed {
		return nil, ErrTimerDisarmed
	}
	if t.ticker == nil {
		t.ticker = t.clock.NewTicker(t.interval)
	}
	return t.ticker.C(), nil
}

// Disarm stops the ticker. It reports whether this call released the timer;
// later calls are no-ops.
func (t *SessionTimer) Disarm() bool {
	released := false
	t.once.Do(func() {
		t.mu.Lock()
		t.disarmed = true
		if t.ticker != nil {
			t.ticker.Stop()
		}
		t.mu.Unlock()
		released = true
		if t.onDisarm != nil {
			t.onDisarm()
		}
	})
	return released
}

// Armed reports whether the ticker is running.
func (t *SessionTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker != nil && !t.disarmed
}
