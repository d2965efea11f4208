package sse

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/pingstream/logger"
)

var pingFrame = regexp.MustCompile(`^data: ping (\d+)\n\n$`)

// fakeClock hands out manual tickers and a settable Now.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	created chan *fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, created: make(chan *fakeTicker, 4)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.created <- t
	return t
}

// ticker waits for the session under test to arm its timer.
func (c *fakeClock) ticker(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-c.created:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatal("timer was never armed")
		return nil
	}
}

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Int32
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Add(1) }

func (t *fakeTicker) tick() { t.ch <- time.Time{} }

// spySink records frames and can be told to fail or panic.
type spySink struct {
	mu      sync.Mutex
	frames  []string
	err     error
	panics  bool
	written chan struct{}
}

func newSpySink() *spySink { return &spySink{written: make(chan struct{}, 16)} }

func (s *spySink) Write(frame []byte) error {
	s.mu.Lock()
	if s.panics {
		s.mu.Unlock()
		panic("sink exploded")
	}
	err := s.err
	if err == nil {
		s.frames = append(s.frames, string(frame))
	}
	s.mu.Unlock()
	s.written <- struct{}{}
	return err
}

func (s *spySink) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func (s *spySink) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *spySink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.written:
	case <-time.After(2 * time.Second):
		t.Fatal("no write observed")
	}
}

type runResult struct{ err error }

func startSession(ctx context.Context, s *Session) <-chan runResult {
	done := make(chan runResult, 1)
	go func() { done <- runResult{s.Run(ctx)} }()
	return done
}

func waitRun(t *testing.T, done <-chan runResult) error {
	t.Helper()
	select {
	case r := <-done:
		return r.err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not return")
		return nil
	}
}

func testSession(clock Clock, sink Sink, metrics *Metrics) *Session {
	return newSession("s-1", "127.0.0.1:1234", sink, clock, time.Second, logger.Nop(), metrics)
}

func TestSession_EmitsPingPerTick(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(1_700_000_000_000))
	sink := newSpySink()
	s := testSession(clock, sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := startSession(ctx, s)
	tk := clock.ticker(t)

	for i := 0; i < 3; i++ {
		clock.Set(time.UnixMilli(1_700_000_000_000 + int64(i)*1000))
		tk.tick()
		sink.wait(t)
	}
	cancel()
	if err := waitRun(t, done); !errors.Is(err, ErrSessionCancelled) {
		t.Fatalf("expected ErrSessionCancelled, got %v", err)
	}

	frames := sink.Frames()
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		m := pingFrame.FindStringSubmatch(f)
		if m == nil {
			t.Fatalf("frame %d %q does not match", i, f)
		}
		want := strconv.FormatInt(1_700_000_000_000+int64(i)*1000, 10)
		if m[1] != want {
			t.Errorf("frame %d timestamp = %s, want %s", i, m[1], want)
		}
	}
	if s.Frames() != 3 {
		t.Errorf("Frames() = %d", s.Frames())
	}
	if s.State() != SessionClosed {
		t.Errorf("state = %s, want closed", s.State())
	}
}

func TestSession_TimestampsNeverDecrease(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(5000))
	sink := newSpySink()
	s := testSession(clock, sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := startSession(ctx, s)
	tk := clock.ticker(t)

	for _, ms := range []int64{5000, 4000, 6000} {
		clock.Set(time.UnixMilli(ms))
		tk.tick()
		sink.wait(t)
	}
	cancel()
	waitRun(t, done)

	var prev int64
	for _, f := range sink.Frames() {
		m := pingFrame.FindStringSubmatch(f)
		ms, _ := strconv.ParseInt(m[1], 10, 64)
		if ms < prev {
			t.Fatalf("timestamp went backwards: %d after %d", ms, prev)
		}
		prev = ms
	}
	if prev != 6000 {
		t.Errorf("last timestamp = %d, want 6000", prev)
	}
}

func TestSession_CancelDisarmsWithoutFurtherWrites(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(1))
	sink := newSpySink()
	s := testSession(clock, sink, nil)
	ctx, cancel := context.WithCancelCause(context.Background())

	done := startSession(ctx, s)
	tk := clock.ticker(t)
	tk.tick()
	sink.wait(t)

	abort := errors.New("client aborted")
	cancel(abort)
	err := waitRun(t, done)
	if !errors.Is(err, ErrSessionCancelled) || !errors.Is(err, abort) {
		t.Fatalf("expected cancellation wrapping the cause, got %v", err)
	}

	if n := tk.stopped.Load(); n != 1 {
		t.Errorf("ticker stopped %d times, want 1", n)
	}
	if s.Timer().Armed() {
		t.Error("timer still armed")
	}
	if s.Timer().Disarm() {
		t.Error("second Disarm should be a no-op")
	}
	if got := len(sink.Frames()); got != 1 {
		t.Errorf("expected 1 frame, got %d", got)
	}
}

func TestSession_TickRacingCancelWritesNothing(t *testing.T) {
	for i := 0; i < 50; i++ {
		clock := newFakeClock(time.UnixMilli(1))
		sink := newSpySink()
		s := testSession(clock, sink, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := startSession(ctx, s)
		tk := clock.ticker(t)
		select {
		case tk.ch <- time.Time{}:
		default:
		}
		if err := waitRun(t, done); !errors.Is(err, ErrSessionCancelled) {
			t.Fatalf("expected ErrSessionCancelled, got %v", err)
		}
		if got := len(sink.Frames()); got != 0 {
			t.Fatalf("iteration %d: %d frames written after cancellation", i, got)
		}
	}
}

func TestSession_WriteErrorIsClientGone(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(1))
	sink := newSpySink()
	s := testSession(clock, sink, nil)

	done := startSession(context.Background(), s)
	tk := clock.ticker(t)
	tk.tick()
	sink.wait(t)

	broken := errors.New("broken pipe")
	sink.fail(broken)
	tk.tick()
	sink.wait(t)

	err := waitRun(t, done)
	if !errors.Is(err, ErrClientGone) || !errors.Is(err, broken) {
		t.Fatalf("expected ErrClientGone wrapping the write error, got %v", err)
	}
	if tk.stopped.Load() != 1 {
		t.Errorf("ticker stopped %d times, want 1", tk.stopped.Load())
	}
	if s.Frames() != 1 {
		t.Errorf("Frames() = %d, want 1", s.Frames())
	}
}

func TestSession_PanicIsContained(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(1))
	sink := newSpySink()
	sink.panics = true
	s := testSession(clock, sink, nil)

	done := startSession(context.Background(), s)
	tk := clock.ticker(t)
	tk.tick()

	err := waitRun(t, done)
	if !errors.Is(err, ErrSessionPanic) {
		t.Fatalf("expected ErrSessionPanic, got %v", err)
	}
	if s.Timer().Armed() || s.State() != SessionClosed {
		t.Error("session not cleaned up after panic")
	}
}

func TestSession_Independence(t *testing.T) {
	clockA, clockB := newFakeClock(time.UnixMilli(1)), newFakeClock(time.UnixMilli(1))
	sinkA, sinkB := newSpySink(), newSpySink()
	a := testSession(clockA, sinkA, nil)
	b := testSession(clockB, sinkB, nil)

	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()
	doneA := startSession(context.Background(), a)
	doneB := startSession(ctxB, b)
	tkA, tkB := clockA.ticker(t), clockB.ticker(t)

	sinkA.fail(errors.New("gone"))
	tkA.tick()
	sinkA.wait(t)
	if err := waitRun(t, doneA); !errors.Is(err, ErrClientGone) {
		t.Fatalf("session A: %v", err)
	}

	tkB.tick()
	sinkB.wait(t)
	tkB.tick()
	sinkB.wait(t)
	if got := len(sinkB.Frames()); got != 2 {
		t.Fatalf("session B wrote %d frames, want 2", got)
	}
	if !b.Timer().Armed() {
		t.Error("session B timer disarmed by session A")
	}

	cancelB()
	waitRun(t, doneB)
}

func TestSession_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("sse-test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	clock := newFakeClock(time.UnixMilli(1))
	sink := newSpySink()
	s := testSession(clock, sink, metrics)
	done := startSession(context.Background(), s)
	tk := clock.ticker(t)
	tk.tick()
	sink.wait(t)
	tk.tick()
	sink.wait(t)
	sink.fail(errors.New("gone"))
	tk.tick()
	sink.wait(t)
	waitRun(t, done)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := map[string]int64{
		"sse.sessions.total":  1,
		"sse.sessions.active": 0,
		"sse.frames.sent":     2,
		"sse.write.failures":  1,
		"sse.timers.disarmed": 1,
	}
	for name, v := range want {
		if got := sumValue(rm, name); got != v {
			t.Errorf("%s = %d, want %d", name, got, v)
		}
	}
}

func sumValue(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
