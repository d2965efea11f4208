package sse

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/pingstream/component"
	"github.com/kbukum/pingstream/logger"
)

func newTestHub() *Hub {
	return NewHub(Config{Interval: 20 * time.Millisecond}, WithLogger(logger.Nop()))
}

func openStream(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", ContentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// readFrame reads one blank-line terminated frame.
func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading frame: %v (partial %q)", err, b.String())
		}
		b.WriteString(line)
		if line == "\n" {
			return b.String()
		}
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_RejectsWithoutAcceptHeader(t *testing.T) {
	hub := newTestHub()
	tests := []struct {
		name   string
		accept string
	}{
		{"missing", ""},
		{"wildcard", "*/*"},
		{"list", "text/event-stream, text/html"},
		{"json", "application/json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, DefaultPath, http.NoBody)
			if tc.accept != "" {
				req.Header.Set("Accept", tc.accept)
			}
			rec := httptest.NewRecorder()
			hub.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
				t.Errorf("content type = %q", ct)
			}
			if rec.Body.String() != BadRequestBody {
				t.Errorf("body = %q", rec.Body.String())
			}
		})
	}
	if hub.Active() != 0 {
		t.Errorf("rejected requests left %d sessions", hub.Active())
	}
}

func TestHub_StreamsPings(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp := openStream(t, srv.URL+DefaultPath)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for header, want := range map[string]string{
		"Content-Type":      ContentType,
		"Cache-Control":     "no-cache",
		"X-Accel-Buffering": "no",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	reader := bufio.NewReader(resp.Body)
	var prev int64
	for i := 0; i < 3; i++ {
		frame := readFrame(t, reader)
		m := pingFrame.FindStringSubmatch(frame)
		if m == nil {
			t.Fatalf("frame %q does not match", frame)
		}
		ms, _ := strconv.ParseInt(m[1], 10, 64)
		if ms < prev {
			t.Errorf("timestamps decreased: %d after %d", ms, prev)
		}
		prev = ms
	}
	if hub.Active() != 1 {
		t.Errorf("Active() = %d, want 1", hub.Active())
	}

	resp.Body.Close()
	waitFor(t, func() bool { return hub.Active() == 0 }, "session cleanup after disconnect")

	stats := hub.Stats()
	if stats["sse_sessions_total"] != uint64(1) {
		t.Errorf("sessions total = %v", stats["sse_sessions_total"])
	}
	if frames, _ := stats["sse_frames_sent"].(uint64); frames < 3 {
		t.Errorf("frames sent = %v, want >= 3", stats["sse_frames_sent"])
	}
}

func TestHub_ConcurrentSessionsAreIndependent(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := openStream(t, srv.URL)
	b := openStream(t, srv.URL)
	defer b.Body.Close()
	readFrame(t, bufio.NewReader(a.Body))
	waitFor(t, func() bool { return hub.Active() == 2 }, "two sessions")

	a.Body.Close()
	waitFor(t, func() bool { return hub.Active() == 1 }, "first session to close")

	rb := bufio.NewReader(b.Body)
	for i := 0; i < 2; i++ {
		if f := readFrame(t, rb); !pingFrame.MatchString(f) {
			t.Fatalf("second session frame %q", f)
		}
	}
}

func TestHub_ShutdownEndsStreams(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp := openStream(t, srv.URL)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	readFrame(t, reader)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hub.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if hub.Active() != 0 {
		t.Errorf("Active() = %d after shutdown", hub.Active())
	}

	// the stream ends once the handler returns
	if _, err := io.ReadAll(reader); err != nil {
		t.Fatalf("reading rest of stream: %v", err)
	}

	rejected := openStream(t, srv.URL)
	rejected.Body.Close()
	if rejected.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status after shutdown = %d, want 503", rejected.StatusCode)
	}

	hub.Open()
	reopened := openStream(t, srv.URL)
	defer reopened.Body.Close()
	if reopened.StatusCode != http.StatusOK {
		t.Errorf("status after Open = %d, want 200", reopened.StatusCode)
	}
}

func TestHub_HeadOpensNoSession(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodHead, srv.URL, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", ContentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("HEAD: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != ContentType {
		t.Errorf("content type = %q", ct)
	}
	// the connection stays pooled; no timer may be ticking behind it
	if hub.Active() != 0 {
		t.Errorf("Active() = %d after HEAD, want 0", hub.Active())
	}
	if total := hub.Stats()["sse_sessions_total"]; total != uint64(0) {
		t.Errorf("sse_sessions_total = %v after HEAD", total)
	}
}

func TestHub_OpenAfterTimedOutShutdown(t *testing.T) {
	hub := newTestHub()

	if _, ok := hub.register(context.Background(), "stuck"); !ok {
		t.Fatal("register refused on an open hub")
	}
	expired, cancel := context.WithCancel(context.Background())
	cancel()
	if err := hub.Shutdown(expired); err == nil {
		t.Fatal("expected Shutdown to time out while a session is still live")
	}

	hub.Open()
	if _, ok := hub.register(context.Background(), "fresh"); !ok {
		t.Fatal("register refused after Open")
	}
	hub.unregister("fresh")

	// only sessions admitted since Open are waited for
	ctx, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	if err := hub.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown after reopen: %v", err)
	}

	hub.unregister("stuck")
	if hub.Active() != 0 {
		t.Errorf("Active() = %d, want 0", hub.Active())
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	c := NewComponent(Config{Interval: 20 * time.Millisecond}, WithLogger(logger.Nop()))
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h := c.Health(ctx)
	if h.Status != component.StatusHealthy || h.Message != "0 sessions open" {
		t.Errorf("unexpected health %+v", h)
	}
	d := c.Describe()
	if d.Type != "sse" || !strings.Contains(d.Details, DefaultPath) {
		t.Errorf("unexpected description %+v", d)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusDegraded {
		t.Errorf("stopped hub should be degraded, got %+v", h)
	}
}
