package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTierFor(t *testing.T) {
	tl := newTieredLimiter(RateLimitConfig{}, time.Now)
	tests := []struct {
		method string
		path   string
		want   *rateLimiter
	}{
		{"GET", "/sse/ev1", tl.general},
		{"HEAD", "/", tl.general},
		{"GET", "/verify", tl.strongest},
		{"GET", "/resources/verify/abc", tl.strongest},
		{"POST", "/login", tl.strongest},
		{"POST", "/settings/profile/photo", tl.strongest},
		{"POST", "/notes", tl.strong},
		{"DELETE", "/sse/ev1", tl.strong},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			if got := tl.tierFor(httptest.NewRequest(tc.method, tc.path, http.NoBody)); got != tc.want {
				t.Errorf("got limit %d, want %d", got.limit, tc.want.limit)
			}
		})
	}
}

func TestRateLimit_StrongestTierBlocksAfterTen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	handler := newTieredLimiter(RateLimitConfig{}, clock.Now).middleware(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login", http.NoBody)
		req.RemoteAddr = "203.0.113.7:5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < StrongestLimit; i++ {
		if rr := do(); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
		clock.Advance(time.Second)
	}

	rr := do()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("RateLimit-Limit") != "10" || rr.Header().Get("RateLimit-Remaining") != "0" {
		t.Errorf("unexpected headers: %v", rr.Header())
	}
	if !strings.Contains(rr.Body.String(), `"RATE_LIMITED"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
	if rr.Header().Get("Retry-After") != "50" {
		t.Errorf("Retry-After = %q, want 50", rr.Header().Get("Retry-After"))
	}

	clock.Advance(51 * time.Second)
	if rr := do(); rr.Code != http.StatusOK {
		t.Fatalf("expected window to slide, got %d", rr.Code)
	}
}

func TestRateLimit_MultipleAndKeys(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tl := newTieredLimiter(RateLimitConfig{Multiple: 2, TrustProxy: true}, clock.Now)
	if tl.strongest.limit != 20 || tl.general.limit != 2000 {
		t.Fatalf("multiple not applied: %d/%d", tl.strongest.limit, tl.general.limit)
	}

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")
	if got := clientKey(req, true); got != "10.0.0.2" {
		t.Errorf("trusted key = %q", got)
	}
	req.RemoteAddr = "192.0.2.9:1234"
	if got := clientKey(req, false); got != "192.0.2.9" {
		t.Errorf("untrusted key = %q", got)
	}
}

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiter(5, time.Minute, clock.Now)
	rl.allow("a")
	rl.allow("b")
	clock.Advance(2 * time.Minute)
	rl.allow("c")
	if _, ok := rl.requests["a"]; ok {
		t.Error("expected idle key to be swept")
	}
	if len(rl.requests) != 1 {
		t.Errorf("expected only the fresh key, got %d", len(rl.requests))
	}
}
