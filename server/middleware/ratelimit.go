package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/kbukum/pingstream/errors"
)

// RateLimitConfig configures tiered rate limiting.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Multiple scales every tier's limit.
	Multiple int `yaml:"multiple" mapstructure:"multiple" validate:"gte=0"`
	// Window is the sliding window length.
	Window time.Duration `yaml:"window" mapstructure:"window"`
	// TrustProxy takes the client address from the last X-Forwarded-For hop.
	TrustProxy bool `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// Tier limits per window before Multiple is applied.
const (
	GeneralLimit   = 1000
	StrongLimit    = 100
	StrongestLimit = 10
)

// SensitivePaths get the strongest limit for mutating requests.
var SensitivePaths = []string{
	"/login",
	"/signup",
	"/verify",
	"/admin",
	"/onboarding",
	"/reset-password",
	"/settings/profile",
	"/resources/login",
	"/resources/verify",
}

// RateLimit returns middleware applying per-client sliding-window limits in
// three tiers: mutating requests on sensitive paths and any request to a
// verify path get the strongest limit, other mutating requests the strong
// limit, and everything else the general one. Responses carry the standard
// RateLimit-Limit, RateLimit-Remaining and RateLimit-Reset headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newTieredLimiter(cfg, time.Now).middleware
}

type tieredLimiter struct {
	cfg       RateLimitConfig
	general   *rateLimiter
	strong    *rateLimiter
	strongest *rateLimiter
}

func newTieredLimiter(cfg RateLimitConfig, now func() time.Time) *tieredLimiter {
	if cfg.Multiple <= 0 {
		cfg.Multiple = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &tieredLimiter{
		cfg:       cfg,
		general:   newRateLimiter(GeneralLimit*cfg.Multiple, cfg.Window, now),
		strong:    newRateLimiter(StrongLimit*cfg.Multiple, cfg.Window, now),
		strongest: newRateLimiter(StrongestLimit*cfg.Multiple, cfg.Window, now),
	}
}

func (t *tieredLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl := t.tierFor(r)
		ok, remaining, reset := rl.allow(clientKey(r, t.cfg.TrustProxy))

		h := w.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(rl.limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(int(reset.Round(time.Second)/time.Second)))

		if !ok {
			h.Set("Retry-After", strconv.Itoa(int(reset.Round(time.Second)/time.Second)))
			apperrors.WriteJSON(w, apperrors.RateLimited().WithDetail("limit", rl.limit))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *tieredLimiter) tierFor(r *http.Request) *rateLimiter {
	path := r.URL.Path
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		for _, p := range SensitivePaths {
			if strings.Contains(path, p) {
				return t.strongest
			}
		}
		return t.strong
	}
	// verify links carry one-time tokens in the query string
	if strings.Contains(path, "/verify") {
		return t.strongest
	}
	return t.general
}

func clientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			return strings.TrimSpace(hops[len(hops)-1])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	return &rateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		now:       now,
		lastSweep: now(),
	}
}

// allow records a hit for key and reports whether it is within the limit,
// how many hits remain and when the oldest hit leaves the window.
func (rl *rateLimiter) allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) > rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	valid := filterByTime(rl.requests[key], cutoff)
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false, 0, valid[0].Sub(cutoff)
	}
	valid = append(valid, now)
	rl.requests[key] = valid
	return true, rl.limit - len(valid), valid[0].Sub(cutoff)
}

func (rl *rateLimiter) sweep(cutoff time.Time) {
	for key, times := range rl.requests {
		valid := filterByTime(times, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

func filterByTime(times []time.Time, cutoff time.Time) []time.Time {
	var result []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}
