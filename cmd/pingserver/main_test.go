package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/pingstream/bootstrap"
	"github.com/kbukum/pingstream/config"
	"github.com/kbukum/pingstream/logger"
	"github.com/kbukum/pingstream/observability"
	"github.com/kbukum/pingstream/server"
	"github.com/kbukum/pingstream/sse"
	"github.com/kbukum/pingstream/sseclient"
	"github.com/kbukum/pingstream/ui"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *AppConfig {
	cfg := &AppConfig{
		ServiceConfig: config.ServiceConfig{
			Name:    serviceName,
			Version: "test",
			Logging: logger.Config{Level: "error", Output: "discard"},
		},
		Server: server.Config{Host: "127.0.0.1", Port: freePort(t), Compression: true},
		SSE:    sse.Config{Interval: 20 * time.Millisecond},
	}
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.Security.CSPReportOnly = true
	cfg.Observability.Prometheus = true
	return cfg
}

func get(t *testing.T, url, accept string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, http.NoBody)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestPingServer_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	app, err := newApp(cfg, bootstrap.WithSummaryOutput(io.Discard))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	base := "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port)
	events := app.Components.Get("sse").(*sse.Component)

	var sub *sseclient.Subscription
	err = app.RunTask(context.Background(), func(ctx context.Context) error {
		resp, body := get(t, base+"/", "text/html")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, ui.Title) {
			t.Errorf("demo page: status %d", resp.StatusCode)
		}
		if resp.Header.Get("Content-Security-Policy-Report-Only") == "" {
			t.Error("demo page missing CSP header")
		}

		resp, body = get(t, base+cfg.SSE.Path, "")
		if resp.StatusCode != http.StatusBadRequest || body != sse.BadRequestBody {
			t.Errorf("without Accept: status %d body %q", resp.StatusCode, body)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
			t.Errorf("without Accept: content type %q", ct)
		}

		resp, _ = get(t, base+"/health", "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("/health status %d", resp.StatusCode)
		}

		got := make(chan sseclient.Event, 8)
		s, err := sseclient.New(sseclient.Config{URL: base + cfg.SSE.Path},
			sseclient.WithLogger(logger.Nop()),
			sseclient.WithHandler(func(ev sseclient.Event) {
				select {
				case got <- ev:
				default:
				}
			}))
		if err != nil {
			return err
		}
		sub = s
		// not tied to the task context, so only the server can end it
		if err := sub.Open(context.Background()); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			select {
			case ev := <-got:
				if _, err := sseclient.ParsePing(ev.Data); err != nil {
					return err
				}
			case <-time.After(2 * time.Second):
				return errors.New("no ping received")
			}
		}
		if events.Hub().Active() != 1 {
			t.Errorf("active sessions = %d, want 1", events.Hub().Active())
		}

		resp, body = get(t, base+observability.PrometheusPath, "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, "sse_frames_sent") {
			t.Errorf("prometheus scrape: status %d, frames counter present %v",
				resp.StatusCode, strings.Contains(body, "sse_frames_sent"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	// stopping the app ends the open stream from the server side
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription still open after shutdown")
	}
	if sub.State() != sseclient.StateClosedError || !errors.Is(sub.Err(), sseclient.ErrStreamEnded) {
		t.Errorf("subscription state = %s, err = %v; want closed-error after stream end", sub.State(), sub.Err())
	}
	if events.Hub().Active() != 0 {
		t.Errorf("active sessions after stop = %d", events.Hub().Active())
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "4567")
	t.Setenv("SSE_INTERVAL", "250ms")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Server.Port != 4567 {
		t.Errorf("port = %d, want 4567 from PORT", cfg.Server.Port)
	}
	if cfg.SSE.Interval != 250*time.Millisecond {
		t.Errorf("interval = %s", cfg.SSE.Interval)
	}
	if cfg.SSE.Path != sse.DefaultPath {
		t.Errorf("path = %q", cfg.SSE.Path)
	}
	if !cfg.Server.Compression || !cfg.Server.RateLimit.Enabled {
		t.Error("compression and rate limiting should default on")
	}
}

func TestAppConfigValidate(t *testing.T) {
	cfg := testConfig(t)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cfg.SSE.Interval = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("expected interval below 10ms to be rejected")
	}
}
