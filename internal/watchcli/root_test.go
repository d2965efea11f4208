package watchcli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/pingstream/logger"
	"github.com/kbukum/pingstream/sse"
	"github.com/kbukum/pingstream/sseclient"
)

func TestWatch_PrintsCountPings(t *testing.T) {
	hub := sse.NewHub(sse.Config{Interval: 10 * time.Millisecond}, sse.WithLogger(logger.Nop()))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--url", srv.URL, "--count", "3", "--log-level", "error"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), out.String())
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "ping ") || !strings.Contains(l, "lag=") {
			t.Errorf("unexpected line %q", l)
		}
	}
}

func TestWatch_ServerRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := watch(context.Background(), &bytes.Buffer{}, &options{url: srv.URL, connectTimeout: time.Second, logLevel: "disabled"})
	if !errors.Is(err, sseclient.ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestWatch_StopsOnContextCancel(t *testing.T) {
	hub := sse.NewHub(sse.Config{Interval: time.Hour}, sse.WithLogger(logger.Nop()))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, &bytes.Buffer{}, &options{url: srv.URL, connectTimeout: time.Second, logLevel: "disabled"})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Active() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never opened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v after interrupt", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Len() == 0 {
		t.Error("expected version output")
	}
}
