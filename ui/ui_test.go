package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pingstream/server/middleware"
)

func TestIndexRendersNonceAndStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	if err := Register(engine, "/sse/ev1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	handler := middleware.SecurityHeaders(middleware.SecurityConfig{CSPReportOnly: true})(engine)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>"+Title+"</h1>") {
		t.Error("missing page heading")
	}
	if !strings.Contains(body, `new EventSource("/sse/ev1")`) && !strings.Contains(body, `new EventSource("\/sse\/ev1")`) {
		t.Errorf("stream path not rendered as a JS string:\n%s", body)
	}

	csp := rec.Header().Get("Content-Security-Policy-Report-Only")
	start := strings.Index(csp, "'nonce-")
	if start < 0 {
		t.Fatalf("no nonce in CSP %q", csp)
	}
	nonce := csp[start+len("'nonce-"):]
	nonce = nonce[:strings.Index(nonce, "'")]
	if !strings.Contains(body, `<script nonce="`+nonce+`">`) {
		t.Errorf("script not tagged with nonce %q", nonce)
	}
}
