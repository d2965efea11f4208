package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAppError_New(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}

	if !New(ErrCodeRateLimited, "slow down", http.StatusTooManyRequests).Retryable {
		t.Error("RATE_LIMITED should be retryable")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"rate limited", RateLimited(), ErrCodeRateLimited, http.StatusTooManyRequests},
		{"not found", NotFound("page"), ErrCodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad config"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"not event stream", NotEventStream("sse only"), ErrCodeNotEventStream, http.StatusBadRequest},
		{"streaming unsupported", StreamingUnsupported(), ErrCodeStreamingUnsupported, http.StatusInternalServerError},
		{"internal", Internal(nil), ErrCodeInternal, http.StatusInternalServerError},
		{"unavailable", ServiceUnavailable("sse hub"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
		})
	}
}

func TestAppError_CauseAndUnwrap(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := Internal(cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "socket closed") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}

	wrapped := fmt.Errorf("handler: %w", err)
	appErr, ok := AsAppError(wrapped)
	if !ok || appErr.Code != ErrCodeInternal {
		t.Fatalf("expected AsAppError to unwrap, got %v %v", appErr, ok)
	}
	if From(wrapped) != err {
		t.Error("expected From to return the wrapped AppError")
	}
	if got := From(cause); got.Code != ErrCodeInternal || !stderrors.Is(got, cause) {
		t.Errorf("plain error should become Internal, got %v", got)
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, fmt.Errorf("stream: %w", ServiceUnavailable("event stream").WithDetail("sessions", 0)))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != ErrCodeServiceUnavailable || !resp.Error.Retryable {
		t.Errorf("unexpected body %+v", resp.Error)
	}
	if resp.Error.Details["service"] != "event stream" || resp.Error.Details["sessions"] != float64(0) {
		t.Errorf("unexpected details %v", resp.Error.Details)
	}

	rec = httptest.NewRecorder()
	WriteJSON(rec, stderrors.New("socket closed"))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "socket closed") {
		t.Errorf("plain error leaked or wrong status: %d %s", rec.Code, rec.Body.String())
	}
}
