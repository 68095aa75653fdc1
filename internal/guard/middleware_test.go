package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubEvaluator struct {
	decision      *Decision
	err           error
	lastIdentity  string
	lastOperation string
}

func (s *stubEvaluator) Evaluate(ctx context.Context, identity, operation string) (*Decision, error) {
	s.lastIdentity = identity
	s.lastOperation = operation
	return s.decision, s.err
}

func (s *stubEvaluator) Policy() LimitPolicy { return LimitPolicy{} }

func TestMiddlewareAllowsAndSetsHeaders(t *testing.T) {
	t.Parallel()

	resetAt := time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC)
	ev := &stubEvaluator{decision: &Decision{Allowed: true, Limit: 20, Remaining: 19, Window: WindowMinute, ResetAt: resetAt}}
	mw := NewMiddleware(ev, nil, nil)

	nextCalled := false
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("CF-Connecting-IP", "1.2.3.4")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatalf("allowed request must reach the protected handler")
	}
	if ev.lastIdentity != "1.2.3.4" {
		t.Fatalf("identity = %q", ev.lastIdentity)
	}
	if ev.lastOperation != http.MethodGet {
		t.Fatalf("operation = %q, want request method", ev.lastOperation)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "20" {
		t.Fatalf("limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestMiddlewarePreservesRequestID(t *testing.T) {
	t.Parallel()

	ev := &stubEvaluator{decision: &Decision{Allowed: true, Window: WindowMinute}}
	mw := NewMiddleware(ev, nil, nil)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("request id = %q, want passthrough", got)
	}
}

func TestMiddlewareDenies(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ev := &stubEvaluator{decision: &Decision{
		Allowed: false,
		Limit:   20,
		Window:  WindowMinute,
		ResetAt: now.Add(30 * time.Second),
	}}
	mw := NewMiddleware(ev, nil, nil)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("denied request must not reach the protected handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	var payload DenialPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Code != string(CodeRateLimited) {
		t.Fatalf("code = %q", payload.Code)
	}
}

func TestMiddlewareBlocked(t *testing.T) {
	t.Parallel()

	ev := &stubEvaluator{decision: &Decision{
		Allowed: false,
		Blocked: true,
		Window:  WindowMinute,
		ResetAt: time.Now().Add(24 * time.Hour),
	}}
	mw := NewMiddleware(ev, nil, nil)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("blocked request must not reach the protected handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var payload DenialPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Code != string(CodeBlocked) || !payload.Data.Blocked {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestMiddlewarePassesThroughOnEvaluatorError(t *testing.T) {
	t.Parallel()

	ev := &stubEvaluator{err: ErrInvalidInput}
	mw := NewMiddleware(ev, nil, nil)
	nextCalled := false
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatalf("evaluator errors must not reject traffic")
	}
}
