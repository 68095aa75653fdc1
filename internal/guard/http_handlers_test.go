package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestTransport(t *testing.T, limits LimitPolicy) (http.Handler, *HTTPTransport, *evalFixture) {
	t.Helper()
	fx := newEvalFixture(t, limits, BlocklistPolicy{}, cheapCosts)
	transport := NewHTTPTransport(":0", func() bool { return true })
	if err := transport.ServeEvaluator(fx.ev); err != nil {
		t.Fatalf("serve evaluator: %v", err)
	}
	if err := transport.ServeAdmin(&adminBlocklist{blocklist: fx.bl}); err != nil {
		t.Fatalf("serve admin: %v", err)
	}
	transport.now = func() time.Time { return *fx.now }
	handler, err := transport.Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler, transport, fx
}

func postJSON(t *testing.T, handler http.Handler, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHTTPCheckAllowed(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestTransport(t, LimitPolicy{RequestsPerMinute: 10, CostBudgetPerMinute: 1000, CostBudgetPerHour: 10000})
	rec := postJSON(t, handler, "/v1/guard/check", `{"identity":"1.2.3.4","operation":"read"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp httpCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Allowed || resp.Limit != 10 || resp.Remaining != 9 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.CostRemaining == nil {
		t.Fatalf("expected cost remaining on tracked decision")
	}
	if rec.Header().Get("X-RateLimit-Limit") != "10" {
		t.Fatalf("limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestHTTPCheckDenied(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestTransport(t, LimitPolicy{RequestsPerMinute: 1, CostBudgetPerMinute: 1000, CostBudgetPerHour: 10000})
	body := `{"identity":"1.2.3.4","operation":"read"}`
	if rec := postJSON(t, handler, "/v1/guard/check", body, nil); rec.Code != http.StatusOK {
		t.Fatalf("first check status = %d", rec.Code)
	}
	rec := postJSON(t, handler, "/v1/guard/check", body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var resp httpCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Allowed || resp.Code != string(CodeRateLimited) {
		t.Fatalf("response = %+v", resp)
	}
	if resp.RetryAfter <= 0 {
		t.Fatalf("retryAfter = %d, want positive", resp.RetryAfter)
	}
}

func TestHTTPCheckDerivesIdentityFromHeaders(t *testing.T) {
	t.Parallel()

	handler, _, fx := newTestTransport(t, LimitPolicy{RequestsPerMinute: 10, CostBudgetPerMinute: 1000, CostBudgetPerHour: 10000})
	rec := postJSON(t, handler, "/v1/guard/check", `{"operation":"read"}`, map[string]string{"X-Forwarded-For": "7.7.7.7, 8.8.8.8"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	count, err := readCounter(context.Background(), fx.store, countKey("7.7.7.7", WindowMinute, *fx.now))
	if err != nil || count != 1 {
		t.Fatalf("derived identity counter = %d, %v, want 1", count, err)
	}
}

func TestHTTPCheckValidation(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestTransport(t, LimitPolicy{})
	if rec := postJSON(t, handler, "/v1/guard/check", `{"identity":"1.2.3.4"}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing operation status = %d, want 400", rec.Code)
	}
	if rec := postJSON(t, handler, "/v1/guard/check", `{bad json`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/guard/check", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}
}

func TestHTTPAdminBlocklistLifecycle(t *testing.T) {
	t.Parallel()

	handler, transport, _ := newTestTransport(t, LimitPolicy{})
	transport.SetAuth("secret")
	auth := map[string]string{"Authorization": "Bearer secret"}

	if rec := postJSON(t, handler, "/v1/admin/blocklist", `{"identity":"9.9.9.9","reason":"abuse","durationSeconds":3600}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated block status = %d, want 401", rec.Code)
	}

	if rec := postJSON(t, handler, "/v1/admin/blocklist", `{"identity":"9.9.9.9","reason":"abuse","durationSeconds":3600}`, auth); rec.Code != http.StatusNoContent {
		t.Fatalf("block status = %d, body %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/blocklist?identity=9.9.9.9", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status httpBlocklistStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Blocked || status.Reason != "abuse" {
		t.Fatalf("status = %+v", status)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/admin/blocklist?identity=9.9.9.9", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unblock status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/admin/blocklist?identity=9.9.9.9", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second unblock status = %d, want 404", rec.Code)
	}
}

func TestHTTPHealthEndpoints(t *testing.T) {
	t.Parallel()

	handler, transport, _ := newTestTransport(t, LimitPolicy{})
	inMem := NewInMemoryMetrics()
	transport.SetObservability(inMem, inMem.Snapshot, nil, func() OperatingMode { return ModeDegraded }, nil, "test")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/mode", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("mode = %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "counters") {
		t.Fatalf("metrics = %d %s", rec.Code, rec.Body.String())
	}
}
