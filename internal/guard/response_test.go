package guard

import (
	"net/http"
	"testing"
	"time"
)

func TestRetryAfterRoundsUp(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 30, 500e6, time.UTC)
	d := &Decision{ResetAt: time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC)}
	if got := RetryAfter(d, now); got != 30 {
		t.Fatalf("retryAfter = %d, want 30 (29.5s rounded up)", got)
	}
	if got := RetryAfter(d, d.ResetAt); got != 0 {
		t.Fatalf("retryAfter at reset = %d, want 0", got)
	}
	if got := RetryAfter(d, d.ResetAt.Add(time.Second)); got != 0 {
		t.Fatalf("retryAfter past reset = %d, want 0", got)
	}
}

func TestShapeDenialRateLimited(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	d := &Decision{
		Allowed: false,
		Limit:   20,
		Window:  WindowMinute,
		ResetAt: now.Add(30 * time.Second),
	}
	payload := ShapeDenial(d, now)
	if payload.Code != string(CodeRateLimited) {
		t.Fatalf("code = %q", payload.Code)
	}
	if payload.Data.RetryAfter != 30 || payload.Data.Limit != 20 || payload.Data.Window != "minute" {
		t.Fatalf("data = %+v", payload.Data)
	}
	if payload.Data.Blocked {
		t.Fatalf("rate limit denial must not report blocked")
	}
	if DenialStatus(d) != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", DenialStatus(d))
	}
}

func TestShapeDenialBlocked(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	d := &Decision{
		Allowed: false,
		Blocked: true,
		Limit:   0,
		Window:  WindowMinute,
		ResetAt: now.Add(24 * time.Hour),
	}
	payload := ShapeDenial(d, now)
	if payload.Code != string(CodeBlocked) {
		t.Fatalf("code = %q", payload.Code)
	}
	if !payload.Data.Blocked || payload.Data.Limit != 0 {
		t.Fatalf("data = %+v", payload.Data)
	}
	if DenialStatus(d) != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", DenialStatus(d))
	}
}

func TestSetRateLimitHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	resetAt := time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC)
	SetRateLimitHeaders(h, &Decision{
		Limit:     20,
		Remaining: 7,
		Window:    WindowMinute,
		ResetAt:   resetAt,
	})
	if got := h.Get("X-RateLimit-Limit"); got != "20" {
		t.Fatalf("limit header = %q", got)
	}
	if got := h.Get("X-RateLimit-Remaining"); got != "7" {
		t.Fatalf("remaining header = %q", got)
	}
	if got := h.Get("X-RateLimit-Reset"); got != "1714557660" {
		t.Fatalf("reset header = %q", got)
	}
	if got := h.Get("X-RateLimit-Window"); got != "minute" {
		t.Fatalf("window header = %q", got)
	}
}
