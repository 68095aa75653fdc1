// Package guard shapes denial responses and rate limit headers.
package guard

import (
	"net/http"
	"strconv"
	"time"
)

// DenialData carries machine-readable denial details.
type DenialData struct {
	RetryAfter int64  `json:"retryAfter"`
	Limit      int64  `json:"limit"`
	Window     string `json:"window"`
	Blocked    bool   `json:"blocked,omitempty"`
}

// DenialPayload is the wire body for a denied request.
type DenialPayload struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Data    DenialData `json:"data"`
}

// RetryAfter returns whole seconds until the decision's reset, rounded
// up so a client that waits exactly this long lands past the boundary.
func RetryAfter(d *Decision, now time.Time) int64 {
	if d == nil {
		return 0
	}
	remaining := d.ResetAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	secs := int64(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// ShapeDenial builds the response payload for a denied decision.
func ShapeDenial(d *Decision, now time.Time) DenialPayload {
	if d == nil {
		return DenialPayload{}
	}
	data := DenialData{
		RetryAfter: RetryAfter(d, now),
		Limit:      d.Limit,
		Window:     string(d.Window),
		Blocked:    d.Blocked,
	}
	if d.Blocked {
		return DenialPayload{
			Code:    string(CodeBlocked),
			Message: "identity is blocked",
			Data:    data,
		}
	}
	return DenialPayload{
		Code:    string(CodeRateLimited),
		Message: "rate limit exceeded",
		Data:    data,
	}
}

// DenialStatus maps a denied decision to its HTTP status code.
func DenialStatus(d *Decision) int {
	if d != nil && d.Blocked {
		return http.StatusForbidden
	}
	return http.StatusTooManyRequests
}

// SetRateLimitHeaders writes the standard limit headers for a decision.
// The headers go on every shaped response, allowed or denied.
func SetRateLimitHeaders(h http.Header, d *Decision) {
	if h == nil || d == nil {
		return
	}
	h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	h.Set("X-RateLimit-Window", string(d.Window))
}
