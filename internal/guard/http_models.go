// Package guard provides HTTP transport models.
package guard

import "time"

type httpCheckRequest struct {
	Identity  string `json:"identity"`
	Operation string `json:"operation"`
}

type httpCheckResponse struct {
	Allowed       bool   `json:"allowed"`
	Blocked       bool   `json:"blocked,omitempty"`
	Remaining     int64  `json:"remaining"`
	Limit         int64  `json:"limit"`
	Window        string `json:"window"`
	ResetAt       int64  `json:"resetAt"`
	RetryAfter    int64  `json:"retryAfter,omitempty"`
	CostRemaining *int64 `json:"costRemaining,omitempty"`
	Code          string `json:"code,omitempty"`
	Message       string `json:"message,omitempty"`
}

type httpBlockRequest struct {
	Identity        string `json:"identity"`
	Reason          string `json:"reason"`
	DurationSeconds int64  `json:"durationSeconds"`
}

type httpBlocklistStatus struct {
	Identity   string `json:"identity"`
	Blocked    bool   `json:"blocked"`
	Reason     string `json:"reason,omitempty"`
	BlockedAt  int64  `json:"blockedAt,omitempty"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
	Violations int64  `json:"violations,omitempty"`
}

func fromDecision(d *Decision, now time.Time) httpCheckResponse {
	if d == nil {
		return httpCheckResponse{}
	}
	resp := httpCheckResponse{
		Allowed:   d.Allowed,
		Blocked:   d.Blocked,
		Remaining: d.Remaining,
		Limit:     d.Limit,
		Window:    string(d.Window),
		ResetAt:   d.ResetAt.Unix(),
	}
	if d.CostTracked {
		remaining := d.CostRemaining
		resp.CostRemaining = &remaining
	}
	if !d.Allowed {
		payload := ShapeDenial(d, now)
		resp.RetryAfter = payload.Data.RetryAfter
		resp.Code = payload.Code
		resp.Message = payload.Message
	}
	return resp
}

func fromBlocklistEntry(identity string, entry *BlocklistEntry) httpBlocklistStatus {
	status := httpBlocklistStatus{Identity: identity}
	if entry == nil {
		return status
	}
	status.Blocked = true
	status.Reason = entry.Reason
	status.BlockedAt = entry.BlockedAt.Unix()
	status.Violations = entry.Violations
	if !entry.ExpiresAt.IsZero() {
		status.ExpiresAt = entry.ExpiresAt.Unix()
	}
	return status
}
