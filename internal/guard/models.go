// Package guard defines core decision and blocklist models.
package guard

import "time"

// Decision captures the evaluated outcome for a single request.
type Decision struct {
	Allowed       bool
	Blocked       bool
	Remaining     int64
	Limit         int64
	Window        RateWindow
	ResetAt       time.Time
	CostRemaining int64
	CostTracked   bool
}

// BlocklistEntry describes a blocked identity.
type BlocklistEntry struct {
	Identity   string
	Reason     string
	BlockedAt  time.Time
	ExpiresAt  time.Time
	Violations int64
}

// Expired reports whether the entry's logical expiry has passed.
// Entries without an explicit expiry never expire logically; the
// store TTL remains the backstop.
func (e *BlocklistEntry) Expired(now time.Time) bool {
	if e == nil {
		return true
	}
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// ViolationResult reports the outcome of recording a violation.
type ViolationResult struct {
	Blocked bool
	Count   int64
}

// OperationCost resolves an operation to budget units and a limit multiplier.
type OperationCost struct {
	Cost       int64
	Multiplier float64
}

// LimitPolicy captures per-identity rate and budget limits.
type LimitPolicy struct {
	RequestsPerMinute   int64
	RequestsPerHour     int64
	BurstAllowance      int64
	CostBudgetPerMinute int64
	CostBudgetPerHour   int64
	CounterTTLFactor    float64
}

// BlocklistPolicy captures violation tracking and block escalation settings.
type BlocklistPolicy struct {
	ViolationThreshold int64
	ViolationTTL       time.Duration
	AutoBlockDuration  time.Duration
	PermanentBlockTTL  time.Duration
}
