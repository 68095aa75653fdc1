// Package guard provides violation tracking and blocklist escalation.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Blocklist records rule violations per identity and escalates repeat
// offenders to timed or long-lived blocks.
type Blocklist struct {
	store   KVStore
	policy  BlocklistPolicy
	metrics Metrics
	logger  Logger
	region  string
	now     func() time.Time
}

// blockRecord is the stored form of a BlocklistEntry.
type blockRecord struct {
	Reason      string `json:"reason"`
	BlockedAtMs int64  `json:"blockedAtMs"`
	ExpiresAtMs int64  `json:"expiresAtMs,omitempty"`
	Violations  int64  `json:"violations"`
}

// NewBlocklist constructs a blocklist over the shared store.
func NewBlocklist(store KVStore, policy BlocklistPolicy, metrics Metrics, logger Logger, region string) *Blocklist {
	return &Blocklist{
		store:   store,
		policy:  normalizeBlocklistPolicy(policy),
		metrics: metrics,
		logger:  logger,
		region:  region,
		now:     time.Now,
	}
}

func normalizeBlocklistPolicy(policy BlocklistPolicy) BlocklistPolicy {
	if policy.ViolationThreshold <= 0 {
		policy.ViolationThreshold = 10
	}
	if policy.ViolationTTL <= 0 {
		policy.ViolationTTL = 24 * time.Hour
	}
	if policy.AutoBlockDuration <= 0 {
		policy.AutoBlockDuration = 24 * time.Hour
	}
	if policy.PermanentBlockTTL <= 0 {
		policy.PermanentBlockTTL = 30 * 24 * time.Hour
	}
	return policy
}

// RecordViolation increments the violation count for identity, with the
// retention TTL refreshed on every write: the 24h tracking window rolls
// forward from the last violation, unlike the epoch-aligned request
// windows. Crossing the threshold writes a block entry.
func (bl *Blocklist) RecordViolation(ctx context.Context, identity, reason string) (ViolationResult, error) {
	if bl == nil || bl.store == nil {
		return ViolationResult{}, Wrap(CodeStoreUnavailable, "blocklist is not configured", nil)
	}
	if identity == "" {
		return ViolationResult{}, ErrInvalidInput
	}
	key := violationKey(identity)
	count, err := readCounter(ctx, bl.store, key)
	if err != nil {
		return ViolationResult{}, err
	}
	count++
	if err := writeCounter(ctx, bl.store, key, count, bl.policy.ViolationTTL); err != nil {
		return ViolationResult{}, err
	}
	if bl.metrics != nil {
		bl.metrics.IncViolation(bl.region)
	}
	if count < bl.policy.ViolationThreshold {
		return ViolationResult{Count: count}, nil
	}
	blockReason := fmt.Sprintf("%d violations in 24h, last: %s", count, reason)
	if err := bl.block(ctx, identity, blockReason, bl.policy.AutoBlockDuration, count, "auto"); err != nil {
		return ViolationResult{Count: count}, err
	}
	return ViolationResult{Blocked: true, Count: count}, nil
}

// Block places identity on the blocklist. A zero duration means a
// long-lived block: the entry has no logical expiry and relies on a
// renewable long store TTL rather than infinite persistence.
func (bl *Blocklist) Block(ctx context.Context, identity, reason string, duration time.Duration) error {
	if bl == nil || bl.store == nil {
		return Wrap(CodeStoreUnavailable, "blocklist is not configured", nil)
	}
	if identity == "" {
		return ErrInvalidInput
	}
	violations, _ := readCounter(ctx, bl.store, violationKey(identity))
	return bl.block(ctx, identity, reason, duration, violations, "admin")
}

func (bl *Blocklist) block(ctx context.Context, identity, reason string, duration time.Duration, violations int64, source string) error {
	now := bl.clock()
	record := blockRecord{
		Reason:      reason,
		BlockedAtMs: now.UnixMilli(),
		Violations:  violations,
	}
	ttl := bl.policy.PermanentBlockTTL
	if duration > 0 {
		record.ExpiresAtMs = now.Add(duration).UnixMilli()
		ttl = duration
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := bl.store.Put(ctx, blockKey(identity), string(data), ttl); err != nil {
		return err
	}
	if bl.metrics != nil {
		bl.metrics.IncBlock(source, bl.region)
	}
	if bl.logger != nil {
		bl.logger.Info("identity blocked", map[string]any{
			"identity":   identity,
			"reason":     reason,
			"source":     source,
			"violations": violations,
		})
	}
	return nil
}

// Unblock removes identity from the blocklist, reporting whether an
// entry existed.
func (bl *Blocklist) Unblock(ctx context.Context, identity string) (bool, error) {
	if bl == nil || bl.store == nil {
		return false, Wrap(CodeStoreUnavailable, "blocklist is not configured", nil)
	}
	if identity == "" {
		return false, ErrInvalidInput
	}
	_, existed, err := bl.store.Get(ctx, blockKey(identity))
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	if err := bl.store.Delete(ctx, blockKey(identity)); err != nil {
		return false, err
	}
	return true, nil
}

// IsBlocked returns the block entry for identity, or nil when no entry
// exists or the entry's logical expiry has passed. The logical check
// runs even if the store TTL has not evicted the entry yet, so clock
// skew between logical and physical expiry cannot extend a block.
func (bl *Blocklist) IsBlocked(ctx context.Context, identity string) (*BlocklistEntry, error) {
	if bl == nil || bl.store == nil {
		return nil, Wrap(CodeStoreUnavailable, "blocklist is not configured", nil)
	}
	if identity == "" {
		return nil, ErrInvalidInput
	}
	value, ok, err := bl.store.Get(ctx, blockKey(identity))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var record blockRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		// A corrupt entry cannot justify denying traffic; drop it.
		_ = bl.store.Delete(ctx, blockKey(identity))
		return nil, nil
	}
	entry := &BlocklistEntry{
		Identity:   identity,
		Reason:     record.Reason,
		BlockedAt:  time.UnixMilli(record.BlockedAtMs).UTC(),
		Violations: record.Violations,
	}
	if record.ExpiresAtMs > 0 {
		entry.ExpiresAt = time.UnixMilli(record.ExpiresAtMs).UTC()
	}
	if entry.Expired(bl.clock()) {
		_ = bl.store.Delete(ctx, blockKey(identity))
		return nil, nil
	}
	return entry, nil
}

// Policy returns the normalized blocklist policy.
func (bl *Blocklist) Policy() BlocklistPolicy {
	if bl == nil {
		return normalizeBlocklistPolicy(BlocklistPolicy{})
	}
	return bl.policy
}

func (bl *Blocklist) clock() time.Time {
	if bl == nil || bl.now == nil {
		return time.Now()
	}
	return bl.now()
}
