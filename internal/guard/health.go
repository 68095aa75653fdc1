// Package guard provides store health tracking.
package guard

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// OperatingMode represents the current operating state.
type OperatingMode int32

const (
	ModeNormal OperatingMode = iota
	ModeDegraded
)

// StoreHealth tracks the shared store's availability. The guard fails
// open while degraded, so mode is reporting, not gating.
type StoreHealth struct {
	store       KVStore
	mode        atomic.Int32
	lastHealthy atomic.Int64
	unhealthyAt time.Duration
	logger      Logger
	lastMode    atomic.Int32
}

// NewStoreHealth constructs a StoreHealth tracker.
func NewStoreHealth(store KVStore, unhealthyAfter time.Duration) *StoreHealth {
	if unhealthyAfter <= 0 {
		unhealthyAfter = 500 * time.Millisecond
	}
	health := &StoreHealth{
		store:       store,
		unhealthyAt: unhealthyAfter,
	}
	health.mode.Store(int32(ModeNormal))
	health.lastMode.Store(int32(ModeNormal))
	health.lastHealthy.Store(time.Now().UnixNano())
	return health
}

// SetLogger configures a logger for mode changes.
func (sh *StoreHealth) SetLogger(l Logger) {
	if sh == nil {
		return
	}
	sh.logger = l
}

// Mode returns the current operating mode.
func (sh *StoreHealth) Mode() OperatingMode {
	if sh == nil {
		return ModeNormal
	}
	return OperatingMode(sh.mode.Load())
}

// Update refreshes the current operating mode from a store probe.
func (sh *StoreHealth) Update(ctx context.Context) {
	if sh == nil {
		return
	}
	now := time.Now()
	healthy := true
	if sh.store != nil {
		healthy = sh.store.Healthy(ctx)
	}
	if healthy {
		sh.lastHealthy.Store(now.UnixNano())
	}

	age := now.Sub(time.Unix(0, sh.lastHealthy.Load()))
	mode := ModeNormal
	if age >= sh.unhealthyAt {
		mode = ModeDegraded
	}
	sh.mode.Store(int32(mode))
	prev := OperatingMode(sh.lastMode.Load())
	if prev != mode {
		sh.lastMode.Store(int32(mode))
		if sh.logger != nil {
			sh.logger.Info("mode changed", map[string]any{
				"old":       modeLabel(prev),
				"new":       modeLabel(mode),
				"timestamp": now.UnixNano(),
			})
		}
	}
}

func modeLabel(mode OperatingMode) string {
	switch mode {
	case ModeDegraded:
		return "degraded"
	default:
		return "normal"
	}
}

// HealthLoop periodically updates the store health tracker.
type HealthLoop struct {
	health   *StoreHealth
	interval time.Duration
}

// NewHealthLoop constructs a HealthLoop.
func NewHealthLoop(health *StoreHealth, interval time.Duration) *HealthLoop {
	return &HealthLoop{health: health, interval: interval}
}

// Start begins the health update loop.
func (h *HealthLoop) Start(ctx context.Context) error {
	if h == nil || h.health == nil {
		return errors.New("health loop is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	interval := h.interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.health.Update(ctx)
		}
	}
}
