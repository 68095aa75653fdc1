// Package guard provides the rate limit evaluator.
package guard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Evaluator decides whether a request proceeds: blocklist first, then
// request counts, then cost budgets, tightest window first. Denial is a
// Decision value, never an error; only validation and infrastructure
// faults surface as errors, and infrastructure faults fail open.
type Evaluator struct {
	store      KVStore
	costs      *CostModel
	blocklist  *Blocklist
	policy     LimitPolicy
	breaker    *CircuitBreaker
	metrics    Metrics
	logger     Logger
	degradeLog *rate.Limiter
	region     string
	now        func() time.Time
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(store KVStore, costs *CostModel, blocklist *Blocklist, policy LimitPolicy, breaker *CircuitBreaker, metrics Metrics, logger Logger, region string) *Evaluator {
	if costs == nil {
		costs = NewCostModel(nil, 0)
	}
	if metrics == nil {
		metrics = NewInMemoryMetrics()
	}
	return &Evaluator{
		store:     store,
		costs:     costs,
		blocklist: blocklist,
		policy:    normalizeLimitPolicy(policy),
		breaker:   breaker,
		metrics:   metrics,
		logger:    logger,
		// Store outages would otherwise log once per request.
		degradeLog: rate.NewLimiter(rate.Every(time.Second), 5),
		region:     region,
		now:        time.Now,
	}
}

func normalizeLimitPolicy(policy LimitPolicy) LimitPolicy {
	if policy.RequestsPerMinute <= 0 {
		policy.RequestsPerMinute = 60
	}
	if policy.RequestsPerHour <= 0 {
		policy.RequestsPerHour = 1000
	}
	if policy.BurstAllowance < 0 {
		policy.BurstAllowance = 0
	}
	if policy.CostBudgetPerMinute <= 0 {
		policy.CostBudgetPerMinute = 100
	}
	if policy.CostBudgetPerHour <= 0 {
		policy.CostBudgetPerHour = 2000
	}
	if policy.CounterTTLFactor < 1 {
		policy.CounterTTLFactor = 2.0
	}
	return policy
}

// Evaluate decides whether identity may perform operation now.
func (ev *Evaluator) Evaluate(ctx context.Context, identity, operation string) (*Decision, error) {
	if ev == nil || ev.store == nil || ev.blocklist == nil {
		return nil, Wrap(CodeStoreUnavailable, "evaluator is not configured", nil)
	}
	if identity == "" || operation == "" {
		return nil, ErrInvalidInput
	}
	start := ev.clock()
	defer func() {
		if ev.metrics != nil {
			ev.metrics.ObserveLatency("evaluate", time.Since(start), ev.region)
		}
	}()

	opCost := ev.costs.Lookup(operation)
	minuteLimit := int64(float64(ev.policy.RequestsPerMinute)*opCost.Multiplier) + ev.policy.BurstAllowance
	hourLimit := int64(float64(ev.policy.RequestsPerHour) * opCost.Multiplier)
	now := ev.clock()

	if ev.breaker != nil && !ev.breaker.Allow() {
		return ev.failOpen(identity, operation, minuteLimit, now, nil), nil
	}

	entry, err := ev.blocklist.IsBlocked(ctx, identity)
	if err != nil {
		return ev.failOpen(identity, operation, minuteLimit, now, err), nil
	}
	if entry != nil {
		ev.metrics.IncEvaluate("blocked", string(WindowMinute), ev.region)
		return blockedDecision(entry, now, ev.blocklist.Policy().AutoBlockDuration), nil
	}

	minuteCount, err := readCounter(ctx, ev.store, countKey(identity, WindowMinute, now))
	if err != nil {
		return ev.failOpen(identity, operation, minuteLimit, now, err), nil
	}
	if minuteCount >= minuteLimit {
		return ev.deny(ctx, identity, WindowMinute, minuteLimit, minuteLimit-minuteCount, now,
			fmt.Sprintf("request limit exceeded: %d per minute", minuteLimit)), nil
	}

	hourCount, err := readCounter(ctx, ev.store, countKey(identity, WindowHour, now))
	if err != nil {
		return ev.failOpen(identity, operation, minuteLimit, now, err), nil
	}
	if hourCount >= hourLimit {
		return ev.deny(ctx, identity, WindowHour, hourLimit, hourLimit-hourCount, now,
			fmt.Sprintf("request limit exceeded: %d per hour", hourLimit)), nil
	}

	minuteSpend, err := readCounter(ctx, ev.store, costKey(identity, WindowMinute, now))
	if err != nil {
		return ev.failOpen(identity, operation, minuteLimit, now, err), nil
	}
	if minuteSpend+opCost.Cost > ev.policy.CostBudgetPerMinute {
		decision := ev.deny(ctx, identity, WindowMinute, minuteLimit, minuteLimit-minuteCount, now,
			fmt.Sprintf("cost budget exceeded: %d per minute", ev.policy.CostBudgetPerMinute))
		decision.CostTracked = true
		decision.CostRemaining = clampNonNegative(ev.policy.CostBudgetPerMinute - minuteSpend)
		return decision, nil
	}

	hourSpend, err := readCounter(ctx, ev.store, costKey(identity, WindowHour, now))
	if err != nil {
		return ev.failOpen(identity, operation, minuteLimit, now, err), nil
	}
	if hourSpend+opCost.Cost > ev.policy.CostBudgetPerHour {
		decision := ev.deny(ctx, identity, WindowHour, hourLimit, hourLimit-hourCount, now,
			fmt.Sprintf("cost budget exceeded: %d per hour", ev.policy.CostBudgetPerHour))
		decision.CostTracked = true
		decision.CostRemaining = clampNonNegative(ev.policy.CostBudgetPerHour - hourSpend)
		return decision, nil
	}

	// Admit. The four increments are independent read-then-write pairs
	// against the shared store; concurrent requests for one identity can
	// overshoot the limit by the degree of concurrency. Accepted
	// imprecision: this bounds abuse cost, it is not exact admission
	// control, and cross-request locking is out of proportion here.
	writeErr := ev.increment(ctx, countKey(identity, WindowMinute, now), minuteCount+1, WindowMinute)
	if err := ev.increment(ctx, countKey(identity, WindowHour, now), hourCount+1, WindowHour); writeErr == nil {
		writeErr = err
	}
	if err := ev.increment(ctx, costKey(identity, WindowMinute, now), minuteSpend+opCost.Cost, WindowMinute); writeErr == nil {
		writeErr = err
	}
	if err := ev.increment(ctx, costKey(identity, WindowHour, now), hourSpend+opCost.Cost, WindowHour); writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		ev.recordDegradation(identity, operation, writeErr)
	} else if ev.breaker != nil {
		ev.breaker.OnSuccess()
	}

	ev.metrics.IncEvaluate("allowed", string(WindowMinute), ev.region)
	return &Decision{
		Allowed:       true,
		Remaining:     clampNonNegative(minuteLimit - (minuteCount + 1)),
		Limit:         minuteLimit,
		Window:        WindowMinute,
		ResetAt:       WindowMinute.BucketEnd(now),
		CostRemaining: clampNonNegative(ev.policy.CostBudgetPerMinute - (minuteSpend + opCost.Cost)),
		CostTracked:   true,
	}, nil
}

// Policy returns the normalized limit policy.
func (ev *Evaluator) Policy() LimitPolicy {
	if ev == nil {
		return normalizeLimitPolicy(LimitPolicy{})
	}
	return ev.policy
}

func (ev *Evaluator) increment(ctx context.Context, key string, value int64, window RateWindow) error {
	// TTL outlives the window span so a bucket never evicts mid-window
	// under clock or store skew; expiry is the only cleanup.
	ttl := time.Duration(float64(window.Span()) * ev.policy.CounterTTLFactor)
	return writeCounter(ctx, ev.store, key, value, ttl)
}

func (ev *Evaluator) deny(ctx context.Context, identity string, window RateWindow, limit, remaining int64, now time.Time, reason string) *Decision {
	ev.metrics.IncEvaluate("denied", string(window), ev.region)
	result, err := ev.blocklist.RecordViolation(ctx, identity, reason)
	if err != nil {
		ev.recordDegradation(identity, reason, err)
	} else if result.Blocked && ev.logger != nil {
		ev.logger.Info("violation threshold crossed", map[string]any{
			"identity":   identity,
			"violations": result.Count,
		})
	}
	return &Decision{
		Allowed:   false,
		Remaining: clampNonNegative(remaining),
		Limit:     limit,
		Window:    window,
		ResetAt:   window.BucketEnd(now),
	}
}

// failOpen allows the request when the store cannot answer. Denying all
// traffic on a cache outage is a worse failure mode than temporarily
// lifting limits; infrastructure failures never count as violations.
func (ev *Evaluator) failOpen(identity, operation string, limit int64, now time.Time, err error) *Decision {
	if err != nil {
		ev.recordDegradation(identity, operation, err)
	}
	ev.metrics.IncFailOpen(ev.region)
	ev.metrics.IncEvaluate("fail_open", string(WindowMinute), ev.region)
	return &Decision{
		Allowed:   true,
		Remaining: limit,
		Limit:     limit,
		Window:    WindowMinute,
		ResetAt:   WindowMinute.BucketEnd(now),
	}
}

func (ev *Evaluator) recordDegradation(identity, detail string, err error) {
	if ev.breaker != nil {
		ev.breaker.OnFailure()
	}
	ev.metrics.IncStoreError("evaluate", ev.region)
	if ev.logger != nil && (ev.degradeLog == nil || ev.degradeLog.Allow()) {
		ev.logger.Error("store degraded, failing open", map[string]any{
			"identity": identity,
			"detail":   detail,
			"error":    err.Error(),
		})
	}
}

func blockedDecision(entry *BlocklistEntry, now time.Time, fallbackDuration time.Duration) *Decision {
	resetAt := entry.ExpiresAt
	if resetAt.IsZero() {
		resetAt = now.Add(fallbackDuration)
	}
	return &Decision{
		Allowed: false,
		Blocked: true,
		Limit:   0,
		Window:  WindowMinute,
		ResetAt: resetAt,
	}
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func (ev *Evaluator) clock() time.Time {
	if ev == nil || ev.now == nil {
		return time.Now()
	}
	return ev.now()
}
