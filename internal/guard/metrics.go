// Package guard provides in-memory metrics.
package guard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics records evaluator and transport measurements.
type Metrics interface {
	IncEvaluate(result string, window string, region string)
	IncViolation(region string)
	IncBlock(source string, region string)
	IncStoreError(op string, region string)
	IncFailOpen(region string)
	ObserveLatency(op string, d time.Duration, region string)
}

// InMemoryMetrics stores counters and latency summaries.
type InMemoryMetrics struct {
	counters  sync.Map
	latencies sync.Map
}

type latencySummary struct {
	count      atomic.Int64
	totalNanos atomic.Int64
	maxNanos   atomic.Int64
}

// NewInMemoryMetrics constructs an in-memory metrics recorder.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

// IncEvaluate increments an evaluation counter.
func (m *InMemoryMetrics) IncEvaluate(result string, window string, region string) {
	if m == nil {
		return
	}
	m.incCounter(fmt.Sprintf("evaluate|%s|%s|%s", result, window, region))
}

// IncViolation increments the violation counter.
func (m *InMemoryMetrics) IncViolation(region string) {
	if m == nil {
		return
	}
	m.incCounter(fmt.Sprintf("violation|%s", region))
}

// IncBlock increments block counters by source.
func (m *InMemoryMetrics) IncBlock(source string, region string) {
	if m == nil {
		return
	}
	m.incCounter(fmt.Sprintf("block|%s|%s", source, region))
}

// IncStoreError increments store error counters.
func (m *InMemoryMetrics) IncStoreError(op string, region string) {
	if m == nil {
		return
	}
	m.incCounter(fmt.Sprintf("store_error|%s|%s", op, region))
}

// IncFailOpen increments the fail-open counter.
func (m *InMemoryMetrics) IncFailOpen(region string) {
	if m == nil {
		return
	}
	m.incCounter(fmt.Sprintf("fail_open|%s", region))
}

// ObserveLatency tracks latency measurements.
func (m *InMemoryMetrics) ObserveLatency(op string, d time.Duration, region string) {
	if m == nil {
		return
	}
	entry := m.getLatency(fmt.Sprintf("latency|%s|%s", op, region))
	if entry == nil {
		return
	}
	nanos := d.Nanoseconds()
	entry.count.Add(1)
	entry.totalNanos.Add(nanos)
	for {
		current := entry.maxNanos.Load()
		if nanos <= current {
			break
		}
		if entry.maxNanos.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// Snapshot exports metrics values.
func (m *InMemoryMetrics) Snapshot() map[string]any {
	result := map[string]any{}
	if m == nil {
		return result
	}

	counters := map[string]int64{}
	m.counters.Range(func(key, value any) bool {
		k, ok := key.(string)
		if !ok {
			return true
		}
		counter, ok := value.(*atomic.Int64)
		if !ok || counter == nil {
			return true
		}
		counters[k] = counter.Load()
		return true
	})

	latencies := map[string]map[string]int64{}
	m.latencies.Range(func(key, value any) bool {
		k, ok := key.(string)
		if !ok {
			return true
		}
		entry, ok := value.(*latencySummary)
		if !ok || entry == nil {
			return true
		}
		latencies[k] = map[string]int64{
			"count":      entry.count.Load(),
			"totalNanos": entry.totalNanos.Load(),
			"maxNanos":   entry.maxNanos.Load(),
		}
		return true
	})

	result["counters"] = counters
	result["latencies"] = latencies
	return result
}

func (m *InMemoryMetrics) incCounter(key string) {
	counter := m.getCounter(key)
	if counter == nil {
		return
	}
	counter.Add(1)
}

func (m *InMemoryMetrics) getCounter(key string) *atomic.Int64 {
	if key == "" {
		return nil
	}
	if existing, ok := m.counters.Load(key); ok {
		if counter, ok := existing.(*atomic.Int64); ok {
			return counter
		}
	}
	counter := &atomic.Int64{}
	actual, _ := m.counters.LoadOrStore(key, counter)
	if stored, ok := actual.(*atomic.Int64); ok {
		return stored
	}
	return counter
}

func (m *InMemoryMetrics) getLatency(key string) *latencySummary {
	if key == "" {
		return nil
	}
	if existing, ok := m.latencies.Load(key); ok {
		if entry, ok := existing.(*latencySummary); ok {
			return entry
		}
	}
	entry := &latencySummary{}
	actual, _ := m.latencies.LoadOrStore(key, entry)
	if stored, ok := actual.(*latencySummary); ok {
		return stored
	}
	return entry
}
