package guard

import (
	"testing"
	"time"
)

func TestInMemoryMetricsSnapshot(t *testing.T) {
	t.Parallel()

	m := NewInMemoryMetrics()
	m.IncEvaluate("allowed", "minute", "test")
	m.IncEvaluate("allowed", "minute", "test")
	m.IncViolation("test")
	m.IncBlock("auto", "test")
	m.IncStoreError("evaluate", "test")
	m.IncFailOpen("test")
	m.ObserveLatency("evaluate", 5*time.Millisecond, "test")
	m.ObserveLatency("evaluate", 2*time.Millisecond, "test")

	snapshot := m.Snapshot()
	counters, ok := snapshot["counters"].(map[string]int64)
	if !ok {
		t.Fatalf("missing counters in snapshot")
	}
	if counters["evaluate|allowed|minute|test"] != 2 {
		t.Fatalf("evaluate counter = %d, want 2", counters["evaluate|allowed|minute|test"])
	}
	if counters["violation|test"] != 1 || counters["fail_open|test"] != 1 {
		t.Fatalf("counters = %+v", counters)
	}

	latencies, ok := snapshot["latencies"].(map[string]map[string]int64)
	if !ok {
		t.Fatalf("missing latencies in snapshot")
	}
	entry := latencies["latency|evaluate|test"]
	if entry["count"] != 2 {
		t.Fatalf("latency count = %d, want 2", entry["count"])
	}
	if entry["maxNanos"] != (5 * time.Millisecond).Nanoseconds() {
		t.Fatalf("latency max = %d", entry["maxNanos"])
	}
}
