package guard

import (
	"context"
	"testing"
	"time"
)

func TestStoreHealthModeTransitions(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore(nil)
	health := NewStoreHealth(store, 20*time.Millisecond)
	ctx := context.Background()

	health.Update(ctx)
	if health.Mode() != ModeNormal {
		t.Fatalf("mode = %v, want normal", health.Mode())
	}

	store.SetHealthy(false)
	time.Sleep(25 * time.Millisecond)
	health.Update(ctx)
	if health.Mode() != ModeDegraded {
		t.Fatalf("mode = %v, want degraded after unhealthy window", health.Mode())
	}

	store.SetHealthy(true)
	health.Update(ctx)
	if health.Mode() != ModeNormal {
		t.Fatalf("mode = %v, want normal after recovery", health.Mode())
	}
}
