package guard

import (
	"context"
	"testing"
	"time"
)

func TestNewApplicationValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewApplication(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := NewApplication(&Config{}); err == nil {
		t.Fatalf("expected error for missing region")
	}
	if _, err := NewApplication(&Config{Region: "test", StoreKind: "etcd"}); err == nil {
		t.Fatalf("expected error for unknown store kind")
	}
}

func TestApplicationLifecycle(t *testing.T) {
	t.Parallel()

	app, err := NewApplication(&Config{
		Region:         "test",
		StoreKind:      "memory",
		EnableHTTP:     false,
		EnableGRPC:     false,
		HealthInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if app.Ready() {
		t.Fatalf("application must not be ready before start")
	}
	if app.Evaluator == nil || app.Blocklist == nil || app.Store == nil {
		t.Fatalf("core components missing: %+v", app)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !app.Ready() {
		t.Fatalf("application must be ready after start")
	}
	if app.Mode() != ModeNormal {
		t.Fatalf("mode = %v, want normal", app.Mode())
	}

	decision, err := app.Evaluator.Evaluate(ctx, "1.2.3.4", "read")
	if err != nil || !decision.Allowed {
		t.Fatalf("evaluate through app = %+v, %v", decision, err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if app.Ready() {
		t.Fatalf("application must not be ready after shutdown")
	}
}

func TestApplicationMetricsSelection(t *testing.T) {
	t.Parallel()

	app, err := NewApplication(&Config{Region: "test", EnableHTTP: false, EnableGRPC: false})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if _, ok := app.Metrics().(*InMemoryMetrics); !ok {
		t.Fatalf("default metrics should be in-memory, got %T", app.Metrics())
	}

	app, err = NewApplication(&Config{Region: "test", EnableHTTP: false, EnableGRPC: false, EnablePrometheus: true})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if _, ok := app.Metrics().(*PrometheusMetrics); !ok {
		t.Fatalf("expected prometheus metrics, got %T", app.Metrics())
	}
}
