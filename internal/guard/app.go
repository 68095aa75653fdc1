// Package guard wires application dependencies.
package guard

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Application holds core components for the service.
type Application struct {
	Config      *Config
	Store       KVStore
	Breaker     *CircuitBreaker
	Blocklist   *Blocklist
	Evaluator   *Evaluator
	StoreHealth *StoreHealth
	HealthLoop  *HealthLoop
	ready       atomic.Bool
	transports  []Transport
	metrics     Metrics
	inMem       *InMemoryMetrics
	prom        *PrometheusMetrics
	logger      Logger
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewApplication validates configuration and prepares the application.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("region is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NewZerologLogger(os.Stderr)
	}

	store := cfg.Store
	if store == nil {
		switch cfg.StoreKind {
		case "", "memory":
			store = NewInMemoryStore(nil)
		case "redis":
			redisStore, err := NewRedisStore(redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}))
			if err != nil {
				return nil, err
			}
			store = redisStore
		default:
			return nil, errors.New("unknown store kind: " + cfg.StoreKind)
		}
	}

	app := &Application{Config: cfg, Store: store, logger: logger}

	metrics := cfg.Metrics
	if metrics == nil {
		if cfg.EnablePrometheus {
			prom := NewPrometheusMetrics()
			app.prom = prom
			metrics = prom
		} else {
			inMem := NewInMemoryMetrics()
			app.inMem = inMem
			metrics = inMem
		}
	}
	app.metrics = metrics

	costs := NewCostModel(cfg.CostTable, cfg.DefaultCost)
	breaker := NewCircuitBreaker(cfg.BreakerOptions)
	blocklist := NewBlocklist(store, cfg.Blocking, metrics, logger, cfg.Region)
	evaluator := NewEvaluator(store, costs, blocklist, cfg.Limits, breaker, metrics, logger, cfg.Region)
	health := NewStoreHealth(store, cfg.StoreUnhealthyAfter)
	health.SetLogger(logger)

	app.Breaker = breaker
	app.Blocklist = blocklist
	app.Evaluator = evaluator
	app.StoreHealth = health
	app.HealthLoop = NewHealthLoop(health, cfg.HealthInterval)

	admin := &adminBlocklist{blocklist: blocklist}

	if cfg.EnableHTTP {
		transport := NewHTTPTransport(cfg.HTTPListenAddr, app.Ready)
		if err := transport.ServeEvaluator(evaluator); err != nil {
			return nil, err
		}
		if err := transport.ServeAdmin(admin); err != nil {
			return nil, err
		}
		if cfg.EnableAuth {
			transport.SetAuth(cfg.AdminToken)
		}
		var snapshot func() map[string]any
		if app.inMem != nil {
			snapshot = app.inMem.Snapshot
		}
		var promHandler http.Handler
		if app.prom != nil {
			promHandler = app.prom.Handler()
		}
		transport.SetObservability(metrics, snapshot, promHandler, app.Mode, logger, cfg.Region)
		transport.SetLimits(cfg.MaxBodyBytes, cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout)
		app.transports = append(app.transports, transport)
	}

	if cfg.EnableGRPC {
		transport := NewGRPCTransport(cfg.GRPCListenAddr, app.Ready, app.Mode, GRPCTransportConfig{
			EnableAuth: cfg.EnableAuth,
			AdminToken: cfg.AdminToken,
			KeepAlive:  cfg.GRPCKeepAlive,
			Metrics:    metrics,
			Logger:     logger,
			Region:     cfg.Region,
		})
		if err := transport.ServeAdmin(admin); err != nil {
			return nil, err
		}
		app.transports = append(app.transports, transport)
	}

	return app, nil
}

// adminBlocklist adapts the blocklist to the AdminService contract.
type adminBlocklist struct {
	blocklist *Blocklist
}

func (a *adminBlocklist) Block(ctx context.Context, identity, reason string, duration time.Duration) error {
	return a.blocklist.Block(ctx, identity, reason, duration)
}

func (a *adminBlocklist) Unblock(ctx context.Context, identity string) (bool, error) {
	return a.blocklist.Unblock(ctx, identity)
}

func (a *adminBlocklist) IsBlocked(ctx context.Context, identity string) (*BlocklistEntry, error) {
	return a.blocklist.IsBlocked(ctx, identity)
}

// Start begins background work for the application.
func (app *Application) Start(ctx context.Context) error {
	if app == nil {
		return errors.New("application is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	app.cancel = cancel

	if app.HealthLoop != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			_ = app.HealthLoop.Start(ctx)
		}()
	}
	for _, transport := range app.transports {
		transport := transport
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			_ = transport.Start(ctx)
		}()
	}

	app.ready.Store(true)

	return nil
}

// Shutdown stops background work for the application.
func (app *Application) Shutdown(ctx context.Context) error {
	if app == nil {
		return errors.New("application is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if app.cancel != nil {
		app.cancel()
	}
	app.ready.Store(false)
	for _, transport := range app.transports {
		if transport == nil {
			continue
		}
		_ = transport.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the application has completed startup.
func (app *Application) Ready() bool {
	if app == nil {
		return false
	}
	return app.ready.Load()
}

// Mode returns the current operating mode.
func (app *Application) Mode() OperatingMode {
	if app == nil || app.StoreHealth == nil {
		return ModeNormal
	}
	return app.StoreHealth.Mode()
}

// Metrics returns the application's metrics recorder.
func (app *Application) Metrics() Metrics {
	if app == nil {
		return nil
	}
	return app.metrics
}
