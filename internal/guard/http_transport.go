// Package guard provides an HTTP transport.
package guard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

// HTTPTransport serves the check and admin APIs over HTTP.
type HTTPTransport struct {
	addr         string
	srv          *http.Server
	evaluator    EvaluatorService
	admin        AdminService
	appReady     func() bool
	metrics      Metrics
	snapshot     func() map[string]any
	promHandler  http.Handler
	mode         func() OperatingMode
	logger       Logger
	region       string
	enableAuth   bool
	adminToken   string
	maxBodyBytes int64
	readTimeout  time.Duration
	writeTimeout time.Duration
	now          func() time.Time
	mux          http.Handler
	mu           sync.Mutex
}

// NewHTTPTransport constructs a transport bound to an address.
func NewHTTPTransport(addr string, ready func() bool) *HTTPTransport {
	if addr == "" {
		addr = ":8080"
	}
	if ready == nil {
		ready = func() bool { return false }
	}
	return &HTTPTransport{addr: addr, appReady: ready, now: time.Now}
}

// ServeEvaluator registers the evaluator service.
func (t *HTTPTransport) ServeEvaluator(service EvaluatorService) error {
	if service == nil {
		return errors.New("evaluator service is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evaluator = service
	return nil
}

// ServeAdmin registers the admin service.
func (t *HTTPTransport) ServeAdmin(service AdminService) error {
	if service == nil {
		return errors.New("admin service is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.admin = service
	return nil
}

// SetAuth enables bearer token auth for admin routes.
func (t *HTTPTransport) SetAuth(token string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enableAuth = token != ""
	t.adminToken = token
}

// SetObservability wires metrics, mode reporting, and logging.
func (t *HTTPTransport) SetObservability(metrics Metrics, snapshot func() map[string]any, prom http.Handler, mode func() OperatingMode, logger Logger, region string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = metrics
	t.snapshot = snapshot
	t.promHandler = prom
	t.mode = mode
	t.logger = logger
	t.region = region
}

// SetLimits configures body size and server timeouts.
func (t *HTTPTransport) SetLimits(maxBodyBytes int64, readTimeout, writeTimeout time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxBodyBytes = maxBodyBytes
	t.readTimeout = readTimeout
	t.writeTimeout = writeTimeout
}

// Start begins serving HTTP requests.
func (t *HTTPTransport) Start(ctx context.Context) error {
	if t == nil {
		return errors.New("http transport is nil")
	}
	handler, err := t.handler()
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.srv == nil {
		t.srv = &http.Server{
			Addr:         t.addr,
			Handler:      handler,
			ReadTimeout:  t.readTimeout,
			WriteTimeout: t.writeTimeout,
		}
	}
	srv := t.srv
	t.mu.Unlock()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	if t == nil {
		return errors.New("http transport is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	srv := t.srv
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (t *HTTPTransport) Handler() (http.Handler, error) {
	return t.handler()
}

func (t *HTTPTransport) handler() (http.Handler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mux != nil {
		return t.mux, nil
	}
	if t.evaluator == nil || t.admin == nil {
		return nil, errors.New("services must be registered before starting")
	}
	mux := http.NewServeMux()
	t.registerRoutes(mux)
	t.mux = mux
	return mux, nil
}

func (t *HTTPTransport) clock() time.Time {
	if t == nil || t.now == nil {
		return time.Now()
	}
	return t.now()
}
