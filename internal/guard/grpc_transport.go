// Package guard provides a gRPC transport for the admin API.
package guard

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

const adminServiceName = "guard.v1.AdminService"

// Admin wire messages. The service is registered from a hand-written
// ServiceDesc over the JSON codec, so these structs are the schema.
type grpcBlockRequest struct {
	Identity        string `json:"identity"`
	Reason          string `json:"reason"`
	DurationSeconds int64  `json:"durationSeconds"`
}

type grpcUnblockRequest struct {
	Identity string `json:"identity"`
}

type grpcStatusRequest struct {
	Identity string `json:"identity"`
}

type grpcAdminAck struct {
	Existed bool `json:"existed,omitempty"`
}

type grpcBlockStatus struct {
	Identity   string `json:"identity"`
	Blocked    bool   `json:"blocked"`
	Reason     string `json:"reason,omitempty"`
	BlockedAt  int64  `json:"blockedAt,omitempty"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
	Violations int64  `json:"violations,omitempty"`
}

// grpcAdminBackend is the server contract behind the ServiceDesc.
type grpcAdminBackend interface {
	Block(ctx context.Context, req *grpcBlockRequest) (*grpcAdminAck, error)
	Unblock(ctx context.Context, req *grpcUnblockRequest) (*grpcAdminAck, error)
	Status(ctx context.Context, req *grpcStatusRequest) (*grpcBlockStatus, error)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*grpcAdminBackend)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Block", Handler: adminBlockHandler},
		{MethodName: "Unblock", Handler: adminUnblockHandler},
		{MethodName: "Status", Handler: adminStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "guard/v1/admin",
}

// GRPCTransport serves the admin API over gRPC.
type GRPCTransport struct {
	addr  string
	lis   net.Listener
	srv   *grpc.Server
	admin AdminService
	ready func() bool
	mode  func() OperatingMode
	cfg   GRPCTransportConfig
	mu    sync.Mutex
}

// GRPCTransportConfig carries transport options.
type GRPCTransportConfig struct {
	EnableAuth bool
	AdminToken string
	KeepAlive  time.Duration
	Metrics    Metrics
	Logger     Logger
	Region     string
}

// NewGRPCTransport constructs a transport bound to an address.
func NewGRPCTransport(addr string, ready func() bool, mode func() OperatingMode, cfg GRPCTransportConfig) *GRPCTransport {
	if addr == "" {
		addr = ":9090"
	}
	if ready == nil {
		ready = func() bool { return false }
	}
	if mode == nil {
		mode = func() OperatingMode { return ModeNormal }
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	return &GRPCTransport{addr: addr, ready: ready, mode: mode, cfg: cfg}
}

// ServeAdmin registers the admin service.
func (t *GRPCTransport) ServeAdmin(service AdminService) error {
	if service == nil {
		return errors.New("admin service is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.admin = service
	return nil
}

// Listener overrides the transport's listener, for in-process testing.
func (t *GRPCTransport) Listener(lis net.Listener) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lis = lis
}

// Start begins serving gRPC requests.
func (t *GRPCTransport) Start(ctx context.Context) error {
	if t == nil {
		return errors.New("grpc transport is nil")
	}
	t.mu.Lock()
	if t.admin == nil {
		t.mu.Unlock()
		return errors.New("services must be registered before starting")
	}
	listener := t.lis
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", t.addr)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		t.lis = listener
	}
	if t.srv == nil {
		opts := []grpc.ServerOption{
			grpc.ForceServerCodec(jsonCodec{}),
			grpc.ChainUnaryInterceptor(
				grpcRequestIDInterceptor(t.cfg.Logger),
				grpcAuthInterceptor(t.cfg.EnableAuth, t.cfg.AdminToken),
				grpcMetricsInterceptor(t.cfg.Metrics, t.cfg.Region),
			),
			grpc.KeepaliveParams(keepalive.ServerParameters{Time: t.cfg.KeepAlive}),
		}
		t.srv = grpc.NewServer(opts...)
		t.srv.RegisterService(&adminServiceDesc, &grpcAdminServer{service: t.admin})
	}
	srv := t.srv
	t.mu.Unlock()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown stops the gRPC server.
func (t *GRPCTransport) Shutdown(ctx context.Context) error {
	if t == nil {
		return errors.New("grpc transport is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	srv := t.srv
	listener := t.lis
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
		if listener != nil {
			_ = listener.Close()
		}
		return ctx.Err()
	}
	if listener != nil {
		_ = listener.Close()
	}
	return nil
}

type grpcAdminServer struct {
	service AdminService
}

func (s *grpcAdminServer) Block(ctx context.Context, req *grpcBlockRequest) (*grpcAdminAck, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	if s == nil || s.service == nil {
		return nil, status.Error(codes.Internal, "admin service is required")
	}
	if req.Identity == "" || req.Reason == "" || req.DurationSeconds < 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	if err := s.service.Block(ctx, req.Identity, req.Reason, duration); err != nil {
		return nil, grpcError(err)
	}
	return &grpcAdminAck{Existed: true}, nil
}

func (s *grpcAdminServer) Unblock(ctx context.Context, req *grpcUnblockRequest) (*grpcAdminAck, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	if s == nil || s.service == nil {
		return nil, status.Error(codes.Internal, "admin service is required")
	}
	existed, err := s.service.Unblock(ctx, req.Identity)
	if err != nil {
		return nil, grpcError(err)
	}
	return &grpcAdminAck{Existed: existed}, nil
}

func (s *grpcAdminServer) Status(ctx context.Context, req *grpcStatusRequest) (*grpcBlockStatus, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	if s == nil || s.service == nil {
		return nil, status.Error(codes.Internal, "admin service is required")
	}
	entry, err := s.service.IsBlocked(ctx, req.Identity)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := &grpcBlockStatus{Identity: req.Identity}
	if entry != nil {
		resp.Blocked = true
		resp.Reason = entry.Reason
		resp.BlockedAt = entry.BlockedAt.Unix()
		resp.Violations = entry.Violations
		if !entry.ExpiresAt.IsZero() {
			resp.ExpiresAt = entry.ExpiresAt.Unix()
		}
	}
	return resp, nil
}

func adminBlockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(grpcBlockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	backend, ok := srv.(grpcAdminBackend)
	if !ok {
		return nil, status.Error(codes.Internal, "admin service is required")
	}
	if interceptor == nil {
		return backend.Block(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + adminServiceName + "/Block"}
	handler := func(ctx context.Context, req any) (any, error) {
		return backend.Block(ctx, req.(*grpcBlockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func adminUnblockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(grpcUnblockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	backend, ok := srv.(grpcAdminBackend)
	if !ok {
		return nil, status.Error(codes.Internal, "admin service is required")
	}
	if interceptor == nil {
		return backend.Unblock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + adminServiceName + "/Unblock"}
	handler := func(ctx context.Context, req any) (any, error) {
		return backend.Unblock(ctx, req.(*grpcUnblockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func adminStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(grpcStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	backend, ok := srv.(grpcAdminBackend)
	if !ok {
		return nil, status.Error(codes.Internal, "admin service is required")
	}
	if interceptor == nil {
		return backend.Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + adminServiceName + "/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return backend.Status(ctx, req.(*grpcStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func grpcError(err error) error {
	switch CodeOf(err) {
	case CodeInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case CodeNotFound:
		return status.Error(codes.NotFound, err.Error())
	case CodeUnauthorized:
		return status.Error(codes.Unauthenticated, err.Error())
	case CodeStoreUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
