// Package guard provides gRPC interceptors.
package guard

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func grpcRequestIDInterceptor(logger Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := uuid.NewString()
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger != nil {
			fields := map[string]any{
				"method":      info.FullMethod,
				"request_id":  requestID,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if err != nil {
				fields["error"] = err.Error()
				logger.Error("grpc request error", fields)
			} else {
				logger.Info("grpc request", fields)
			}
		}
		return resp, err
	}
}

func grpcAuthInterceptor(enableAuth bool, adminToken string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !enableAuth {
			return handler(ctx, req)
		}
		if !strings.HasPrefix(info.FullMethod, "/"+adminServiceName+"/") {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		expected := "Bearer " + adminToken
		values := md.Get("authorization")
		if len(values) == 0 || values[0] != expected {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return handler(ctx, req)
	}
}

func grpcMetricsInterceptor(metrics Metrics, region string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		method := grpcMethodName(info.FullMethod)
		start := time.Now()
		resp, err := handler(ctx, req)
		if metrics != nil {
			metrics.ObserveLatency(method, time.Since(start), region)
		}
		recordGRPCResult(metrics, method, err)
		return resp, err
	}
}

func grpcMethodName(fullMethod string) string {
	if fullMethod == "" {
		return "unknown"
	}
	return path.Base(fullMethod)
}

func recordGRPCResult(metrics Metrics, method string, err error) {
	if metrics == nil || method == "" {
		return
	}
	mem, ok := metrics.(*InMemoryMetrics)
	if !ok || mem == nil {
		return
	}
	result := "success"
	if err != nil {
		result = strings.ToLower(status.Code(err).String())
	}
	mem.incCounter(fmt.Sprintf("grpc|%s|%s", method, result))
}
