// Package guard defines service capabilities.
package guard

import (
	"context"
	"time"
)

// EvaluatorService decides whether a request proceeds.
type EvaluatorService interface {
	Evaluate(ctx context.Context, identity, operation string) (*Decision, error)
	Policy() LimitPolicy
}

// AdminService manages the blocklist.
type AdminService interface {
	Block(ctx context.Context, identity, reason string, duration time.Duration) error
	Unblock(ctx context.Context, identity string) (bool, error)
	IsBlocked(ctx context.Context, identity string) (*BlocklistEntry, error)
}

// Transport serves external traffic.
type Transport interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
