// Package guard provides configuration for the application wiring.
package guard

import "time"

// Config captures dependency and runtime settings.
type Config struct {
	Region              string
	StoreKind           string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	Store               KVStore
	Limits              LimitPolicy
	Blocking            BlocklistPolicy
	CostTable           map[string]OperationCost
	DefaultCost         int64
	HTTPListenAddr      string
	EnableHTTP          bool
	EnableGRPC          bool
	GRPCListenAddr      string
	GRPCKeepAlive       time.Duration
	BreakerOptions      CircuitOptions
	HealthInterval      time.Duration
	StoreUnhealthyAfter time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	DrainTimeout        time.Duration
	MaxBodyBytes        int64
	EnableAuth          bool
	AdminToken          string
	EnablePrometheus    bool
	Metrics             Metrics
	Logger              Logger
}
