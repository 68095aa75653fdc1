// Package guard provides CLI helpers.
package guard

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"time"
)

// PrintConfig writes the config to the writer as JSON.
func PrintConfig(w io.Writer, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if w == nil {
		return errors.New("writer is required")
	}
	snapshot := newConfigSnapshot(cfg)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

type durationMillis time.Duration

func (d durationMillis) MarshalJSON() ([]byte, error) {
	ms := time.Duration(d).Milliseconds()
	return []byte(strconv.FormatInt(ms, 10)), nil
}

type configSnapshot struct {
	Region              string
	StoreKind           string
	RedisAddr           string
	RedisDB             int
	Limits              limitPolicySnapshot
	Blocking            blocklistPolicySnapshot
	CostTable           map[string]OperationCost
	DefaultCost         int64
	HTTPListenAddr      string
	EnableHTTP          bool
	EnableGRPC          bool
	GRPCListenAddr      string
	GRPCKeepAlive       durationMillis
	BreakerOptions      circuitOptionsSnapshot
	HealthInterval      durationMillis
	StoreUnhealthyAfter durationMillis
	HTTPReadTimeout     durationMillis
	HTTPWriteTimeout    durationMillis
	HTTPIdleTimeout     durationMillis
	DrainTimeout        durationMillis
	MaxBodyBytes        int64
	EnableAuth          bool
	EnablePrometheus    bool
}

type limitPolicySnapshot struct {
	RequestsPerMinute   int64
	RequestsPerHour     int64
	BurstAllowance      int64
	CostBudgetPerMinute int64
	CostBudgetPerHour   int64
	CounterTTLFactor    float64
}

type blocklistPolicySnapshot struct {
	ViolationThreshold int64
	ViolationTTL       durationMillis
	AutoBlockDuration  durationMillis
	PermanentBlockTTL  durationMillis
}

type circuitOptionsSnapshot struct {
	FailureThreshold int64
	OpenDuration     durationMillis
	HalfOpenMaxCalls int64
}

func newConfigSnapshot(cfg *Config) configSnapshot {
	snapshot := configSnapshot{}
	if cfg == nil {
		return snapshot
	}
	snapshot.Region = cfg.Region
	snapshot.StoreKind = cfg.StoreKind
	snapshot.RedisAddr = cfg.RedisAddr
	snapshot.RedisDB = cfg.RedisDB
	snapshot.Limits = limitPolicySnapshot{
		RequestsPerMinute:   cfg.Limits.RequestsPerMinute,
		RequestsPerHour:     cfg.Limits.RequestsPerHour,
		BurstAllowance:      cfg.Limits.BurstAllowance,
		CostBudgetPerMinute: cfg.Limits.CostBudgetPerMinute,
		CostBudgetPerHour:   cfg.Limits.CostBudgetPerHour,
		CounterTTLFactor:    cfg.Limits.CounterTTLFactor,
	}
	snapshot.Blocking = blocklistPolicySnapshot{
		ViolationThreshold: cfg.Blocking.ViolationThreshold,
		ViolationTTL:       durationMillis(cfg.Blocking.ViolationTTL),
		AutoBlockDuration:  durationMillis(cfg.Blocking.AutoBlockDuration),
		PermanentBlockTTL:  durationMillis(cfg.Blocking.PermanentBlockTTL),
	}
	snapshot.CostTable = cfg.CostTable
	snapshot.DefaultCost = cfg.DefaultCost
	snapshot.HTTPListenAddr = cfg.HTTPListenAddr
	snapshot.EnableHTTP = cfg.EnableHTTP
	snapshot.EnableGRPC = cfg.EnableGRPC
	snapshot.GRPCListenAddr = cfg.GRPCListenAddr
	snapshot.GRPCKeepAlive = durationMillis(cfg.GRPCKeepAlive)
	snapshot.BreakerOptions = circuitOptionsSnapshot{
		FailureThreshold: cfg.BreakerOptions.FailureThreshold,
		OpenDuration:     durationMillis(cfg.BreakerOptions.OpenDuration),
		HalfOpenMaxCalls: cfg.BreakerOptions.HalfOpenMaxCalls,
	}
	snapshot.HealthInterval = durationMillis(cfg.HealthInterval)
	snapshot.StoreUnhealthyAfter = durationMillis(cfg.StoreUnhealthyAfter)
	snapshot.HTTPReadTimeout = durationMillis(cfg.HTTPReadTimeout)
	snapshot.HTTPWriteTimeout = durationMillis(cfg.HTTPWriteTimeout)
	snapshot.HTTPIdleTimeout = durationMillis(cfg.HTTPIdleTimeout)
	snapshot.DrainTimeout = durationMillis(cfg.DrainTimeout)
	snapshot.MaxBodyBytes = cfg.MaxBodyBytes
	snapshot.EnableAuth = cfg.EnableAuth
	snapshot.EnablePrometheus = cfg.EnablePrometheus
	return snapshot
}
