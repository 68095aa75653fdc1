// Package guard provides environment config overrides.
package guard

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

func applyEnvOverrides(cfg *Config, environ []string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	values := envMap(environ)
	if value, ok := values["GUARD_REGION"]; ok {
		cfg.Region = value
	}
	if value, ok := values["GUARD_STORE"]; ok {
		cfg.StoreKind = value
	}
	if value, ok := values["GUARD_REDIS_ADDR"]; ok {
		cfg.RedisAddr = value
	}
	if value, ok := values["GUARD_REDIS_PASSWORD"]; ok {
		cfg.RedisPassword = value
	}
	if value, ok := values["GUARD_REDIS_DB"]; ok {
		parsed, err := parseIntEnv("GUARD_REDIS_DB", value)
		if err != nil {
			return err
		}
		cfg.RedisDB = int(parsed)
	}
	if value, ok := values["GUARD_ENABLE_HTTP"]; ok {
		parsed, err := parseBoolEnv("GUARD_ENABLE_HTTP", value)
		if err != nil {
			return err
		}
		cfg.EnableHTTP = parsed
	}
	if value, ok := values["GUARD_HTTP_ADDR"]; ok {
		cfg.HTTPListenAddr = value
	}
	if value, ok := values["GUARD_ENABLE_GRPC"]; ok {
		parsed, err := parseBoolEnv("GUARD_ENABLE_GRPC", value)
		if err != nil {
			return err
		}
		cfg.EnableGRPC = parsed
	}
	if value, ok := values["GUARD_GRPC_ADDR"]; ok {
		cfg.GRPCListenAddr = value
	}
	if value, ok := values["GUARD_ENABLE_AUTH"]; ok {
		parsed, err := parseBoolEnv("GUARD_ENABLE_AUTH", value)
		if err != nil {
			return err
		}
		cfg.EnableAuth = parsed
	}
	if value, ok := values["GUARD_ADMIN_TOKEN"]; ok {
		cfg.AdminToken = value
	}
	if value, ok := values["GUARD_ENABLE_PROMETHEUS"]; ok {
		parsed, err := parseBoolEnv("GUARD_ENABLE_PROMETHEUS", value)
		if err != nil {
			return err
		}
		cfg.EnablePrometheus = parsed
	}
	if value, ok := values["GUARD_RPM"]; ok {
		parsed, err := parseIntEnv("GUARD_RPM", value)
		if err != nil {
			return err
		}
		cfg.Limits.RequestsPerMinute = parsed
	}
	if value, ok := values["GUARD_RPH"]; ok {
		parsed, err := parseIntEnv("GUARD_RPH", value)
		if err != nil {
			return err
		}
		cfg.Limits.RequestsPerHour = parsed
	}
	if value, ok := values["GUARD_BURST"]; ok {
		parsed, err := parseIntEnv("GUARD_BURST", value)
		if err != nil {
			return err
		}
		cfg.Limits.BurstAllowance = parsed
	}
	if value, ok := values["GUARD_COST_BUDGET_MINUTE"]; ok {
		parsed, err := parseIntEnv("GUARD_COST_BUDGET_MINUTE", value)
		if err != nil {
			return err
		}
		cfg.Limits.CostBudgetPerMinute = parsed
	}
	if value, ok := values["GUARD_COST_BUDGET_HOUR"]; ok {
		parsed, err := parseIntEnv("GUARD_COST_BUDGET_HOUR", value)
		if err != nil {
			return err
		}
		cfg.Limits.CostBudgetPerHour = parsed
	}
	if value, ok := values["GUARD_DEFAULT_COST"]; ok {
		parsed, err := parseIntEnv("GUARD_DEFAULT_COST", value)
		if err != nil {
			return err
		}
		cfg.DefaultCost = parsed
	}
	if value, ok := values["GUARD_VIOLATION_THRESHOLD"]; ok {
		parsed, err := parseIntEnv("GUARD_VIOLATION_THRESHOLD", value)
		if err != nil {
			return err
		}
		cfg.Blocking.ViolationThreshold = parsed
	}
	if value, ok := values["GUARD_BREAKER_FAILURE_THRESHOLD"]; ok {
		parsed, err := parseIntEnv("GUARD_BREAKER_FAILURE_THRESHOLD", value)
		if err != nil {
			return err
		}
		cfg.BreakerOptions.FailureThreshold = parsed
	}
	if value, ok := values["GUARD_BREAKER_OPEN_MS"]; ok {
		parsed, err := parseIntEnv("GUARD_BREAKER_OPEN_MS", value)
		if err != nil {
			return err
		}
		cfg.BreakerOptions.OpenDuration = time.Duration(parsed) * time.Millisecond
	}
	return nil
}

func envMap(environ []string) map[string]string {
	values := make(map[string]string)
	for _, entry := range environ {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = parts[1]
	}
	return values
}

func parseBoolEnv(name, value string) (bool, error) {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, errors.New("invalid env value for " + name)
	}
	return parsed, nil
}

func parseIntEnv(name, value string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.New("invalid env value for " + name)
	}
	return parsed, nil
}
