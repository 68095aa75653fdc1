// Package guard provides configuration loading.
package guard

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"strconv"
	"time"
)

// LoadOptions controls config loading.
type LoadOptions struct {
	ConfigPath string
	Args       []string
	Environ    []string
}

// LoadConfig loads configuration from defaults, file, env, and flags.
func LoadConfig(opts LoadOptions) (*Config, error) {
	args := opts.Args
	if args == nil {
		args = os.Args[1:]
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	flagOvr, err := parseFlagOverrides(args)
	if err != nil {
		return nil, err
	}

	configPath := opts.ConfigPath
	if flagOvr.ConfigPath != nil {
		configPath = *flagOvr.ConfigPath
	}

	cfg := defaultConfig()
	if configPath != "" {
		fileOvr, err := loadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		applyConfigOverrides(cfg, fileOvr)
	}
	if err := applyEnvOverrides(cfg, environ); err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, flagOvr)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Region:         "local",
		StoreKind:      "memory",
		RedisAddr:      "localhost:6379",
		EnableHTTP:     true,
		HTTPListenAddr: ":8080",
		EnableGRPC:     true,
		GRPCListenAddr: ":9090",
		Limits: LimitPolicy{
			RequestsPerMinute:   60,
			RequestsPerHour:     1000,
			BurstAllowance:      10,
			CostBudgetPerMinute: 100,
			CostBudgetPerHour:   2000,
			CounterTTLFactor:    2.0,
		},
		Blocking: BlocklistPolicy{
			ViolationThreshold: 10,
			ViolationTTL:       24 * time.Hour,
			AutoBlockDuration:  24 * time.Hour,
			PermanentBlockTTL:  30 * 24 * time.Hour,
		},
		CostTable: map[string]OperationCost{
			"read":   {Cost: 1, Multiplier: 1.0},
			"list":   {Cost: 2, Multiplier: 1.0},
			"search": {Cost: 5, Multiplier: 1.0},
			"export": {Cost: 15, Multiplier: 0.5},
		},
		DefaultCost: DefaultOperationCost,
		BreakerOptions: CircuitOptions{
			FailureThreshold: 5,
			OpenDuration:     time.Second,
			HalfOpenMaxCalls: 3,
		},
		HealthInterval:      100 * time.Millisecond,
		StoreUnhealthyAfter: 500 * time.Millisecond,
		HTTPReadTimeout:     5 * time.Second,
		HTTPWriteTimeout:    10 * time.Second,
		HTTPIdleTimeout:     60 * time.Second,
		DrainTimeout:        5 * time.Second,
		GRPCKeepAlive:       60 * time.Second,
		MaxBodyBytes:        1 << 20,
	}
}

type configOverrides struct {
	Region              *string               `json:"Region"`
	StoreKind           *string               `json:"StoreKind"`
	RedisAddr           *string               `json:"RedisAddr"`
	RedisPassword       *string               `json:"RedisPassword"`
	RedisDB             *int                  `json:"RedisDB"`
	Limits              *limitPolicyInput     `json:"Limits"`
	Blocking            *blocklistPolicyInput `json:"Blocking"`
	CostTable           map[string]costInput  `json:"CostTable"`
	DefaultCost         *int64                `json:"DefaultCost"`
	HTTPListenAddr      *string               `json:"HTTPListenAddr"`
	EnableHTTP          *bool                 `json:"EnableHTTP"`
	EnableGRPC          *bool                 `json:"EnableGRPC"`
	GRPCListenAddr      *string               `json:"GRPCListenAddr"`
	GRPCKeepAlive       *durationValue        `json:"GRPCKeepAlive"`
	BreakerOptions      *circuitOptionsInput  `json:"BreakerOptions"`
	HealthInterval      *durationValue        `json:"HealthInterval"`
	StoreUnhealthyAfter *durationValue        `json:"StoreUnhealthyAfter"`
	HTTPReadTimeout     *durationValue        `json:"HTTPReadTimeout"`
	HTTPWriteTimeout    *durationValue        `json:"HTTPWriteTimeout"`
	HTTPIdleTimeout     *durationValue        `json:"HTTPIdleTimeout"`
	DrainTimeout        *durationValue        `json:"DrainTimeout"`
	MaxBodyBytes        *int64                `json:"MaxBodyBytes"`
	EnableAuth          *bool                 `json:"EnableAuth"`
	AdminToken          *string               `json:"AdminToken"`
	EnablePrometheus    *bool                 `json:"EnablePrometheus"`
}

type limitPolicyInput struct {
	RequestsPerMinute   *int64   `json:"RequestsPerMinute"`
	RequestsPerHour     *int64   `json:"RequestsPerHour"`
	BurstAllowance      *int64   `json:"BurstAllowance"`
	CostBudgetPerMinute *int64   `json:"CostBudgetPerMinute"`
	CostBudgetPerHour   *int64   `json:"CostBudgetPerHour"`
	CounterTTLFactor    *float64 `json:"CounterTTLFactor"`
}

type blocklistPolicyInput struct {
	ViolationThreshold *int64         `json:"ViolationThreshold"`
	ViolationTTL       *durationValue `json:"ViolationTTL"`
	AutoBlockDuration  *durationValue `json:"AutoBlockDuration"`
	PermanentBlockTTL  *durationValue `json:"PermanentBlockTTL"`
}

type costInput struct {
	Cost       *int64   `json:"Cost"`
	Multiplier *float64 `json:"Multiplier"`
}

type circuitOptionsInput struct {
	FailureThreshold *int64         `json:"FailureThreshold"`
	OpenDuration     *durationValue `json:"OpenDuration"`
	HalfOpenMaxCalls *int64         `json:"HalfOpenMaxCalls"`
}

type durationValue struct {
	Value time.Duration
	Set   bool
}

func (d *durationValue) UnmarshalJSON(data []byte) error {
	if d == nil {
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err == nil {
		value, err := number.Int64()
		if err != nil {
			return err
		}
		d.Value = time.Duration(value) * time.Millisecond
		d.Set = true
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return err
		}
		d.Value = time.Duration(value) * time.Millisecond
		d.Set = true
		return nil
	}
	return errors.New("invalid duration value")
}

type flagOverrides struct {
	ConfigPath              *string
	Region                  *string
	StoreKind               *string
	RedisAddr               *string
	EnableHTTP              *bool
	HTTPListenAddr          *string
	EnableGRPC              *bool
	GRPCListenAddr          *string
	EnableAuth              *bool
	AdminToken              *string
	EnablePrometheus        *bool
	RequestsPerMinute       *int
	RequestsPerHour         *int
	BurstAllowance          *int
	BreakerFailureThreshold *int
	BreakerOpenMS           *int
}

func parseFlagOverrides(args []string) (flagOverrides, error) {
	fs := flag.NewFlagSet("guard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	setFlagUsage(fs)

	configPath := fs.String("config", "", "config file path")
	region := fs.String("region", "", "region value")
	storeKind := fs.String("store", "", "store kind")
	redisAddr := fs.String("redis_addr", "", "redis address")
	enableHTTP := fs.Bool("enable_http", false, "enable http")
	httpAddr := fs.String("http_addr", "", "http address")
	enableGRPC := fs.Bool("enable_grpc", false, "enable grpc")
	grpcAddr := fs.String("grpc_addr", "", "grpc address")
	enableAuth := fs.Bool("enable_auth", false, "enable auth")
	adminToken := fs.String("admin_token", "", "admin token")
	enableProm := fs.Bool("enable_prometheus", false, "enable prometheus metrics")
	rpm := fs.Int("rpm", 0, "requests per minute")
	rph := fs.Int("rph", 0, "requests per hour")
	burst := fs.Int("burst", 0, "burst allowance")
	breakerFailure := fs.Int("breaker_failure_threshold", 0, "breaker failure threshold")
	breakerOpen := fs.Int("breaker_open_ms", 0, "breaker open ms")

	if err := fs.Parse(args); err != nil {
		return flagOverrides{}, errors.New("invalid flag values")
	}

	overrides := flagOverrides{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			overrides.ConfigPath = configPath
		case "region":
			overrides.Region = region
		case "store":
			overrides.StoreKind = storeKind
		case "redis_addr":
			overrides.RedisAddr = redisAddr
		case "enable_http":
			overrides.EnableHTTP = enableHTTP
		case "http_addr":
			overrides.HTTPListenAddr = httpAddr
		case "enable_grpc":
			overrides.EnableGRPC = enableGRPC
		case "grpc_addr":
			overrides.GRPCListenAddr = grpcAddr
		case "enable_auth":
			overrides.EnableAuth = enableAuth
		case "admin_token":
			overrides.AdminToken = adminToken
		case "enable_prometheus":
			overrides.EnablePrometheus = enableProm
		case "rpm":
			overrides.RequestsPerMinute = rpm
		case "rph":
			overrides.RequestsPerHour = rph
		case "burst":
			overrides.BurstAllowance = burst
		case "breaker_failure_threshold":
			overrides.BreakerFailureThreshold = breakerFailure
		case "breaker_open_ms":
			overrides.BreakerOpenMS = breakerOpen
		}
	})
	return overrides, nil
}

func setFlagUsage(fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Usage = func() {}
}

func loadConfigFile(path string) (*configOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overrides configOverrides
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, err
	}
	return &overrides, nil
}

func applyConfigOverrides(cfg *Config, overrides *configOverrides) {
	if cfg == nil || overrides == nil {
		return
	}
	if overrides.Region != nil {
		cfg.Region = *overrides.Region
	}
	if overrides.StoreKind != nil {
		cfg.StoreKind = *overrides.StoreKind
	}
	if overrides.RedisAddr != nil {
		cfg.RedisAddr = *overrides.RedisAddr
	}
	if overrides.RedisPassword != nil {
		cfg.RedisPassword = *overrides.RedisPassword
	}
	if overrides.RedisDB != nil {
		cfg.RedisDB = *overrides.RedisDB
	}
	if overrides.Limits != nil {
		if overrides.Limits.RequestsPerMinute != nil {
			cfg.Limits.RequestsPerMinute = *overrides.Limits.RequestsPerMinute
		}
		if overrides.Limits.RequestsPerHour != nil {
			cfg.Limits.RequestsPerHour = *overrides.Limits.RequestsPerHour
		}
		if overrides.Limits.BurstAllowance != nil {
			cfg.Limits.BurstAllowance = *overrides.Limits.BurstAllowance
		}
		if overrides.Limits.CostBudgetPerMinute != nil {
			cfg.Limits.CostBudgetPerMinute = *overrides.Limits.CostBudgetPerMinute
		}
		if overrides.Limits.CostBudgetPerHour != nil {
			cfg.Limits.CostBudgetPerHour = *overrides.Limits.CostBudgetPerHour
		}
		if overrides.Limits.CounterTTLFactor != nil {
			cfg.Limits.CounterTTLFactor = *overrides.Limits.CounterTTLFactor
		}
	}
	if overrides.Blocking != nil {
		if overrides.Blocking.ViolationThreshold != nil {
			cfg.Blocking.ViolationThreshold = *overrides.Blocking.ViolationThreshold
		}
		if overrides.Blocking.ViolationTTL != nil && overrides.Blocking.ViolationTTL.Set {
			cfg.Blocking.ViolationTTL = overrides.Blocking.ViolationTTL.Value
		}
		if overrides.Blocking.AutoBlockDuration != nil && overrides.Blocking.AutoBlockDuration.Set {
			cfg.Blocking.AutoBlockDuration = overrides.Blocking.AutoBlockDuration.Value
		}
		if overrides.Blocking.PermanentBlockTTL != nil && overrides.Blocking.PermanentBlockTTL.Set {
			cfg.Blocking.PermanentBlockTTL = overrides.Blocking.PermanentBlockTTL.Value
		}
	}
	if overrides.CostTable != nil {
		table := make(map[string]OperationCost, len(overrides.CostTable))
		for name, input := range overrides.CostTable {
			cost := OperationCost{Multiplier: 1.0}
			if input.Cost != nil {
				cost.Cost = *input.Cost
			}
			if input.Multiplier != nil {
				cost.Multiplier = *input.Multiplier
			}
			table[name] = cost
		}
		cfg.CostTable = table
	}
	if overrides.DefaultCost != nil {
		cfg.DefaultCost = *overrides.DefaultCost
	}
	if overrides.HTTPListenAddr != nil {
		cfg.HTTPListenAddr = *overrides.HTTPListenAddr
	}
	if overrides.EnableHTTP != nil {
		cfg.EnableHTTP = *overrides.EnableHTTP
	}
	if overrides.EnableGRPC != nil {
		cfg.EnableGRPC = *overrides.EnableGRPC
	}
	if overrides.GRPCListenAddr != nil {
		cfg.GRPCListenAddr = *overrides.GRPCListenAddr
	}
	if overrides.GRPCKeepAlive != nil && overrides.GRPCKeepAlive.Set {
		cfg.GRPCKeepAlive = overrides.GRPCKeepAlive.Value
	}
	if overrides.BreakerOptions != nil {
		if overrides.BreakerOptions.FailureThreshold != nil {
			cfg.BreakerOptions.FailureThreshold = *overrides.BreakerOptions.FailureThreshold
		}
		if overrides.BreakerOptions.OpenDuration != nil && overrides.BreakerOptions.OpenDuration.Set {
			cfg.BreakerOptions.OpenDuration = overrides.BreakerOptions.OpenDuration.Value
		}
		if overrides.BreakerOptions.HalfOpenMaxCalls != nil {
			cfg.BreakerOptions.HalfOpenMaxCalls = *overrides.BreakerOptions.HalfOpenMaxCalls
		}
	}
	if overrides.HealthInterval != nil && overrides.HealthInterval.Set {
		cfg.HealthInterval = overrides.HealthInterval.Value
	}
	if overrides.StoreUnhealthyAfter != nil && overrides.StoreUnhealthyAfter.Set {
		cfg.StoreUnhealthyAfter = overrides.StoreUnhealthyAfter.Value
	}
	if overrides.HTTPReadTimeout != nil && overrides.HTTPReadTimeout.Set {
		cfg.HTTPReadTimeout = overrides.HTTPReadTimeout.Value
	}
	if overrides.HTTPWriteTimeout != nil && overrides.HTTPWriteTimeout.Set {
		cfg.HTTPWriteTimeout = overrides.HTTPWriteTimeout.Value
	}
	if overrides.HTTPIdleTimeout != nil && overrides.HTTPIdleTimeout.Set {
		cfg.HTTPIdleTimeout = overrides.HTTPIdleTimeout.Value
	}
	if overrides.DrainTimeout != nil && overrides.DrainTimeout.Set {
		cfg.DrainTimeout = overrides.DrainTimeout.Value
	}
	if overrides.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *overrides.MaxBodyBytes
	}
	if overrides.EnableAuth != nil {
		cfg.EnableAuth = *overrides.EnableAuth
	}
	if overrides.AdminToken != nil {
		cfg.AdminToken = *overrides.AdminToken
	}
	if overrides.EnablePrometheus != nil {
		cfg.EnablePrometheus = *overrides.EnablePrometheus
	}
}

func applyFlagOverrides(cfg *Config, overrides flagOverrides) {
	if cfg == nil {
		return
	}
	if overrides.Region != nil {
		cfg.Region = *overrides.Region
	}
	if overrides.StoreKind != nil {
		cfg.StoreKind = *overrides.StoreKind
	}
	if overrides.RedisAddr != nil {
		cfg.RedisAddr = *overrides.RedisAddr
	}
	if overrides.EnableHTTP != nil {
		cfg.EnableHTTP = *overrides.EnableHTTP
	}
	if overrides.HTTPListenAddr != nil {
		cfg.HTTPListenAddr = *overrides.HTTPListenAddr
	}
	if overrides.EnableGRPC != nil {
		cfg.EnableGRPC = *overrides.EnableGRPC
	}
	if overrides.GRPCListenAddr != nil {
		cfg.GRPCListenAddr = *overrides.GRPCListenAddr
	}
	if overrides.EnableAuth != nil {
		cfg.EnableAuth = *overrides.EnableAuth
	}
	if overrides.AdminToken != nil {
		cfg.AdminToken = *overrides.AdminToken
	}
	if overrides.EnablePrometheus != nil {
		cfg.EnablePrometheus = *overrides.EnablePrometheus
	}
	if overrides.RequestsPerMinute != nil {
		cfg.Limits.RequestsPerMinute = int64(*overrides.RequestsPerMinute)
	}
	if overrides.RequestsPerHour != nil {
		cfg.Limits.RequestsPerHour = int64(*overrides.RequestsPerHour)
	}
	if overrides.BurstAllowance != nil {
		cfg.Limits.BurstAllowance = int64(*overrides.BurstAllowance)
	}
	if overrides.BreakerFailureThreshold != nil {
		cfg.BreakerOptions.FailureThreshold = int64(*overrides.BreakerFailureThreshold)
	}
	if overrides.BreakerOpenMS != nil {
		cfg.BreakerOptions.OpenDuration = time.Duration(*overrides.BreakerOpenMS) * time.Millisecond
	}
}
