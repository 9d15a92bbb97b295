package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nvidia/carbide-core/internal/store"
)

// DefaultConfig returns a fully-populated Config with sensible
// defaults, used when no config file is found at all.
func DefaultConfig() Config {
	cfg := Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		ShutdownTimeout: defaultShutdownTimeout,
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
		Controller: ControllerConfig{
			SweepInterval:             defaultSweepInterval,
			LeaseTTL:                  defaultLeaseTTL,
			DrainPeriod:               defaultDrainPeriod,
			WorkerPoolSize:            defaultWorkerPoolSize,
			ProcessorDispatchInterval: defaultDispatchInterval,
		},
		ResourcePools: ResourcePoolConfig{
			VlanLow:  defaultVlanLow,
			VlanHigh: defaultVlanHigh,
			VniLow:   defaultVniLow,
			VniHigh:  defaultVniHigh,
		},
	}
	ApplyDefaults(&cfg)
	return cfg
}

const (
	defaultShutdownTimeout  = 30 * time.Second
	defaultSweepInterval    = 10 * time.Second
	defaultLeaseTTL         = 30 * time.Second
	defaultDrainPeriod      = 5 * time.Minute
	defaultWorkerPoolSize   = 8
	defaultDispatchInterval = time.Second

	defaultVlanLow  int64 = 100
	defaultVlanHigh int64 = 4000
	defaultVniLow   int64 = 1_000_000
	defaultVniHigh  int64 = 1_100_000

	defaultMetricsPort = 9090
)

// ApplyDefaults fills in any zero-valued field left unset by the config
// file or environment, mirroring the teacher's own ApplyDefaults(*Config)
// pass that runs after unmarshal and before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.Profiling.Endpoint == "" {
		cfg.Telemetry.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.Database.ApplyDefaults()

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = defaultMetricsPort
	}

	if cfg.Controller.ProcessorID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Controller.ProcessorID = host
		} else {
			cfg.Controller.ProcessorID = "carbide-controller"
		}
	}
	if cfg.Controller.SweepInterval == 0 {
		cfg.Controller.SweepInterval = defaultSweepInterval
	}
	if cfg.Controller.LeaseTTL == 0 {
		cfg.Controller.LeaseTTL = defaultLeaseTTL
	}
	if cfg.Controller.DrainPeriod == 0 {
		cfg.Controller.DrainPeriod = defaultDrainPeriod
	}
	if cfg.Controller.WorkerPoolSize == 0 {
		cfg.Controller.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.Controller.ProcessorDispatchInterval == 0 {
		cfg.Controller.ProcessorDispatchInterval = defaultDispatchInterval
	}

	if cfg.ResourcePools.VlanHigh == 0 {
		cfg.ResourcePools.VlanLow = defaultVlanLow
		cfg.ResourcePools.VlanHigh = defaultVlanHigh
	}
	if cfg.ResourcePools.VniHigh == 0 {
		cfg.ResourcePools.VniLow = defaultVniLow
		cfg.ResourcePools.VniHigh = defaultVniHigh
	}
}

var validate = validator.New()

// Validate checks the struct tags of cfg (validator/v10) plus the
// domain-specific cross-field checks struct tags can't express, then
// delegates to the database config's own Validate for its
// type-dependent required fields.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return err
	}

	if cfg.ResourcePools.VlanLow >= cfg.ResourcePools.VlanHigh {
		return fmt.Errorf("resource_pools.vlan_low must be less than vlan_high")
	}
	if cfg.ResourcePools.VniLow >= cfg.ResourcePools.VniHigh {
		return fmt.Errorf("resource_pools.vni_low must be less than vni_high")
	}

	return nil
}
