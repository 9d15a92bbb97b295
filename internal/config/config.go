// Package config loads carbide-controller's configuration from a YAML
// file, environment variables, and defaults, the same layering the
// teacher's pkg/config uses for dittofs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nvidia/carbide-core/internal/store"
	"github.com/nvidia/carbide-core/internal/telemetry"
)

// Config is carbide-controller's static configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (CARBIDE_*), for keys that also appear in
//     the configuration file (highest priority)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// No CLI flag overrides individual values; the --config flag only
// selects the file. When no configuration file is found, Load returns
// DefaultConfig without consulting environment variables.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and
	// Pyroscope continuous profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the controller's persistent store (SQLite or
	// PostgreSQL) — objects, history, leases, and resource pools.
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Controller configures the State-Handler Framework's run loop.
	Controller ControllerConfig `mapstructure:"controller" yaml:"controller"`

	// ResourcePools configures the VLAN/VNI integer ranges seeded at
	// startup for the network segment handler to draw from.
	ResourcePools ResourcePoolConfig `mapstructure:"resource_pools" yaml:"resource_pools"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing and
// Pyroscope continuous profiling.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect.
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects,
	// inuse_space, goroutines, mutex_count, mutex_duration,
	// block_count, block_duration.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server. When
// Enabled is false, no registry is installed and every Record* call in
// pkg/metrics is a no-op.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ControllerConfig configures the State-Handler Framework's run loop
// for the network segment controller.
type ControllerConfig struct {
	// ProcessorID identifies this process among any peers sharing the
	// same object kind; defaults to the hostname if left empty.
	ProcessorID string `mapstructure:"processor_id" yaml:"processor_id"`

	// SweepInterval is how often the controller lists and dispatches
	// every object of its kind.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required,gt=0" yaml:"sweep_interval"`

	// LeaseTTL bounds how long a single dispatch may hold an object's
	// per-object lease before another processor may steal it.
	LeaseTTL time.Duration `mapstructure:"lease_ttl" validate:"required,gt=0" yaml:"lease_ttl"`

	// DrainPeriod is how long a network segment marked for deletion
	// must show zero allocated addresses before its row is deleted.
	DrainPeriod time.Duration `mapstructure:"drain_period" validate:"required,gt=0" yaml:"drain_period"`

	// WorkerPoolSize bounds how many objects a sweep dispatches
	// concurrently.
	WorkerPoolSize int `mapstructure:"worker_pool_size" validate:"required,gt=0" yaml:"worker_pool_size"`

	// ProcessorDispatchInterval separates each wave of up to
	// WorkerPoolSize concurrent dispatches within one sweep.
	ProcessorDispatchInterval time.Duration `mapstructure:"processor_dispatch_interval" validate:"required,gt=0" yaml:"processor_dispatch_interval"`
}

// ResourcePoolConfig configures the integer ranges internal/resourcepool
// seeds at startup.
type ResourcePoolConfig struct {
	VlanLow  int64 `mapstructure:"vlan_low" yaml:"vlan_low"`
	VlanHigh int64 `mapstructure:"vlan_high" yaml:"vlan_high"`
	VniLow   int64 `mapstructure:"vni_low" yaml:"vni_low"`
	VniHigh  int64 `mapstructure:"vni_high" yaml:"vni_high"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := DefaultConfig()
		return &cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error if no
// config file exists at the resolved path.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please create one first:\n"+
				"  carbide-controller init\n\n"+
				"Or specify a custom config file:\n"+
				"  carbide-controller start --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML, creating parent directories as
// needed. Used by the `init` subcommand to materialize a starter config.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CARBIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the mapstructure decode hooks config
// values need beyond plain field assignment: time.Duration parsing
// from human-readable strings like "30s"/"5m".
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "carbide-core")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "carbide-core")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// telemetryConfig adapts the top-level TelemetryConfig into the shape
// internal/telemetry.Init expects.
func (c TelemetryConfig) telemetryConfig(serviceName string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}

// TelemetryConfig returns the internal/telemetry.Config carbide-
// controller's entrypoint passes to telemetry.Init.
func (c *Config) TelemetryConfig() telemetry.Config {
	return c.Telemetry.telemetryConfig("carbide-controller")
}

// ProfilingConfig returns the internal/telemetry.ProfilingConfig
// carbide-controller's entrypoint passes to telemetry.InitProfiling.
func (c *Config) ProfilingConfig() telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    "carbide-controller",
		ServiceVersion: "dev",
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
	}
}
