package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadNoConfigFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistent := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistent)
	if err != nil {
		t.Fatalf("expected no error loading defaults, got: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default logging level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Controller.SweepInterval != 10*time.Second {
		t.Errorf("expected default sweep interval 10s, got %v", cfg.Controller.SweepInterval)
	}
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
logging:
  level: DEBUG
  format: json
  output: stdout

shutdown_timeout: 15s

database:
  type: sqlite
  sqlite:
    path: ` + filepath.ToSlash(filepath.Join(tmpDir, "controller.db")) + `

controller:
  sweep_interval: 5s
  lease_ttl: 20s
  drain_period: 1m
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected explicit level DEBUG preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Controller.SweepInterval != 5*time.Second {
		t.Errorf("expected explicit sweep interval 5s, got %v", cfg.Controller.SweepInterval)
	}
	// unset in the file, so ApplyDefaults must have filled these in.
	if cfg.ResourcePools.VlanHigh != defaultVlanHigh {
		t.Errorf("expected default vlan high %d, got %d", defaultVlanHigh, cfg.ResourcePools.VlanHigh)
	}
	if cfg.Metrics.Port != defaultMetricsPort {
		t.Errorf("expected default metrics port %d, got %d", defaultMetricsPort, cfg.Metrics.Port)
	}
	if cfg.Controller.WorkerPoolSize != defaultWorkerPoolSize {
		t.Errorf("expected default worker pool size %d, got %d", defaultWorkerPoolSize, cfg.Controller.WorkerPoolSize)
	}
	if cfg.Controller.ProcessorDispatchInterval != defaultDispatchInterval {
		t.Errorf("expected default dispatch interval %v, got %v", defaultDispatchInterval, cfg.Controller.ProcessorDispatchInterval)
	}
}

func TestMustLoadReportsMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	missing := filepath.Join(tmpDir, "missing.yaml")

	_, err := MustLoad(missing)
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestSaveConfigRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Logging.Level = "WARN"
	cfg.Controller.ProcessorID = "test-processor"

	if err := SaveConfig(&cfg, configPath); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("reload after save failed: %v", err)
	}
	if loaded.Logging.Level != "WARN" {
		t.Errorf("expected saved level WARN to round-trip, got %q", loaded.Logging.Level)
	}
	if loaded.Controller.ProcessorID != "test-processor" {
		t.Errorf("expected saved processor id to round-trip, got %q", loaded.Controller.ProcessorID)
	}
}

func TestGetDefaultConfigPathHonorsXDGConfigHome(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	want := filepath.Join(tmpDir, "carbide-core", "config.yaml")
	if got := GetDefaultConfigPath(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
