package commands

import (
	"testing"

	"github.com/nvidia/carbide-core/internal/config"
	"github.com/nvidia/carbide-core/pkg/metrics"
)

func TestInitLoggerAppliesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"

	if err := initLogger(&cfg); err != nil {
		t.Fatalf("initLogger failed: %v", err)
	}
}

func TestInitMetricsDisabledReturnsNil(t *testing.T) {
	metrics.InitRegistry(nil)
	defer metrics.InitRegistry(nil)

	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = false

	if srv := initMetrics(&cfg); srv != nil {
		t.Error("expected nil metrics server when metrics are disabled")
	}
	if metrics.IsEnabled() {
		t.Error("expected metrics.IsEnabled to remain false")
	}
}

func TestInitMetricsEnabledInstallsRegistryAndServer(t *testing.T) {
	metrics.InitRegistry(nil)
	defer metrics.InitRegistry(nil)

	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 0 // ephemeral, avoid colliding with a real port in CI

	srv := initMetrics(&cfg)
	if srv == nil {
		t.Fatal("expected a non-nil metrics server when metrics are enabled")
	}
	defer srv.Close()

	if !metrics.IsEnabled() {
		t.Error("expected metrics.IsEnabled to report true once installed")
	}
}
