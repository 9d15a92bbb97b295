package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nvidia/carbide-core/internal/config"
	"github.com/nvidia/carbide-core/internal/logger"
	"github.com/nvidia/carbide-core/internal/resourcepool"
	"github.com/nvidia/carbide-core/internal/store"
	"github.com/nvidia/carbide-core/internal/telemetry"
	"github.com/nvidia/carbide-core/pkg/metrics"
	"github.com/nvidia/carbide-core/pkg/networksegment"
	"github.com/nvidia/carbide-core/pkg/statecontroller"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the network segment controller",
	Long: `Start the State-Handler Framework controller loop over network
segment objects: lease acquisition, dispatch, and finalize, one sweep
per configured interval.

Use --config to specify a custom configuration file, or it will use
the default location at $XDG_CONFIG_HOME/carbide-core/config.yaml.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.TelemetryConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilingConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("carbide-controller starting", "version", Version)
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}

	metricsServer := initMetrics(cfg)
	if metricsServer != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := resourcepool.Seed(st, resourcepool.PoolVlan, cfg.ResourcePools.VlanLow, cfg.ResourcePools.VlanHigh); err != nil {
		return fmt.Errorf("failed to seed vlan pool: %w", err)
	}
	if err := resourcepool.Seed(st, resourcepool.PoolVni, cfg.ResourcePools.VniLow, cfg.ResourcePools.VniHigh); err != nil {
		return fmt.Errorf("failed to seed vni pool: %w", err)
	}

	handler := networksegment.NewHandler(cfg.Controller.DrainPeriod)
	controllerCfg := statecontroller.Config{
		Kind:             "network-segment",
		ProcessorID:      cfg.Controller.ProcessorID,
		SweepInterval:    cfg.Controller.SweepInterval,
		LeaseTTL:         cfg.Controller.LeaseTTL,
		WorkerPoolSize:   cfg.Controller.WorkerPoolSize,
		DispatchInterval: cfg.Controller.ProcessorDispatchInterval,
	}
	ctrl := statecontroller.New(controllerCfg, st, handler, networksegment.Codec{}, metrics.NewControllerMetrics())

	ctrl.Start(ctx)
	logger.Info("controller running",
		"processor_id", controllerCfg.ProcessorID,
		"sweep_interval", controllerCfg.SweepInterval,
		"lease_ttl", controllerCfg.LeaseTTL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("controller is running. Press Ctrl+C to stop.")
	<-sigChan
	signal.Stop(sigChan)

	logger.Info("shutdown signal received, initiating graceful shutdown")
	cancel()
	ctrl.Stop()
	logger.Info("controller stopped gracefully")

	return nil
}

func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// initMetrics installs the Prometheus registry backing pkg/metrics and,
// if enabled, serves it over HTTP on cfg.Metrics.Port. Returns nil when
// metrics are disabled, in which case every Record* call in pkg/metrics
// is already a no-op via metrics.IsEnabled.
func initMetrics(cfg *config.Config) *http.Server {
	if !cfg.Metrics.Enabled {
		logger.Info("metrics collection disabled")
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics.InitRegistry(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	return srv
}
