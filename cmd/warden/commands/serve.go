package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/logger"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/panel/api"
	"github.com/wardenhq/warden/pkg/panel/engine"
	"github.com/wardenhq/warden/pkg/panel/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the warden panel",
	Long: `Start the warden panel with the specified configuration.

The panel serves the REST API, runs the provisioning engine, and
optionally exposes Prometheus metrics on a separate port.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/warden/config.yaml.

Examples:
  # Start with default config location
  warden serve

  # Start with custom config file
  warden serve --config /etc/warden/config.yaml

  # Start with environment variable overrides
  WARDEN_LOGGING_LEVEL=DEBUG warden serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Initialize metrics first so the engine and API pick up an
	// enabled registry.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}
	engineMetrics := metrics.NewEngineMetrics()

	// Panel store (runs schema migration on startup)
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize panel store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	logger.Info("Panel store initialized", "type", string(cfg.Database.Type))

	// Ensure admin user exists (generates random password on first run
	// unless one was configured via 'warden init')
	adminPassword, err := st.EnsureAdminUser(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if adminPassword != "" {
		logger.Info("Admin user created", "username", cfg.Admin.Username)
		fmt.Printf("\n*** IMPORTANT: Admin user created with password: %s ***\n", adminPassword)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}

	metrics.RegisterServersGauge(func() float64 {
		n, err := st.CountServers(context.Background())
		if err != nil {
			return 0
		}
		return float64(n)
	})

	// Provisioning engine
	eng := engine.New(st, cfg.Engine, engineMetrics)
	logger.Info("Engine initialized",
		"port_range_start", cfg.Engine.PortRangeStart,
		"port_range_end", cfg.Engine.PortRangeEnd)

	// API server
	apiServer, err := api.NewServer(cfg.API, eng, st, engineMetrics, Version)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	logger.Info("API server configured", "port", apiServer.Port())

	// Metrics server runs on its own port so the scrape endpoint never
	// shares the public API surface.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Start API server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	var serveErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			serveErr = err
		} else {
			logger.Info("Server stopped gracefully")
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			serveErr = err
		} else {
			logger.Info("Server stopped")
		}
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", "error", err)
		}
	}

	return serveErr
}
