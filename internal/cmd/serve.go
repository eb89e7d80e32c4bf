package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/beamspotlive/internal/config"
	"github.com/3leaps/beamspotlive/internal/observability"
	"github.com/3leaps/beamspotlive/internal/server"
	"github.com/3leaps/beamspotlive/internal/server/handlers"
	"github.com/3leaps/beamspotlive/pkg/ledger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resolution service",
	Long: `Run the HTTP resolution service.

Endpoints:
  GET /v1/resolve      resolve a configuration from query parameters
  GET /version         build information
  GET /health          aggregate health
  GET /health/live     liveness
  GET /health/ready    readiness
  GET /health/startup  startup

The service is read-only: resolutions are not recorded in the ledger.

Examples:
  beamspotlive serve
  beamspotlive serve --host 0.0.0.0 --port 9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (default from config)")
	serveCmd.Flags().Int("port", 0, "Listen port (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
		if port < 0 || port > 65535 {
			return exitError(foundry.ExitInvalidArgument, "Invalid --port value", fmt.Errorf("port must be in 0..65535"))
		}
	}

	logger, err := observability.NewServerLogger(appIdentity.BinaryName, cfg.Logging.Level)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := handlers.InitHealthManager(versionInfo.Version)
	health.RegisterChecker("signals", signalHealthChecker{})
	health.RegisterChecker("identity", identityHealthChecker{
		binaryName: appIdentity.BinaryName,
		envPrefix:  appIdentity.EnvPrefix,
		configName: appIdentity.ConfigName,
	})
	if cfg.Ledger.Enabled {
		db, err := ledger.Open(ctx, ledgerConfig(cfg))
		if err != nil {
			logger.Warn("Ledger unavailable; readiness will report it", zap.Error(err))
		} else {
			defer func() { _ = db.Close() }()
		}
		health.RegisterChecker("ledger", ledgerHealthChecker{db: db})
	}

	srv := server.New(host, port,
		server.WithLogger(logger),
		server.WithVersion(handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		}),
		server.WithResolveDefaults(resolveDefaults(cfg)),
		server.WithRateLimit(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout, cfg.Server.ShutdownTimeout),
	)

	observability.CLILogger.Info("Starting resolution service", zap.String("addr", srv.Addr()))
	if err := srv.Start(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Resolution service failed", err)
	}
	return nil
}

func resolveDefaults(cfg *config.Config) handlers.ResolveDefaults {
	return handlers.ResolveDefaults{
		SearchPath:    cfg.SearchPath,
		LiveInputDir:  cfg.Live.InputDir,
		RunConfigType: cfg.RunConfig.Type,
		ReplayFiles:   cfg.Replay.Files,
	}
}

// signalHealthChecker reports healthy while the process can receive signals.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(context.Context) error {
	return nil
}

// identityHealthChecker verifies the application identity is complete.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(context.Context) error {
	switch {
	case c.binaryName == "":
		return errors.New("missing binary name")
	case c.envPrefix == "":
		return errors.New("missing env prefix")
	case c.configName == "":
		return errors.New("missing config name")
	}
	return nil
}

// ledgerHealthChecker pings the ledger database.
type ledgerHealthChecker struct {
	db *sql.DB
}

func (c ledgerHealthChecker) CheckHealth(ctx context.Context) error {
	if c.db == nil {
		return errors.New("ledger not open")
	}
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping ledger: %w", err)
	}
	return nil
}
