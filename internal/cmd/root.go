// Package cmd implements the beamspotlive command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/beamspotlive/internal/config"
	"github.com/3leaps/beamspotlive/internal/observability"
)

// AppIdentity names the binary and its configuration surface.
type AppIdentity struct {
	BinaryName string
	EnvPrefix  string
	ConfigName string
}

var appIdentity = &AppIdentity{
	BinaryName: config.AppName,
	EnvPrefix:  config.EnvPrefix,
	ConfigName: config.AppName,
}

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "beamspotlive",
	Short: "Resolve the live HLT beam-spot DQM job configuration",
	Long: `beamspotlive resolves, once and deterministically, the configuration of the
live HLT beam-spot monitoring job: input source, raw-data label, tracking
collections and database upload target. The result is rendered as a job
description and can be recorded in a local resolution ledger.

Examples:
  beamspotlive resolve --run-type pp_run --run-number 367100 --run-key abc
  beamspotlive resolve --inputs job.yaml --output json --record
  beamspotlive history --run 367100
  beamspotlive serve --port 8080`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./beamspotlive.yaml, then the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// initRuntime sets up logging and loads configuration before every command.
func initRuntime(cmd *cobra.Command, _ []string) error {
	observability.InitCLILogger(appIdentity.BinaryName, verbose)

	cfg, err := config.LoadFile(cmd.Context(), cfgFile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	level := logLevel
	if level == "" && !verbose {
		level = cfg.Logging.Level
	}
	if level != "" {
		if err := observability.SetCLILevel(level); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --log-level value", err)
		}
	}

	observability.CLILogger.Debug("Configuration loaded",
		zap.String("config_file", cfgFile),
		zap.String("search_path", cfg.SearchPath),
		zap.Bool("ledger_enabled", cfg.Ledger.Enabled))
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the application identity.
func GetAppIdentity() *AppIdentity {
	return appIdentity
}

// currentConfig returns the loaded configuration, loading defaults when a
// command runs without the root pre-run (tests).
func currentConfig() (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	return config.Load(context.Background())
}

// cliError carries the process exit code for a failed command.
type cliError struct {
	code    int
	message string
	err     error
}

func (e *cliError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *cliError) Unwrap() error {
	return e.err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	if err == nil {
		err = errors.New(message)
	}
	return &cliError{code: code, message: message, err: err}
}

// ExitCode returns the exit code carried by err, or 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// ExitWithCode logs err and terminates the process.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	if logger == nil {
		logger = observability.CLILogger
	}
	logger.Error(message, zap.Error(err), zap.Int("exit_code", code))
	_ = logger.Sync()
	os.Exit(code)
}
