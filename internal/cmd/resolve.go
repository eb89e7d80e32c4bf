package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/beamspotlive/internal/config"
	"github.com/3leaps/beamspotlive/internal/observability"
	"github.com/3leaps/beamspotlive/pkg/inputs"
	"github.com/3leaps/beamspotlive/pkg/jobdesc"
	"github.com/3leaps/beamspotlive/pkg/ledger"
	"github.com/3leaps/beamspotlive/pkg/output"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

// resolveFlags holds the resolve command flags.
type resolveFlags struct {
	inputsPath    string
	unitTest      bool
	live          bool
	playback      bool
	runType       string
	runNumber     int64
	runKey        string
	runConfigType string
	searchPath    string
	liveInputDir  string
	replayFiles   []string
	output        string
	record        bool
}

var resolveOpts resolveFlags

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the beam-spot job configuration",
	Long: `Resolve the beam-spot monitoring job configuration and print the job
description.

Inputs come from flags or from an inputs file (--inputs). Flags given
explicitly override values from the file. Values missing from both fall back
to the configuration (search path, live input dir, replay files, run-config
type).

Output formats:
  yaml   the resolved bundle and job description (default)
  json   the same, as indented JSON
  jsonl  a single beamspotlive.bundle.v1 record, plus a
         beamspotlive.drift.v1 record when --record detects drift

Examples:
  # Live job for a physics run
  beamspotlive resolve --run-type pp_run --run-number 367100 --run-key abc

  # Unit test against the release data directory
  beamspotlive resolve --unit-test --run-type pp_run --search-path $CMSSW_SEARCH_PATH

  # From an inputs file, recorded in the ledger
  beamspotlive resolve --inputs job.yaml --output jsonl --record`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	f := resolveCmd.Flags()
	f.StringVarP(&resolveOpts.inputsPath, "inputs", "i", "", "Inputs file (YAML or JSON)")
	f.BoolVar(&resolveOpts.unitTest, "unit-test", false, "Resolve for the unit-test environment")
	f.BoolVar(&resolveOpts.live, "live", true, "Attach to the live DAQ stream (false selects file replay)")
	f.BoolVar(&resolveOpts.playback, "playback", false, "Running on a playback system")
	f.StringVar(&resolveOpts.runType, "run-type", "", "Run type (pp_run, pp_run_stage1, hpu_run, hi_run, commissioning_run, cosmic_run)")
	f.Int64Var(&resolveOpts.runNumber, "run-number", 0, "Run number")
	f.StringVar(&resolveOpts.runKey, "run-key", "", "Run unique key")
	f.StringVar(&resolveOpts.runConfigType, "run-config-type", "", "Run-config type (production, playback, userarea)")
	f.StringVar(&resolveOpts.searchPath, "search-path", "", "Colon-separated search path for the unit-test data directory")
	f.StringVar(&resolveOpts.liveInputDir, "live-input-dir", "", "Directory the live streamer files are read from")
	f.StringSliceVar(&resolveOpts.replayFiles, "replay-file", nil, "File read in replay mode (repeatable)")
	f.StringVarP(&resolveOpts.output, "output", "o", string(output.FormatYAML), "Output format: yaml, json, jsonl")
	f.BoolVar(&resolveOpts.record, "record", false, "Record the resolution in the ledger")
}

func runResolve(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	return resolveWith(cmd.Context(), resolveOpts, cmd.Flags().Changed, cfg, nil, cmd.OutOrStdout())
}

// resolveWith runs a resolution. changed reports whether a flag was set on
// the command line; fs is scanned for the unit-test data (nil means the OS).
func resolveWith(ctx context.Context, opts resolveFlags, changed func(string) bool, cfg *config.Config, fs afero.Fs, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format, err := output.ParseFormat(opts.output)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}

	file, err := buildInputsFile(opts, changed, cfg)
	if err != nil {
		if errors.Is(err, inputs.ErrNotFound) {
			return exitError(foundry.ExitFileNotFound, "Inputs file not found", err)
		}
		return exitError(foundry.ExitInvalidArgument, "Invalid inputs", err)
	}
	in, err := file.Inputs()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid inputs", err)
	}

	jobID := uuid.New().String()
	var jw *output.JSONLWriter
	if format == output.FormatJSONL {
		jw = output.NewJSONLWriter(out, jobID)
		defer func() { _ = jw.Close() }()
	}

	log := observability.CLILogger.With(zap.String("job_id", jobID))
	resolveOptions := []selector.Option{selector.WithLogger(log)}
	if fs != nil {
		resolveOptions = append(resolveOptions, selector.WithFs(fs))
	}

	bundle, err := selector.Resolve(in, resolveOptions...)
	if err != nil {
		if jw != nil {
			_ = jw.WriteError(ctx, in.RunNumber, output.ErrorRecordFor(err))
		}
		return exitError(foundry.ExitInvalidArgument, "Resolution failed", err)
	}
	desc, err := jobdesc.Build(bundle)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build job description", err)
	}
	fp, err := selector.Fingerprint(bundle)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to fingerprint bundle", err)
	}

	rec := &output.BundleRecord{Fingerprint: fp, Bundle: bundle, Description: desc}
	if jw != nil {
		err = jw.WriteBundle(ctx, bundle.RunNumber, rec)
	} else {
		err = output.Render(out, format, rec)
	}
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}

	if !opts.record {
		return nil
	}
	res, err := recordResolution(ctx, cfg, bundle)
	if err != nil {
		return err
	}
	if res.Drifted() {
		log.Warn("Resolution differs from the previous one recorded for this run",
			zap.Int64("run_number", bundle.RunNumber),
			zap.String("previous_fingerprint", res.Previous.Fingerprint),
			zap.String("fingerprint", fp))
		if jw != nil {
			drift := &output.DriftRecord{
				PreviousFingerprint: res.Previous.Fingerprint,
				Fingerprint:         fp,
				PreviousResolvedAt:  res.Previous.ResolvedAt,
			}
			if err := jw.WriteDrift(ctx, bundle.RunNumber, drift); err != nil {
				return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
			}
		}
	}
	return nil
}

// buildInputsFile merges the inputs file, the flags and the configuration,
// then validates the result against the inputs schema.
func buildInputsFile(opts resolveFlags, changed func(string) bool, cfg *config.Config) (*inputs.File, error) {
	if changed == nil {
		changed = func(string) bool { return false }
	}

	f := &inputs.File{}
	fromFile := opts.inputsPath != ""
	if fromFile {
		loaded, err := inputs.Load(opts.inputsPath)
		if err != nil {
			return nil, err
		}
		f = loaded
	} else if strings.TrimSpace(opts.runType) == "" {
		return nil, errors.New("--run-type is required unless --inputs is given")
	}

	use := func(name string) bool { return !fromFile || changed(name) }
	if use("unit-test") {
		f.UnitTest = opts.unitTest
	}
	if use("live") {
		live := opts.live
		f.Live = &live
	}
	if use("playback") {
		f.Playback = opts.playback
	}
	if use("run-type") {
		f.RunType = opts.runType
	}
	if use("run-number") {
		f.RunNumber = opts.runNumber
	}
	if use("run-key") {
		f.RunUniqueKey = opts.runKey
	}
	if opts.runConfigType != "" || changed("run-config-type") {
		f.RunConfigType = opts.runConfigType
	}
	if opts.searchPath != "" || changed("search-path") {
		f.SearchPath = opts.searchPath
	}
	if opts.liveInputDir != "" || changed("live-input-dir") {
		f.LiveInputDir = opts.liveInputDir
	}
	if len(opts.replayFiles) > 0 || changed("replay-file") {
		f.ReplayFiles = opts.replayFiles
	}

	if cfg != nil {
		if f.SearchPath == "" {
			f.SearchPath = cfg.SearchPath
		}
		if f.LiveInputDir == "" {
			f.LiveInputDir = cfg.Live.InputDir
		}
		if len(f.ReplayFiles) == 0 {
			f.ReplayFiles = cfg.Replay.Files
		}
		if f.RunConfigType == "" {
			f.RunConfigType = cfg.RunConfig.Type
		}
	}
	f.ApplyDefaults()

	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	return inputs.LoadFromBytes(data, "resolve.json")
}

// recordResolution appends bundle to the ledger.
func recordResolution(ctx context.Context, cfg *config.Config, bundle *selector.Bundle) (*ledger.RecordResult, error) {
	if cfg == nil || !cfg.Ledger.Enabled {
		return nil, exitError(foundry.ExitInvalidArgument, "Ledger is disabled", errors.New("set ledger.enabled to use --record"))
	}

	db, err := ledger.Open(ctx, ledgerConfig(cfg))
	if err != nil {
		return nil, exitError(foundry.ExitFileWriteError, "Failed to open ledger", err)
	}
	defer func() { _ = db.Close() }()

	if err := ledger.Migrate(ctx, db); err != nil {
		return nil, exitError(foundry.ExitFileWriteError, "Failed to migrate ledger", err)
	}
	entry, err := ledger.NewEntry(bundle, time.Now().UTC())
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Failed to build ledger entry", err)
	}
	res, err := ledger.Record(ctx, db, entry)
	if err != nil {
		return nil, exitError(foundry.ExitFileWriteError, "Failed to record resolution", err)
	}

	if res.Inserted {
		observability.CLILogger.Info("Recorded resolution",
			zap.String("resolution_id", res.Entry.ID),
			zap.Int64("run_number", res.Entry.RunNumber),
			zap.String("fingerprint", res.Entry.Fingerprint))
	} else {
		observability.CLILogger.Info("Resolution already recorded",
			zap.String("resolution_id", res.Entry.ID),
			zap.Int64("run_number", res.Entry.RunNumber))
	}
	return res, nil
}

// ledgerConfig maps the application config onto the ledger store config.
func ledgerConfig(cfg *config.Config) ledger.Config {
	path := cfg.Ledger.Path
	if path == "" && cfg.Ledger.URL == "" {
		path = config.DefaultLedgerPath()
	}
	return ledger.Config{
		Path:      path,
		URL:       cfg.Ledger.URL,
		AuthToken: cfg.Ledger.AuthToken,
	}
}
