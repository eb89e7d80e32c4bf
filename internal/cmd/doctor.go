package cmd

import (
	"context"
	"fmt"
	goversion "go/version"
	"os"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/beamspotlive/internal/config"
	apperrors "github.com/3leaps/beamspotlive/internal/errors"
	"github.com/3leaps/beamspotlive/internal/observability"
	"github.com/3leaps/beamspotlive/pkg/ledger"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Checks the toolchain, the software search path and the unit-test data
directory, the streamer files available to the unit-test and live sources,
and the resolution ledger.

Examples:
  beamspotlive doctor
  CMSSW_SEARCH_PATH=/opt/release/src beamspotlive doctor`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) {
	identity := GetAppIdentity()
	bannerName := "doctor"
	if identity != nil && identity.BinaryName != "" {
		bannerName = identity.BinaryName + " doctor"
	}
	log := observability.CLILogger
	log.Info("=== " + bannerName + " ===")
	log.Info("Running diagnostic checks...")

	versions := crucible.GetVersion()
	if versions.Crucible == "" {
		ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible",
			apperrors.NewExternalServiceError("Crucible service unavailable"))
		return
	}

	cfg, err := currentConfig()
	if err != nil {
		ExitWithCode(log, foundry.ExitInvalidArgument, "Invalid configuration",
			apperrors.WrapInternal(cmd.Context(), err, "Invalid configuration"))
		return
	}

	results := []checkResult{
		checkGoVersion(runtime.Version()),
		checkModuleVersion("Crucible", versions.Crucible),
		checkModuleVersion("Gofulmen", versions.Gofulmen),
		checkConfigDir(),
	}
	results = append(results, runSiteChecks(cmd.Context(), afero.NewOsFs(), cfg)...)
	results = append(results, checkResult{
		name:   "environment",
		ok:     true,
		detail: runtime.GOOS + "/" + runtime.GOARCH,
		fields: []zap.Field{zap.String("os", runtime.GOOS), zap.String("arch", runtime.GOARCH)},
	})

	healthy := true
	for i, r := range results {
		r.log(i+1, len(results))
		healthy = healthy && r.ok
	}

	if healthy {
		log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", bannerName))
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("=== End Diagnostics ===")
}

// minGoVersion is the oldest recommended toolchain.
const minGoVersion = "go1.23"

func checkGoVersion(v string) checkResult {
	res := checkResult{name: "Go version", detail: v, fields: []zap.Field{zap.String("go_version", v)}}
	if strings.HasPrefix(v, "devel") || goversion.Compare(v, minGoVersion) >= 0 {
		res.ok = true
		return res
	}
	res.detail = fmt.Sprintf("%s (recommended: %s+)", v, minGoVersion)
	return res
}

func checkModuleVersion(name, v string) checkResult {
	res := checkResult{name: name + " access"}
	if v == "" {
		res.detail = "cannot access " + name
		return res
	}
	res.ok = true
	res.detail = "v" + v
	res.fields = []zap.Field{zap.String(strings.ToLower(name)+"_version", v)}
	return res
}

func checkConfigDir() checkResult {
	res := checkResult{name: "config directory"}
	dir, err := os.UserConfigDir()
	if err != nil {
		res.detail = "cannot find config directory"
		res.fields = []zap.Field{zap.Error(err)}
		return res
	}
	res.ok = true
	res.detail = dir
	res.fields = []zap.Field{zap.String("config_dir", dir)}
	return res
}

// checkResult is the outcome of one site check.
type checkResult struct {
	name   string
	ok     bool
	detail string
	fields []zap.Field
}

func (r checkResult) log(checkNum, totalChecks int) {
	if r.ok {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking %s... ✅ %s", checkNum, totalChecks, r.name, r.detail), r.fields...)
		return
	}
	observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking %s... ⚠️  %s", checkNum, totalChecks, r.name, r.detail), r.fields...)
}

// runSiteChecks checks the search path, the streamer files the unit-test and
// live sources would read, and the ledger.
func runSiteChecks(ctx context.Context, fs afero.Fs, cfg *config.Config) []checkResult {
	results := make([]checkResult, 0, 4)

	dataDir, res := checkUnitTestData(fs, cfg.SearchPath)
	results = append(results, res)

	if dataDir == "" {
		results = append(results, checkResult{
			name:   "unit-test streamer files",
			detail: "skipped (no unit-test data directory)",
		})
	} else {
		results = append(results, checkStreamerFiles(fs, "unit-test streamer files", dataDir))
	}

	results = append(results, checkStreamerFiles(fs, "live streamer files", cfg.Live.InputDir))
	results = append(results, checkLedger(ctx, cfg))
	return results
}

func checkUnitTestData(fs afero.Fs, searchPath string) (string, checkResult) {
	res := checkResult{name: "unit-test data directory"}
	if strings.TrimSpace(searchPath) == "" {
		res.detail = "search path is empty (set CMSSW_SEARCH_PATH or search_path)"
		return "", res
	}
	dir, err := selector.FindSearchPathDir(fs, searchPath, selector.UnitTestDataSubpath)
	if err != nil {
		res.detail = err.Error()
		res.fields = []zap.Field{zap.String("search_path", searchPath)}
		return "", res
	}
	res.ok = true
	res.detail = dir
	res.fields = []zap.Field{zap.String("data_dir", dir)}
	return dir, res
}

func checkStreamerFiles(fs afero.Fs, name, dir string) checkResult {
	res := checkResult{name: name}
	files, err := selector.ListStreamerFiles(fs, dir, selector.BeamspotStreamLabel)
	if err != nil {
		res.detail = err.Error()
		return res
	}
	res.fields = []zap.Field{zap.String("dir", dir), zap.Int("files", len(files))}
	if len(files) == 0 {
		res.detail = fmt.Sprintf("no %s files in %s", selector.BeamspotStreamLabel, dir)
		return res
	}
	res.ok = true
	res.detail = fmt.Sprintf("%d file(s) in %s", len(files), dir)
	return res
}

func checkLedger(ctx context.Context, cfg *config.Config) checkResult {
	res := checkResult{name: "resolution ledger"}
	if !cfg.Ledger.Enabled {
		res.ok = true
		res.detail = "disabled"
		return res
	}

	lc := ledgerConfig(cfg)
	target := lc.Path
	if lc.URL != "" {
		target = lc.URL
	}
	db, err := ledger.Open(ctx, lc)
	if err != nil {
		res.detail = err.Error()
		return res
	}
	defer func() { _ = db.Close() }()

	if err := ledger.Migrate(ctx, db); err != nil {
		res.detail = err.Error()
		return res
	}
	res.ok = true
	res.detail = target
	res.fields = []zap.Field{zap.String("ledger", target)}
	return res
}
