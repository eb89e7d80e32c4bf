package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/beamspotlive/internal/config"
	"github.com/3leaps/beamspotlive/pkg/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded resolutions",
	Long: `List resolutions recorded in the ledger, newest first.

Each row is one distinct configuration resolved for a run. A run with more
than one row was resolved to different configurations over time (drift).

Examples:
  # Recent resolutions
  beamspotlive history

  # All resolutions for one run, as JSON
  beamspotlive history --run 367100 --json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int64("run", 0, "Only show this run number")
	historyCmd.Flags().Int("limit", 50, "Maximum rows to show (0 for all)")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	run, _ := cmd.Flags().GetInt64("run")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if limit < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --limit value", fmt.Errorf("limit must be >= 0"))
	}
	cfg, err := currentConfig()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	return historyWith(cmd.Context(), cfg, ledger.Query{RunNumber: run, Limit: limit}, jsonOutput, cmd.OutOrStdout())
}

func historyWith(ctx context.Context, cfg *config.Config, q ledger.Query, jsonOutput bool, out io.Writer) error {
	if !cfg.Ledger.Enabled {
		return exitError(foundry.ExitInvalidArgument, "Ledger is disabled", fmt.Errorf("set ledger.enabled to list history"))
	}

	db, err := ledger.Open(ctx, ledgerConfig(cfg))
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to open ledger", err)
	}
	defer func() { _ = db.Close() }()

	if err := ledger.Migrate(ctx, db); err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to migrate ledger", err)
	}
	entries, err := ledger.List(ctx, db, q)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list resolutions", err)
	}

	if jsonOutput {
		return printHistoryJSON(out, entries)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "No resolutions recorded")
		return nil
	}
	return printHistoryTable(out, entries)
}

func printHistoryJSON(out io.Writer, entries []ledger.Entry) error {
	if entries == nil {
		entries = []ledger.Entry{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func printHistoryTable(out io.Writer, entries []ledger.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RESOLVED\tRUN\tMODE\tRUN TYPE\tBEAM FIT\tFINGERPRINT\tID")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%t\t%s\t%s\n",
			e.ResolvedAt.Format(time.RFC3339),
			e.RunNumber,
			e.Mode,
			e.RunType,
			e.BeamFit,
			shortFingerprint(e.Fingerprint),
			e.ID,
		)
	}
	return w.Flush()
}

func shortFingerprint(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}
