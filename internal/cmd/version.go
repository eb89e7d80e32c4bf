package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return printVersion(cmd.OutOrStdout(), jsonOutput)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}

type versionOutput struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

func printVersion(w io.Writer, jsonOutput bool) error {
	deps := crucible.GetVersion()
	v := versionOutput{
		Version:   versionInfo.Version,
		Commit:    versionInfo.Commit,
		BuildDate: versionInfo.BuildDate,
		GoVersion: runtime.Version(),
		Gofulmen:  deps.Gofulmen,
		Crucible:  deps.Crucible,
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	_, _ = fmt.Fprintf(w, "%s %s\n", appIdentity.BinaryName, v.Version)
	_, _ = fmt.Fprintf(w, "  commit:     %s\n", v.Commit)
	_, _ = fmt.Fprintf(w, "  built:      %s\n", v.BuildDate)
	_, _ = fmt.Fprintf(w, "  go:         %s\n", v.GoVersion)
	if v.Gofulmen != "" {
		_, _ = fmt.Fprintf(w, "  gofulmen:   %s\n", v.Gofulmen)
	}
	if v.Crucible != "" {
		_, _ = fmt.Fprintf(w, "  crucible:   %s\n", v.Crucible)
	}
	return nil
}
