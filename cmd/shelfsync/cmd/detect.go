package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var detectEngineConfig string

// detectCmd classifies the conflicts in a file of record pairs.
var detectCmd = &cobra.Command{
	Use:   "detect <pairs.yaml>",
	Short: "Detect conflicts in record pairs",
	Long: `Detect reads record pairs from a YAML file and classifies the
divergences between them: progress mismatches, title differences,
timestamp drift, tag differences, or combinations of these.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := loadPairs(args[0])
		if err != nil {
			return err
		}

		engine, err := newEngine(detectEngineConfig)
		if err != nil {
			return err
		}

		conflicts, err := engine.DetectConflicts(cmd.Context(), pairs)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, conflicts)
		}

		fmt.Fprintf(out, "%d pair(s) examined, %d conflict(s) found\n", len(pairs), len(conflicts))
		for _, c := range conflicts {
			fmt.Fprintf(out, "  %s  %-20s severity=%s confidence=%.2f\n",
				c.BookID, c.Type, c.Severity, c.Confidence)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectEngineConfig, "engine-config", "", "engine config file")
	rootCmd.AddCommand(detectCmd)
}
