package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfsync/shelfsync/pkg/batch"
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/strategy"
)

var (
	batchEngineConfig string
	batchStrategy     string
	batchID           string
)

// batchCmd resolves a file of record pairs as one batch run.
var batchCmd = &cobra.Command{
	Use:   "batch <pairs.yaml>",
	Short: "Resolve conflicts as a batch run",
	Long: `Batch detects the conflicts in a YAML file of record pairs and
resolves them in one orchestrated run: sub-batched, with per-item
failures isolated and collected rather than aborting the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := loadPairs(args[0])
		if err != nil {
			return err
		}

		engine, err := newEngine(batchEngineConfig)
		if err != nil {
			return err
		}

		conflicts, err := engine.DetectConflicts(cmd.Context(), pairs)
		if err != nil {
			return err
		}

		refs := make([]*conflict.Conflict, len(conflicts))
		for i := range conflicts {
			refs[i] = &conflicts[i]
		}

		result, err := engine.ResolveBatch(cmd.Context(), batch.Request{
			BatchID:    batchID,
			Conflicts:  refs,
			StrategyID: strategy.ID(batchStrategy),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, result)
		}

		fmt.Fprintf(out, "batch %s: %d processed, %d succeeded, %d failed",
			result.BatchID, result.ProcessedCount, result.SuccessCount, result.ErrorCount)
		if result.Cancelled {
			fmt.Fprint(out, " (cancelled)")
		}
		fmt.Fprintln(out)
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  %s: %s\n", e.BookID, e.Message)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchEngineConfig, "engine-config", "", "engine config file")
	batchCmd.Flags().StringVar(&batchStrategy, "strategy", "", "strategy for every item (default: best ranked per item)")
	batchCmd.Flags().StringVar(&batchID, "batch-id", "", "batch identifier (default: generated)")
	rootCmd.AddCommand(batchCmd)
}
