package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfsync/shelfsync/pkg/strategy"
)

var (
	resolveEngineConfig string
	resolveStrategy     string
	resolveUser         string
	resolveDryRun       bool
)

// resolveCmd detects and resolves the conflicts in a file of record pairs.
var resolveCmd = &cobra.Command{
	Use:   "resolve <pairs.yaml>",
	Short: "Resolve conflicts in record pairs",
	Long: `Resolve detects the conflicts in a YAML file of record pairs and
executes a resolution strategy against each. Without --strategy the
highest-confidence applicable strategy wins; --dry-run shows the ranked
recommendations without executing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := loadPairs(args[0])
		if err != nil {
			return err
		}

		engine, err := newEngine(resolveEngineConfig)
		if err != nil {
			return err
		}

		conflicts, err := engine.DetectConflicts(cmd.Context(), pairs)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(conflicts) == 0 {
			fmt.Fprintln(out, "no conflicts found")
			return nil
		}

		if resolveDryRun {
			for i := range conflicts {
				c := &conflicts[i]
				recs := engine.PersonalizedRecommendations(c, resolveUser)
				if jsonOutput {
					if err := printJSON(out, recs); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s (%s, %s):\n", c.BookID, c.Type, c.Severity)
				for _, rec := range recs {
					fmt.Fprintf(out, "  %-24s confidence=%.2f  %s\n", rec.Strategy, rec.Confidence, rec.Reason)
				}
			}
			return nil
		}

		for i := range conflicts {
			result, err := engine.Resolve(cmd.Context(), &conflicts[i], strategy.ID(resolveStrategy))
			if err != nil {
				return err
			}
			if jsonOutput {
				if err := printJSON(out, result); err != nil {
					return err
				}
				continue
			}
			switch {
			case result.RequiresReview:
				fmt.Fprintf(out, "%s  routed to manual review\n", result.BookID)
			case result.Success:
				fmt.Fprintf(out, "%s  resolved with %s\n", result.BookID, result.StrategyUsed)
			default:
				fmt.Fprintf(out, "%s  failed: %s\n", result.BookID, result.Error)
			}
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveEngineConfig, "engine-config", "", "engine config file")
	resolveCmd.Flags().StringVar(&resolveStrategy, "strategy", "", "strategy to use (default: best ranked)")
	resolveCmd.Flags().StringVar(&resolveUser, "user", "", "user whose learned preferences apply")
	resolveCmd.Flags().BoolVar(&resolveDryRun, "dry-run", false, "show recommendations without executing")
	rootCmd.AddCommand(resolveCmd)
}
