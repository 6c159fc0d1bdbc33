// internal/commands/compare.go
package llmeval

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/report"
	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/scoring"
)

// compareCmd prints the leaderboard for stored models.
var compareCmd = &cobra.Command{
	Use:   "compare [models...]",
	Short: "Compare stored results as a ranked leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		store, err := results.Open(ctx, *cfg)
		if err != nil {
			return err
		}
		sets, err := results.LoadAll(ctx, store, args)
		if err != nil {
			return err
		}

		filter := filterFromFlags(cmd)
		selected := catalog.Select(filter)
		lb := scoring.Aggregate(sets, selected, weights(cfg))
		if len(lb.Rows) == 0 {
			fmt.Fprintln(out, "No results to compare.")
			return nil
		}

		report.Compare(out, lb, len(filter.Categories) == 0)

		if save, _ := cmd.Flags().GetBool("save"); save {
			writer, ok := store.(results.ReportWriter)
			if !ok {
				return fmt.Errorf("storage backend %s cannot hold reports", cfg.StorageBackend())
			}
			path, err := writer.WriteReport(ctx, report.ComparisonFile, report.Markdown(lb, sets))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nReport saved: %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
	addFilterFlags(compareCmd)
	compareCmd.Flags().Bool("save", false, "also write comparison.md next to the results")
}
