// internal/commands/models.go
package llmeval

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/results"
)

// modelsCmd lists models that have stored results.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List evaluated models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		store, err := results.Open(ctx, *cfg)
		if err != nil {
			return err
		}
		sets, err := results.LoadAll(ctx, store, nil)
		if err != nil {
			return err
		}
		if len(sets) == 0 {
			fmt.Fprintln(out, "No models evaluated yet.")
			return nil
		}

		fmt.Fprintf(out, "\nEvaluated models (%d):\n\n", len(sets))
		for _, set := range sets {
			scored := 0
			for _, id := range set.Runs.IDs() {
				if e, ok := set.Latest(id); ok && e.Judged() {
					scored++
				}
			}
			updated := set.Updated
			if updated == "" {
				updated = set.Created
			}
			if len(updated) > 10 {
				updated = updated[:10]
			}
			fmt.Fprintf(out, "  %-30s %3d prompts, %3d scored  (updated: %s)\n", set.ModelName, set.Runs.Len(), scored, updated)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
