// internal/commands/dashboard.go
package llmeval

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/report"
	"github.com/mwiater/llmeval/internal/results"
)

// dashboardCmd regenerates the HTML dashboard.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Generate the HTML dashboard from stored results",
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
		regen := newRegenerator(cfg, store, catalog)
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			regen.Path = path
		}

		path, err := regen.Regenerate(ctx)
		if errors.Is(err, report.ErrNoResults) {
			fmt.Fprintln(out, "No results to generate dashboard from.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Dashboard generated: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringP("output", "o", "", "output path (default from report.dashboard_path)")
}
