// internal/commands/rejudge.go
package llmeval

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/rescoring"
	"github.com/mwiater/llmeval/internal/results"
)

// rejudgeCmd re-scores stored responses with the current judge.
var rejudgeCmd = &cobra.Command{
	Use:   "rejudge [models...]",
	Short: "Re-score stored responses with the current judge",
	Long: `Re-run the judge on the latest stored response of each prompt without calling the
evaluated model again. Responses already scored by the current judge are skipped unless
--force is given. With no arguments every stored model is processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfigFile(); err != nil {
			return err
		}
		cfg := GetConfig()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		jdg, judgeName, err := buildJudge(ctx, cfg)
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		store, err := results.Open(ctx, *cfg)
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		parallel, _ := cmd.Flags().GetInt("parallel")
		if parallel <= 0 {
			parallel = cfg.Parallelism()
		}
		banner(out,
			fmt.Sprintf("Rejudging with: %s", judgeName),
			fmt.Sprintf("Models: %s", describeModels(args)),
			fmt.Sprintf("Force: %v", force),
		)

		_, err = rescoring.Rejudge(ctx, store, rescoring.Options{
			Models:      args,
			Force:       force,
			Delay:       cfg.Delay(),
			Catalog:     catalog,
			Judge:       jdg,
			JudgeName:   judgeName,
			Exclude:     judgeName,
			Parallel:    parallel,
			Regenerator: newRegenerator(cfg, store, catalog),
			Out:         out,
		})
		return err
	},
}

func describeModels(args []string) string {
	if len(args) == 0 {
		return "all stored"
	}
	return fmt.Sprintf("%d", len(args))
}

func init() {
	rootCmd.AddCommand(rejudgeCmd)
	rejudgeCmd.Flags().Bool("force", false, "rejudge even when already scored by the current judge")
	rejudgeCmd.Flags().Int("parallel", 0, "models to process concurrently (default from eval.parallel)")
}
