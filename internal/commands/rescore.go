// internal/commands/rescore.go
package llmeval

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/rescoring"
	"github.com/mwiater/llmeval/internal/results"
)

// rescoreCmd adds secondary metric scores to stored responses.
var rescoreCmd = &cobra.Command{
	Use:     "rescore [models...]",
	Aliases: []string{"deepeval"},
	Short:   "Score stored responses with the secondary metrics",
	Long: `Run the secondary metrics (correctness, coherence, instruction following) on the
latest stored response of each prompt. Responses that already carry secondary scores are
skipped unless --force is given. The judge model is never scored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfigFile(); err != nil {
			return err
		}
		cfg := GetConfig()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		scorer, evaluator, err := buildScorer(ctx, cfg)
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

		ids, _ := cmd.Flags().GetStringSlice("ids")
		force, _ := cmd.Flags().GetBool("force")
		parallel, _ := cmd.Flags().GetInt("parallel")
		if parallel <= 0 {
			parallel = cfg.Parallelism()
		}
		banner(out,
			"DeepEval Scoring",
			fmt.Sprintf("Evaluator: %s", evaluator),
			fmt.Sprintf("Models: %s", describeModels(args)),
			fmt.Sprintf("Force: %v", force),
		)

		_, err = rescoring.Rescore(ctx, store, rescoring.Options{
			Models:      args,
			IDs:         ids,
			Force:       force,
			Delay:       cfg.Delay(),
			Catalog:     catalog,
			Scorer:      scorer,
			Exclude:     cfg.Judge.Model,
			Parallel:    parallel,
			Regenerator: newRegenerator(cfg, store, catalog),
			Out:         out,
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(rescoreCmd)
	rescoreCmd.Flags().StringSlice("ids", nil, "only score these prompt ids")
	rescoreCmd.Flags().Bool("force", false, "score again even when secondary scores exist")
	rescoreCmd.Flags().Int("parallel", 0, "models to process concurrently (default from eval.parallel)")
}
