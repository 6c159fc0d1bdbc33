// internal/commands/eval.go
package llmeval

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/checks"
	"github.com/mwiater/llmeval/internal/evaluation"
	"github.com/mwiater/llmeval/internal/judge"
	"github.com/mwiater/llmeval/internal/providerfactory"
	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/secondary"
)

// evalCmd sends the selected prompts to one model and stores every run.
var evalCmd = &cobra.Command{
	Use:   "eval <model>",
	Short: "Evaluate a model against the prompt set",
	Long: `Send each selected prompt to the model, run the automated checks, ask the judge
for a 1-5 score and, when deepeval is enabled, score the secondary metrics. Every result
is saved as soon as it exists, so an interrupted run resumes where it stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfigFile(); err != nil {
			return err
		}
		cfg := GetConfig()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		name := args[0]

		if err := results.ValidateModelName(name); err != nil {
			return err
		}
		m, err := cfg.Model(name)
		if err != nil {
			return err
		}
		provider, err := providerfactory.New(ctx, m)
		if err != nil {
			return fmt.Errorf("model %s: %w", name, err)
		}
		checker, err := checks.New(cfg.CheckerName())
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

		selected := catalog.Select(filterFromFlags(cmd))
		if len(selected) == 0 {
			fmt.Fprintln(out, "No prompts match the given filters.")
			return nil
		}

		var jdg judge.Judge
		judgeName := cfg.Judge.Model
		if judgeName != "" {
			if jdg, _, err = buildJudge(ctx, cfg); err != nil {
				warnf(out, "judge unavailable, continuing without it: %v", err)
				jdg = nil
			}
		}

		var scorer secondary.Scorer
		if cfg.DeepEval.Enabled {
			if scorer, _, err = buildScorer(ctx, cfg); err != nil {
				warnf(out, "deepeval unavailable, continuing without it: %v", err)
				scorer = nil
			}
		}

		rerun, _ := cmd.Flags().GetBool("rerun")
		banner(out,
			fmt.Sprintf("Evaluating: %s (%s via %s)", name, m.Model, m.Provider),
			fmt.Sprintf("Prompts: %d", len(selected)),
		)

		_, err = evaluation.Run(ctx, store, evaluation.Options{
			Model:       name,
			APIModel:    m.Model,
			Params:      m.Params,
			Prompts:     selected,
			Provider:    provider,
			Checker:     checker,
			Judge:       jdg,
			JudgeName:   judgeName,
			Scorer:      scorer,
			Delay:       cfg.Delay(),
			Rerun:       rerun,
			Regenerator: newRegenerator(cfg, store, catalog),
			Out:         out,
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)
	addFilterFlags(evalCmd)
	evalCmd.Flags().Bool("rerun", false, "run prompts again even if they already have results")
}
