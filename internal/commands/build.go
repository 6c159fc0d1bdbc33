// internal/commands/build.go
package llmeval

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/appconfig"
	"github.com/mwiater/llmeval/internal/judge"
	"github.com/mwiater/llmeval/internal/logging"
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/providerfactory"
	"github.com/mwiater/llmeval/internal/report"
	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/scoring"
	"github.com/mwiater/llmeval/internal/secondary"
)

var warnMark = color.New(color.FgYellow).SprintFunc()

func warnf(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "  %s %s\n", warnMark("⚠"), fmt.Sprintf(format, args...))
}

func banner(out io.Writer, lines ...string) {
	rule := "============================================================"
	fmt.Fprintf(out, "\n%s\n", rule)
	for _, l := range lines {
		fmt.Fprintf(out, "  %s\n", l)
	}
	fmt.Fprintf(out, "%s\n\n", rule)
}

// addFilterFlags registers the prompt selection flags shared by several commands.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("ids", nil, "prompt ids to include (comma separated)")
	cmd.Flags().StringSlice("category", nil, "categories to include")
	cmd.Flags().StringSlice("difficulty", nil, "difficulties to include (easy, medium, hard)")
}

func filterFromFlags(cmd *cobra.Command) prompts.Filter {
	var f prompts.Filter
	f.IDs, _ = cmd.Flags().GetStringSlice("ids")
	f.Categories, _ = cmd.Flags().GetStringSlice("category")
	f.Difficulties, _ = cmd.Flags().GetStringSlice("difficulty")
	return f
}

func loadCatalog(cfg *appconfig.Config) (*prompts.Catalog, error) {
	return prompts.Load(cfg.PromptsFile())
}

func weights(cfg *appconfig.Config) scoring.Weights {
	jw, sw := cfg.Weights()
	return scoring.Weights{Judge: jw, Secondary: sw}
}

func newRegenerator(cfg *appconfig.Config, store results.Store, catalog *prompts.Catalog) *report.Regenerator {
	return &report.Regenerator{
		Store:     store,
		Catalog:   catalog,
		Weights:   weights(cfg),
		JudgeName: cfg.Judge.Model,
		Path:      cfg.DashboardPath(),
	}
}

// buildJudge returns the configured LLM judge and its name.
func buildJudge(ctx context.Context, cfg *appconfig.Config) (judge.Judge, string, error) {
	name, m, err := cfg.JudgeModel()
	if err != nil {
		return nil, "", err
	}
	p, err := providerfactory.New(ctx, m)
	if err != nil {
		return nil, name, fmt.Errorf("judge %s: %w", name, err)
	}
	return judge.NewLLM(p, cfg.Judge.Params), name, nil
}

// buildScorer returns the secondary metric scorer backed by the evaluator model.
func buildScorer(ctx context.Context, cfg *appconfig.Config) (secondary.Scorer, string, error) {
	name, m, err := cfg.EvaluatorModel()
	if err != nil {
		return nil, "", err
	}
	metrics := secondary.ParseMetrics(cfg.DeepEval.Metrics)
	if len(metrics) == 0 {
		return nil, name, fmt.Errorf("%w: no known deepeval metrics configured", appconfig.ErrConfig)
	}
	p, err := providerfactory.New(ctx, m)
	if err != nil {
		return nil, name, fmt.Errorf("deepeval evaluator %s: %w", name, err)
	}
	logging.LogEvent("secondary metrics %v scored by %s", metrics, name)
	return secondary.NewGEval(p, m.Params, metrics), name, nil
}
