// internal/evaluation/evaluation.go

// Package evaluation runs a prompt set against one model: completion, automated checks,
// judge and secondary scoring, with every entry persisted as soon as it exists.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mwiater/llmeval/internal/checks"
	"github.com/mwiater/llmeval/internal/judge"
	"github.com/mwiater/llmeval/internal/logging"
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/providers"
	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/secondary"
	"github.com/mwiater/llmeval/internal/util"
)

// Regenerator rebuilds derived presentation output after results change.
type Regenerator interface {
	Regenerate(ctx context.Context) (string, error)
}

// Options configures one evaluation pass.
type Options struct {
	Model    string
	APIModel string
	Params   map[string]any
	Prompts  []prompts.Prompt

	Provider providers.Provider
	Checker  checks.Checker
	// Judge is optional. JudgeName is recorded on judged entries.
	Judge     judge.Judge
	JudgeName string
	// Scorer is optional; nil disables secondary metrics.
	Scorer secondary.Scorer

	Delay       time.Duration
	Rerun       bool
	Regenerator Regenerator
	Out         io.Writer
}

// Summary counts what a pass did.
type Summary struct {
	Processed   int
	AlreadyDone int
	Flagged     int
	Judged      int
	Errored     int
}

// Run evaluates opts.Prompts against opts.Model. Provider, judge and scorer failures
// are recorded in entries and never stop the pass. Cancellation is honoured between
// prompts only. The returned error is a store failure or ctx.Err().
func Run(ctx context.Context, store results.Store, opts Options) (Summary, error) {
	var sum Summary
	if opts.Provider == nil || opts.Checker == nil {
		return sum, errors.New("evaluation: provider and checker are required")
	}

	set, err := store.Load(ctx, opts.Model)
	if err != nil {
		return sum, err
	}

	pending := opts.Prompts
	if !opts.Rerun {
		pending = pending[:0:0]
		for _, p := range opts.Prompts {
			if set.Runs.Has(p.ID) {
				sum.AlreadyDone++
				continue
			}
			pending = append(pending, p)
		}
	}

	con := newConsole(opts.Out, len(pending))
	if sum.AlreadyDone > 0 {
		con.printf("  Skipping %d already done (use --rerun to redo)\n", sum.AlreadyDone)
	}
	if len(pending) == 0 {
		con.printf("  Nothing to run for %s.\n", opts.Model)
		return sum, nil
	}

	jdg := opts.Judge
	if jdg != nil && strings.EqualFold(opts.JudgeName, opts.Model) {
		logging.LogEvent("judge %s is the model under evaluation, skipping judge", opts.JudgeName)
		con.warn("judge model %q is the same as eval model, skipping judge", opts.JudgeName)
		jdg = nil
	}
	if jdg != nil {
		con.printf("  Judge: %s\n", opts.JudgeName)
	}
	con.printf("\n")

	for i, p := range pending {
		if err := ctx.Err(); err != nil {
			con.warn("interrupted after %d of %d prompts", i, len(pending))
			return sum, err
		}

		con.start(i, p.ID)
		// The prompt in flight always completes and is persisted.
		callCtx := context.WithoutCancel(ctx)
		e := evaluate(callCtx, p, opts, jdg)
		if err := results.Append(callCtx, store, set, p.ID, e); err != nil {
			con.printf("%s\n", failMark("✗ save failed"))
			return sum, err
		}

		sum.Processed++
		switch {
		case e.Failed():
			sum.Errored++
		case e.Flagged():
			sum.Flagged++
		}
		if e.Judged() {
			sum.Judged++
		}
		con.printf("%s\n", describe(e))

		if i < len(pending)-1 {
			if err := util.Sleep(ctx, opts.Delay); err != nil {
				con.warn("interrupted after %d of %d prompts", i+1, len(pending))
				return sum, err
			}
		}
	}

	con.printf("\n  Done: %d prompts, %d auto-flagged, %d judge-scored, %d errors\n",
		sum.Processed, sum.Flagged, sum.Judged, sum.Errored)

	if opts.Regenerator != nil {
		if path, err := opts.Regenerator.Regenerate(ctx); err != nil {
			logging.LogEvent("dashboard regeneration failed: %v", err)
			con.warn("dashboard not updated: %v", err)
		} else {
			con.printf("  Dashboard: %s\n", path)
		}
	}
	return sum, nil
}

func evaluate(ctx context.Context, p prompts.Prompt, opts Options, jdg judge.Judge) results.Entry {
	start := time.Now()
	text, usage, err := opts.Provider.Complete(ctx, p.Prompt, opts.Params)
	e := results.Entry{
		Timestamp:    results.Timestamp(),
		APIModel:     opts.APIModel,
		LatencyS:     util.Round(time.Since(start).Seconds(), 2),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}
	if err != nil {
		logging.LogEvent("%s %s: completion failed: %v", opts.Model, p.ID, err)
		e.Error = err.Error()
		e.AutoChecks = checks.APIError()
		return e
	}

	e.Content = text
	e.AutoChecks = opts.Checker.Check(p, text)

	if jdg != nil {
		res, err := jdg.Judge(ctx, p, text, e.AutoChecks)
		if err != nil {
			logging.LogEvent("%s %s: judge failed: %v", opts.Model, p.ID, err)
		} else {
			e.JudgeScore = res.Score
			e.JudgeRationale = res.Rationale
			e.JudgeModel = opts.JudgeName
		}
	}

	if opts.Scorer != nil {
		scores, err := opts.Scorer.Score(ctx, p, text)
		if err != nil {
			logging.LogEvent("%s %s: secondary metrics failed: %v", opts.Model, p.ID, err)
		} else {
			e.DeepEvalScores = scores.Metrics
			e.DeepEvalAvg = scores.Avg
		}
	}
	return e
}

func describe(e results.Entry) string {
	if e.Failed() {
		return fmt.Sprintf("%s %s", failMark("✗ API error:"), util.Snippet(e.Error, 60))
	}
	var b strings.Builder
	if e.AutoChecks.Passed {
		b.WriteString(okMark("✓"))
	} else {
		b.WriteString(failMark("✗"))
	}
	fmt.Fprintf(&b, " %.2fs", e.LatencyS)
	if e.OutputTokens != nil {
		fmt.Fprintf(&b, " %d tok", *e.OutputTokens)
	}
	if e.Judged() {
		fmt.Fprintf(&b, " judge %d/5", *e.JudgeScore)
	} else if e.JudgeModel != "" {
		b.WriteString(" judge failed")
	}
	if e.DeepEvalAvg != nil {
		fmt.Fprintf(&b, " deepeval %.2f", *e.DeepEvalAvg)
	}
	if e.Flagged() {
		b.WriteString(" " + dim(strings.Join(e.AutoChecks.Flags, ",")))
	}
	return b.String()
}
