// internal/rescoring/rescoring.go

// Package rescoring re-runs the judge or the secondary scorer over stored responses
// without calling the evaluated models again. Each pass appends a scored copy of the
// latest run, so history is never rewritten and an interrupted pass can simply be rerun.
package rescoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/llmeval/internal/judge"
	"github.com/mwiater/llmeval/internal/logging"
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/secondary"
	"github.com/mwiater/llmeval/internal/util"
)

// Regenerator rebuilds derived presentation output after results change.
type Regenerator interface {
	Regenerate(ctx context.Context) (string, error)
}

// Options configures a rejudge or rescore pass.
type Options struct {
	// Models to process; empty means every stored model.
	Models []string
	// IDs narrows candidates to these prompt ids.
	IDs     []string
	Force   bool
	Delay   time.Duration
	Catalog *prompts.Catalog

	Judge     judge.Judge
	JudgeName string
	Scorer    secondary.Scorer

	// Exclude names a model that is never processed, normally the judge.
	Exclude     string
	Parallel    int
	Regenerator Regenerator
	Out         io.Writer
}

// Counters total a pass across all models.
type Counters struct {
	Scored  int
	Skipped int
	Errored int
}

func (c *Counters) add(o Counters) {
	c.Scored += o.Scored
	c.Skipped += o.Skipped
	c.Errored += o.Errored
}

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
)

type outcome int

const (
	outcomeScored outcome = iota
	// outcomeFailed appends the entry but counts an error.
	outcomeFailed
	// outcomeDropped counts an error and appends nothing.
	outcomeDropped
)

// pass is what distinguishes rejudge from rescore.
type pass struct {
	name  string
	skip  func(latest results.Entry) bool
	score func(ctx context.Context, p prompts.Prompt, next *results.Entry) (outcome, string)
}

// Rejudge re-runs the judge on the latest run of each candidate prompt.
func Rejudge(ctx context.Context, store results.Store, opts Options) (Counters, error) {
	if opts.Judge == nil || opts.JudgeName == "" {
		return Counters{}, errors.New("rejudge: a judge model is required")
	}
	return run(ctx, store, opts, pass{
		name: "rejudge",
		skip: func(latest results.Entry) bool {
			return !opts.Force && latest.JudgeModel == opts.JudgeName && latest.JudgeScore != nil
		},
		score: func(ctx context.Context, p prompts.Prompt, next *results.Entry) (outcome, string) {
			res, err := opts.Judge.Judge(ctx, p, next.Content, next.AutoChecks)
			if err != nil {
				return outcomeDropped, "error: " + err.Error()
			}
			next.JudgeScore = res.Score
			next.JudgeRationale = res.Rationale
			next.JudgeModel = opts.JudgeName
			if res.Score == nil {
				return outcomeFailed, "failed"
			}
			return outcomeScored, fmt.Sprintf("%d/5", *res.Score)
		},
	})
}

// Rescore re-runs the secondary metrics on the latest run of each candidate prompt.
func Rescore(ctx context.Context, store results.Store, opts Options) (Counters, error) {
	if opts.Scorer == nil {
		return Counters{}, errors.New("rescore: a secondary scorer is required")
	}
	return run(ctx, store, opts, pass{
		name: "rescore",
		skip: func(latest results.Entry) bool {
			return !opts.Force && latest.HasSecondary()
		},
		score: func(ctx context.Context, p prompts.Prompt, next *results.Entry) (outcome, string) {
			scores, err := opts.Scorer.Score(ctx, p, next.Content)
			if err != nil {
				return outcomeDropped, "failed: " + err.Error()
			}
			if scores.Avg == nil {
				return outcomeDropped, "failed: no scores"
			}
			next.DeepEvalScores = scores.Metrics
			next.DeepEvalAvg = scores.Avg
			return outcomeScored, fmt.Sprintf("avg=%.2f", *scores.Avg)
		},
	})
}

func run(ctx context.Context, store results.Store, opts Options, ps pass) (Counters, error) {
	var total Counters
	if opts.Catalog == nil {
		return total, fmt.Errorf("%s: prompt catalog is required", ps.name)
	}
	out := &syncWriter{w: opts.Out}
	if opts.Out == nil {
		out.w = io.Discard
	}

	models := opts.Models
	if len(models) == 0 {
		listed, err := store.List(ctx)
		if err != nil {
			return total, err
		}
		models = listed
	}
	// Each result set gets exactly one worker.
	var targets []string
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if seen[m] {
			continue
		}
		seen[m] = true
		if opts.Exclude != "" && m == opts.Exclude {
			out.printf("  Skipping %s (is the judge model)\n", m)
			continue
		}
		targets = append(targets, m)
	}
	if len(targets) == 0 {
		out.printf("  No models to %s.\n", ps.name)
		return total, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))
	for _, model := range targets {
		g.Go(func() error {
			c, err := (&worker{store: store, opts: opts, pass: ps, out: out}).model(gctx, model)
			mu.Lock()
			total.add(c)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()

	out.printf("\n  Done: %d scored, %d skipped, %d errors\n", total.Scored, total.Skipped, total.Errored)
	if err != nil {
		return total, err
	}
	if err := ctx.Err(); err != nil {
		return total, err
	}
	if opts.Regenerator != nil && total.Scored+total.Errored > 0 {
		if path, rerr := opts.Regenerator.Regenerate(ctx); rerr != nil {
			logging.LogEvent("dashboard regeneration failed: %v", rerr)
			out.printf("  %s dashboard not updated: %v\n", warnMark("⚠"), rerr)
		} else {
			out.printf("  Dashboard updated: %s\n", path)
		}
	}
	return total, nil
}

// worker owns exactly one model's result set for the duration of a pass.
type worker struct {
	store results.Store
	opts  Options
	pass  pass
	out   *syncWriter
}

func (w *worker) model(ctx context.Context, model string) (Counters, error) {
	var c Counters
	set, err := w.store.Load(ctx, model)
	if err != nil {
		return c, err
	}
	if set.Runs.Len() == 0 {
		w.out.printf("  Skipping %s (no results)\n", model)
		return c, nil
	}

	var candidates []string
	for _, id := range w.candidates(set) {
		latest, _ := set.Latest(id)
		if latest.Failed() || w.pass.skip(latest) {
			c.Skipped++
			continue
		}
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		w.out.printf("  %s: nothing to %s (%d skipped)\n", model, w.pass.name, c.Skipped)
		return c, nil
	}
	w.out.printf("  %s: %s %d/%d prompts\n", model, w.pass.name, len(candidates), set.Runs.Len())

	appended := 0
	for i, id := range candidates {
		if ctx.Err() != nil {
			w.out.printf("  %s: interrupted, saving %d new entries\n", model, appended)
			break
		}
		label := fmt.Sprintf("    %s [%d/%d] %s", model, i+1, len(candidates), id)

		p, ok := w.opts.Catalog.ByID(id)
		if !ok {
			w.out.printf("%s - prompt not found in eval set, skipping\n", label)
			c.Skipped++
			continue
		}

		latest, _ := set.Latest(id)
		next := latest.Clone()
		res, detail := w.pass.score(context.WithoutCancel(ctx), p, &next)
		switch res {
		case outcomeScored:
			c.Scored++
			w.out.printf("%s %s %s\n", label, okMark("✓"), detail)
		case outcomeFailed:
			c.Errored++
			w.out.printf("%s %s %s\n", label, failMark("✗"), detail)
		case outcomeDropped:
			c.Errored++
			logging.LogEvent("%s %s %s: %s", w.pass.name, model, id, detail)
			w.out.printf("%s %s %s\n", label, failMark("✗"), util.Snippet(detail, 80))
		}
		if res != outcomeDropped {
			next.Timestamp = results.Timestamp()
			set.Runs.Append(id, next)
			appended++
		}

		if i < len(candidates)-1 {
			if util.Sleep(ctx, w.opts.Delay) != nil {
				w.out.printf("  %s: interrupted, saving %d new entries\n", model, appended)
				break
			}
		}
	}

	if appended == 0 {
		return c, nil
	}
	if err := w.store.Save(context.WithoutCancel(ctx), set); err != nil {
		return c, fmt.Errorf("save %s: %w", model, err)
	}
	return c, nil
}

func (w *worker) candidates(set *results.ModelResults) []string {
	ids := set.Runs.IDs()
	if len(w.opts.IDs) == 0 {
		return ids
	}
	want := make(map[string]bool, len(w.opts.IDs))
	for _, id := range w.opts.IDs {
		want[strings.TrimSpace(id)] = true
	}
	out := ids[:0:0]
	for _, id := range ids {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
