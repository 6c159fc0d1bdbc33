// internal/report/regenerate.go
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/mwiater/llmeval/internal/logging"
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/scoring"
)

// ErrNoResults is returned when there is nothing to report on.
var ErrNoResults = errors.New("no results to report")

// Regenerator rebuilds the HTML dashboard from everything in the store.
type Regenerator struct {
	Store     results.Store
	Catalog   *prompts.Catalog
	Weights   scoring.Weights
	JudgeName string
	Path      string
}

// Regenerate writes the dashboard to r.Path and returns that path. The judge model is
// left off the leaderboard.
func (r *Regenerator) Regenerate(ctx context.Context) (string, error) {
	sets, err := results.LoadAll(ctx, r.Store, nil)
	if err != nil {
		return "", err
	}
	kept := sets[:0]
	for _, s := range sets {
		if r.JudgeName != "" && s.ModelName == r.JudgeName {
			continue
		}
		kept = append(kept, s)
	}

	lb := scoring.Aggregate(kept, r.Catalog.All(), r.Weights)
	if len(lb.Rows) == 0 {
		return "", ErrNoResults
	}

	html, err := Dashboard(lb, DashboardOptions{JudgeModel: r.JudgeName, Weights: r.Weights})
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(r.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create dashboard dir: %w", err)
		}
	}
	if err := atomicwriter.WriteFile(r.Path, html, 0o644); err != nil {
		return "", fmt.Errorf("write dashboard: %w", err)
	}
	logging.LogEvent("dashboard written: %s (%d models)", r.Path, len(lb.Rows))
	return r.Path, nil
}
