// internal/scoring/aggregate.go
package scoring

import (
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/results"
)

// CategoryRow holds per-model statistics for one prompt category, in leaderboard order.
type CategoryRow struct {
	Category string  `json:"category"`
	Models   []Stats `json:"models"`
}

// ModelFlags lists the flags on one model's latest run of a prompt.
type ModelFlags struct {
	Model string   `json:"model"`
	Flags []string `json:"flags"`
}

// FlagRow is a prompt where at least one model's latest run was flagged.
type FlagRow struct {
	PromptID    string       `json:"prompt_id"`
	Subcategory string       `json:"subcategory"`
	Models      []ModelFlags `json:"models"`
}

// Leaderboard is the full comparison of several models over one prompt set.
type Leaderboard struct {
	Prompts    []prompts.Prompt `json:"-"`
	Rows       []Stats          `json:"rows"`
	Categories []CategoryRow    `json:"categories"`
	Flags      []FlagRow        `json:"flags"`
}

// Aggregate builds a leaderboard from result sets over ps. Sets with no runs at all are
// left out.
func Aggregate(sets []*results.ModelResults, ps []prompts.Prompt, w Weights) Leaderboard {
	ids := prompts.IDs(ps)
	bySet := make(map[string]*results.ModelResults, len(sets))

	lb := Leaderboard{Prompts: ps}
	for _, set := range sets {
		if set == nil || set.Runs.Len() == 0 {
			continue
		}
		bySet[set.ModelName] = set
		lb.Rows = append(lb.Rows, Summarize(set, ids, w))
	}
	Rank(lb.Rows)

	for _, category := range prompts.Categories(ps) {
		var catIDs []string
		for _, p := range ps {
			if p.Category == category {
				catIDs = append(catIDs, p.ID)
			}
		}
		row := CategoryRow{Category: category}
		for _, r := range lb.Rows {
			row.Models = append(row.Models, Summarize(bySet[r.Model], catIDs, w))
		}
		lb.Categories = append(lb.Categories, row)
	}

	for _, p := range ps {
		row := FlagRow{PromptID: p.ID, Subcategory: p.Subcategory}
		for _, r := range lb.Rows {
			if e, ok := bySet[r.Model].Latest(p.ID); ok && e.Flagged() {
				row.Models = append(row.Models, ModelFlags{Model: r.Model, Flags: e.AutoChecks.Flags})
			}
		}
		if len(row.Models) > 0 {
			lb.Flags = append(lb.Flags, row)
		}
	}
	return lb
}

// Without returns rows minus the named model, keeping order.
func Without(rows []Stats, model string) []Stats {
	out := make([]Stats, 0, len(rows))
	for _, r := range rows {
		if r.Model != model {
			out = append(out, r)
		}
	}
	return out
}
