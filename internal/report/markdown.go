// internal/report/markdown.go
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/scoring"
	"github.com/mwiater/llmeval/internal/util"
)

// ComparisonFile is the report name used by compare --save.
const ComparisonFile = results.ReservedName + ".md"

// Markdown renders a leaderboard plus per-prompt detail for every ranked model.
func Markdown(lb scoring.Leaderboard, sets []*results.ModelResults) []byte {
	byName := make(map[string]*results.ModelResults, len(sets))
	for _, s := range sets {
		byName[s.ModelName] = s
	}

	var b bytes.Buffer
	b.WriteString("# LLM Comparison Report\n\n")
	fmt.Fprintf(&b, "*Generated: %s*\n\n", results.Timestamp())
	b.WriteString("## Leaderboard\n\n")
	b.WriteString("| Model | Composite | Avg Score | Scored | Errors | Flagged | Avg Latency | Avg Tokens | Efficiency |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
	for _, r := range lb.Rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %d/%d | %d | %d | %.1fs | %.0f | %.2f |\n",
			r.Model, fmtOptional(r.Composite), fmtJudge(r), r.Scored, r.Total, r.Errored, r.Flagged,
			r.Latency.Mean, r.OutputTokens.Mean, r.Efficiency)
	}

	b.WriteString("\n## Per-Prompt Detail\n\n")
	for _, p := range lb.Prompts {
		fmt.Fprintf(&b, "### %s: %s (%s)\n\n", p.ID, orUnknown(p.Subcategory), p.Difficulty)
		for _, r := range lb.Rows {
			set, ok := byName[r.Model]
			if !ok {
				continue
			}
			e, ok := set.Latest(p.ID)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "**%s**: score=%s", r.Model, fmtScore(e.JudgeScore))
			if e.Failed() {
				fmt.Fprintf(&b, " ✗ error: %s", util.OneLine(e.Error))
			} else if e.Flagged() {
				fmt.Fprintf(&b, " ⚠ %s", strings.Join(e.AutoChecks.Flags, ", "))
			}
			if e.JudgeRationale != "" {
				fmt.Fprintf(&b, " — %s", util.OneLine(e.JudgeRationale))
			}
			b.WriteString("\n\n")
		}
	}
	return b.Bytes()
}
