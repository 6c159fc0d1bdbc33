// internal/report/compare.go
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mwiater/llmeval/internal/scoring"
	"github.com/mwiater/llmeval/internal/util"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// Compare writes the leaderboard, the per-category breakdown and the notable flags.
func Compare(out io.Writer, lb scoring.Leaderboard, withCategories bool) {
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("MODEL COMPARISON: %d prompts", len(lb.Prompts))))

	t := newTable("#", "Model", "Composite", "Score", "Scored", "Errors", "Flagged", "Latency", "Tokens", "Eff.")
	for i, r := range lb.Rows {
		t.Row(
			fmt.Sprintf("%d", i+1),
			util.TruncateWidth(r.Model, 32),
			fmtOptional(r.Composite),
			fmtJudge(r),
			fmt.Sprintf("%d/%d", r.Scored, r.Total),
			fmt.Sprintf("%d", r.Errored),
			fmt.Sprintf("%d", r.Flagged),
			fmt.Sprintf("%.1fs", r.Latency.Mean),
			fmt.Sprintf("%.0f", r.OutputTokens.Mean),
			fmt.Sprintf("%.2f", r.Efficiency),
		)
	}
	fmt.Fprintln(out, t.String())

	if withCategories && len(lb.Categories) > 0 {
		headers := []string{"Category"}
		for _, r := range lb.Rows {
			headers = append(headers, util.TruncateWidth(r.Model, 18))
		}
		ct := newTable(headers...)
		for _, c := range lb.Categories {
			row := []string{c.Category}
			for _, s := range c.Models {
				if s.AvgJudge == nil {
					row = append(row, dash)
					continue
				}
				row = append(row, fmt.Sprintf("%.2f", *s.AvgJudge))
			}
			ct.Row(row...)
		}
		fmt.Fprintln(out, "\n"+titleStyle.Render("BY CATEGORY"))
		fmt.Fprintln(out, ct.String())
	}

	fmt.Fprintln(out, "\n"+titleStyle.Render("NOTABLE FLAGS"))
	if len(lb.Flags) == 0 {
		fmt.Fprintln(out, "  None, all passed auto-checks ✓")
		return
	}
	for _, f := range lb.Flags {
		fmt.Fprintf(out, "  %s (%s):\n", f.PromptID, orUnknown(f.Subcategory))
		for _, m := range f.Models {
			fmt.Fprintf(out, "    %s: %s\n", m.Model, strings.Join(m.Flags, ", "))
		}
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
