// internal/report/format.go

// Package report renders leaderboards as terminal tables, a markdown comparison and a
// self-contained HTML dashboard.
package report

import (
	"fmt"

	"github.com/mwiater/llmeval/internal/scoring"
)

const dash = "—"

func fmtJudge(s scoring.Stats) string {
	if s.AvgJudge == nil {
		return dash
	}
	return fmt.Sprintf("%.2f/5", *s.AvgJudge)
}

func fmtOptional(v *float64) string {
	if v == nil {
		return dash
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtScore(score *int) string {
	if score == nil {
		return dash
	}
	return fmt.Sprintf("%d", *score)
}
