// internal/results/entry.go
// Package results holds the per-model run history: an append-only record of every
// completion and scoring pass, keyed by prompt id.
package results

import (
	"maps"
	"slices"
	"time"
)

// AutoChecks is the heuristic checker output stored with each run.
type AutoChecks struct {
	Flags      []string       `json:"flags"`
	AutoScores map[string]any `json:"auto_scores"`
	Passed     bool           `json:"passed"`
}

// Entry is one immutable run record. Scoring fields are nil when the corresponding
// step did not run or failed.
type Entry struct {
	Timestamp      string              `json:"timestamp"`
	APIModel       string              `json:"api_model"`
	Content        string              `json:"content"`
	LatencyS       float64             `json:"latency_s"`
	InputTokens    *int                `json:"input_tokens"`
	OutputTokens   *int                `json:"output_tokens"`
	AutoChecks     AutoChecks          `json:"auto_checks"`
	JudgeScore     *int                `json:"judge_score"`
	JudgeRationale string              `json:"judge_rationale"`
	JudgeModel     string              `json:"judge_model,omitempty"`
	DeepEvalScores map[string]*float64 `json:"deepeval_scores,omitempty"`
	DeepEvalAvg    *float64            `json:"deepeval_avg,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Failed reports whether the completion itself failed.
func (e Entry) Failed() bool { return e.Error != "" }

// Judged reports whether a judge score is present.
func (e Entry) Judged() bool { return e.JudgeScore != nil }

// HasSecondary reports whether secondary metric scores are present.
func (e Entry) HasSecondary() bool { return len(e.DeepEvalScores) > 0 }

// Flagged reports whether any automated check raised a flag.
func (e Entry) Flagged() bool { return len(e.AutoChecks.Flags) > 0 }

// Clone returns a deep copy, so a copied-forward entry never aliases the stored one.
func (e Entry) Clone() Entry {
	out := e
	out.InputTokens = clonePtr(e.InputTokens)
	out.OutputTokens = clonePtr(e.OutputTokens)
	out.JudgeScore = clonePtr(e.JudgeScore)
	out.DeepEvalAvg = clonePtr(e.DeepEvalAvg)
	out.AutoChecks.Flags = slices.Clone(e.AutoChecks.Flags)
	out.AutoChecks.AutoScores = maps.Clone(e.AutoChecks.AutoScores)
	if e.DeepEvalScores != nil {
		out.DeepEvalScores = make(map[string]*float64, len(e.DeepEvalScores))
		for k, v := range e.DeepEvalScores {
			out.DeepEvalScores[k] = clonePtr(v)
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Now is the clock used for timestamps.
var Now = time.Now

// Timestamp formats the current time for entries and result sets.
func Timestamp() string {
	return Now().Format(time.RFC3339Nano)
}
