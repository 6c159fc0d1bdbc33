// internal/secondary/secondary.go

// Package secondary scores responses along several quality dimensions, each asked of
// an evaluator model with its own evaluation steps and normalised to 0-1.
package secondary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/mwiater/llmeval/internal/logging"
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/providers"
	"github.com/mwiater/llmeval/internal/util"
)

// Metric names a secondary quality dimension.
type Metric string

const (
	MetricCorrectness          Metric = "correctness"
	MetricCoherence            Metric = "coherence"
	MetricInstructionFollowing Metric = "instruction_following"
)

// ErrNoScores is returned when every requested metric failed.
var ErrNoScores = errors.New("no secondary metric produced a score")

// Scores holds per-metric results. A nil value means that metric failed.
type Scores struct {
	Metrics map[string]*float64
	Avg     *float64
}

// Scorer produces secondary scores for a response.
type Scorer interface {
	Score(ctx context.Context, p prompts.Prompt, response string) (Scores, error)
}

type definition struct {
	name  string
	steps []string
	ideal bool
	crit  bool
}

var definitions = map[Metric]definition{
	MetricCorrectness: {
		name: "Correctness",
		steps: []string{
			"Check whether the facts in the actual output contradict any facts in the expected output",
			"Heavily penalize omission of important detail",
			"Vague language or differing opinions are acceptable",
			"Penalize hallucinated facts or fabricated references",
		},
		ideal: true,
	},
	MetricCoherence: {
		name: "Coherence",
		steps: []string{
			"Evaluate whether the response has a clear logical flow",
			"Check that the response is well-structured and complete",
			"Assess whether complex ideas are presented clearly",
			"Identify any contradictions or confusing sections",
		},
	},
	MetricInstructionFollowing: {
		name: "Instruction Following",
		steps: []string{
			"Check whether the response addresses all parts of the input prompt",
			"Verify adherence to any format, length, or constraint requirements in the context",
			"Penalize responses that ignore specific instructions or criteria",
			"Reward responses that follow implicit and explicit instructions precisely",
		},
		crit: true,
	},
}

// DefaultMetrics is used when none are configured.
var DefaultMetrics = []Metric{MetricCorrectness, MetricCoherence, MetricInstructionFollowing}

// ParseMetrics maps configured names onto known metrics, dropping unknown names and
// duplicates. An empty input selects DefaultMetrics.
func ParseMetrics(names []string) []Metric {
	if len(names) == 0 {
		return DefaultMetrics
	}
	var out []Metric
	seen := map[Metric]bool{}
	for _, n := range names {
		m := Metric(strings.ToLower(strings.TrimSpace(n)))
		if _, ok := definitions[m]; !ok {
			logging.LogEvent("ignoring unknown secondary metric %q", n)
			continue
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// GEval asks an evaluator model for a 0-10 score per metric.
type GEval struct {
	provider providers.Provider
	params   map[string]any
	metrics  []Metric
}

// NewGEval builds a scorer over metrics using the evaluator provider.
func NewGEval(provider providers.Provider, params map[string]any, metrics []Metric) *GEval {
	return &GEval{provider: provider, params: params, metrics: metrics}
}

var metricPrompt = template.Must(template.New("geval").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`You are evaluating an AI response for {{.Name}}.

Evaluation steps:
{{range $i, $s := .Steps}}{{inc $i}}. {{$s}}
{{end}}
Input:
{{.Prompt.Prompt}}
{{if .Ideal}}
Expected output:
{{.Prompt.Ideal}}
{{end}}{{if .Criteria}}
Context:
{{range .Prompt.Criteria}}- {{.}}
{{end}}{{end}}
Actual output:
{{.Response}}

Score the actual output from 0 (worst) to 10 (best) following the steps above.
Reply with only a JSON object: {"score": <integer 0-10>, "reason": "<short reason>"}`))

// Score runs every configured metric. Individual failures become nil entries; the
// average covers the metrics that succeeded.
func (g *GEval) Score(ctx context.Context, p prompts.Prompt, response string) (Scores, error) {
	out := Scores{Metrics: make(map[string]*float64, len(g.metrics))}
	var sum float64
	var n int
	for _, m := range g.metrics {
		score, err := g.scoreMetric(ctx, m, p, response)
		if err != nil {
			logging.LogEvent("secondary %s failed for %s: %v", m, p.ID, err)
			out.Metrics[string(m)] = nil
			continue
		}
		out.Metrics[string(m)] = &score
		sum += score
		n++
	}
	if n == 0 {
		return out, ErrNoScores
	}
	avg := util.Round(sum/float64(n), 4)
	out.Avg = &avg
	return out, nil
}

func (g *GEval) scoreMetric(ctx context.Context, m Metric, p prompts.Prompt, response string) (float64, error) {
	def := definitions[m]
	var buf bytes.Buffer
	err := metricPrompt.Execute(&buf, struct {
		Name     string
		Steps    []string
		Prompt   prompts.Prompt
		Ideal    bool
		Criteria bool
		Response string
	}{def.name, def.steps, p, def.ideal && p.Ideal != "", def.crit && len(p.Criteria) > 0, response})
	if err != nil {
		return 0, err
	}
	raw, _, err := g.provider.Complete(ctx, buf.String(), g.params)
	if err != nil {
		return 0, err
	}
	v, err := parseScore(raw)
	if err != nil {
		return 0, err
	}
	return util.Round(v/10, 4), nil
}

var (
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
	scoreField = regexp.MustCompile(`(?i)"?score"?\s*[:=]\s*"?(\d+(?:\.\d+)?)`)
)

func parseScore(raw string) (float64, error) {
	var candidate string
	if obj := jsonObject.FindString(raw); obj != "" {
		var parsed struct {
			Score json.Number `json:"score"`
		}
		if json.Unmarshal([]byte(obj), &parsed) == nil {
			candidate = parsed.Score.String()
		}
	}
	if candidate == "" {
		if m := scoreField.FindStringSubmatch(raw); m != nil {
			candidate = m[1]
		}
	}
	if candidate == "" {
		return 0, fmt.Errorf("no score in evaluator output %q", util.TruncateRunes(util.OneLine(raw), 120))
	}
	v, err := strconv.ParseFloat(candidate, 64)
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", candidate, err)
	}
	if v < 0 || v > 10 {
		return 0, fmt.Errorf("score %g outside 0-10", v)
	}
	return v, nil
}
