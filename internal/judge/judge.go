// internal/judge/judge.go

// Package judge asks a model to grade another model's response on a 1-5 scale.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/mwiater/llmeval/internal/logging"
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/providers"
	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/util"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Result is a judge verdict. Score is nil when the judge output could not be read.
type Result struct {
	Score     *int
	Rationale string
}

// Judge grades a response.
type Judge interface {
	Judge(ctx context.Context, p prompts.Prompt, response string, auto results.AutoChecks) (Result, error)
}

// LLM is a Judge backed by a completion provider.
type LLM struct {
	provider providers.Provider
	params   map[string]any
}

// NewLLM returns a judge that calls provider with params.
func NewLLM(provider providers.Provider, params map[string]any) *LLM {
	return &LLM{provider: provider, params: params}
}

var rubric = template.Must(template.New("rubric").Parse(`You are an expert evaluator grading an AI model's response.

## Prompt
{{.Prompt.Prompt}}
{{if .Prompt.Ideal}}
## Reference answer
{{.Prompt.Ideal}}
{{end}}{{if .Prompt.Criteria}}
## Grading criteria
{{range .Prompt.Criteria}}- {{.}}
{{end}}{{end}}{{if .Flags}}
## Automated check flags
{{range .Flags}}- {{.}}
{{end}}{{end}}
## Response to grade
{{.Response}}

## Scale
5 = excellent: fully correct, meets every criterion
4 = good: minor omissions or imprecision
3 = adequate: partially correct or incomplete
2 = poor: significant errors or missed requirements
1 = failing: wrong, off-task or harmful

Reply with only a JSON object: {"score": <integer 1-5>, "rationale": "<one or two sentences>"}`))

// Prompt renders the grading prompt sent to the judge model.
func Prompt(p prompts.Prompt, response string, auto results.AutoChecks) (string, error) {
	var buf bytes.Buffer
	err := rubric.Execute(&buf, struct {
		Prompt   prompts.Prompt
		Response string
		Flags    []string
	}{p, response, auto.Flags})
	if err != nil {
		return "", fmt.Errorf("render judge prompt: %w", err)
	}
	return buf.String(), nil
}

// Judge returns an error only when the judge model could not be reached. Unreadable
// output yields a nil score with a rationale explaining why.
func (j *LLM) Judge(ctx context.Context, p prompts.Prompt, response string, auto results.AutoChecks) (Result, error) {
	text, err := Prompt(p, response, auto)
	if err != nil {
		return Result{}, err
	}
	out, _, err := j.provider.Complete(ctx, text, j.params)
	if err != nil {
		return Result{}, fmt.Errorf("judge %s: %w", p.ID, err)
	}
	res := Parse(out)
	if res.Score == nil {
		logging.LogEvent("judge output for %s had no usable score", p.ID)
	}
	return res, nil
}

var (
	thinkBlock   = regexp.MustCompile(`(?s)<think>.*?</think>`)
	jsonObject   = regexp.MustCompile(`(?s)\{.*\}`)
	scoreField   = regexp.MustCompile(`(?i)"?score"?\s*[:=]\s*"?(\d+)`)
	outOfFive    = regexp.MustCompile(`\b(\d)\s*/\s*5\b`)
	rationaleKey = regexp.MustCompile(`(?is)"rationale"\s*:\s*"(.*?)"\s*[,}]`)
)

// Parse extracts a verdict from judge output. It prefers a JSON object and falls back
// to "score: N" or "N/5" patterns. Scores outside 1-5 are discarded.
func Parse(raw string) Result {
	text := strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))

	if obj := jsonObject.FindString(text); obj != "" {
		var parsed struct {
			Score     json.Number `json:"score"`
			Rationale string      `json:"rationale"`
		}
		if err := json.Unmarshal([]byte(obj), &parsed); err == nil {
			if score, ok := validScore(parsed.Score.String()); ok {
				return Result{Score: &score, Rationale: strings.TrimSpace(parsed.Rationale)}
			}
		}
	}

	var score *int
	for _, re := range []*regexp.Regexp{scoreField, outOfFive} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := validScore(m[1]); ok {
				score = &v
				break
			}
		}
	}
	rationale := ""
	if m := rationaleKey.FindStringSubmatch(text); m != nil {
		rationale = strings.TrimSpace(m[1])
	}
	if score == nil {
		return Result{Rationale: "unparseable judge output: " + util.TruncateRunes(util.OneLine(text), 200)}
	}
	if rationale == "" {
		rationale = util.TruncateRunes(util.OneLine(text), 500)
	}
	return Result{Score: score, Rationale: rationale}
}

func validScore(s string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	v := int(f)
	return v, v >= MinScore && v <= MaxScore
}
