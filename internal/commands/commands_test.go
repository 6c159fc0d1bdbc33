// internal/commands/commands_test.go
package llmeval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mwiater/llmeval/internal/report"
	"github.com/mwiater/llmeval/internal/results"
)

const testPrompts = `{
  "prompts": [
    {"id": "r1", "category": "reasoning", "subcategory": "logic", "difficulty": "easy",
     "check_type": "reasoning", "prompt": "Is every square a rectangle?", "ideal": "Yes."},
    {"id": "c1", "category": "coding", "subcategory": "go", "difficulty": "medium",
     "prompt": "Write a function that reverses a string."}
  ]
}`

// workspace holds a config wired to a fake OpenAI-compatible endpoint.
type workspace struct {
	dir        string
	configPath string
	calls      *atomic.Int64
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": body.Model,
			"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "content": `{"score": 4, "rationale": "clear and correct answer"}`},
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 30},
		})
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	promptsPath := filepath.Join(dir, "prompts.json")
	if err := os.WriteFile(promptsPath, []byte(testPrompts), 0o644); err != nil {
		t.Fatalf("write prompts: %v", err)
	}
	config := fmt.Sprintf(`models:
  candidate:
    provider: openai_compatible
    model: cand-1
    base_url: %[1]s
    api_key_env: none
  judge:
    provider: openai_compatible
    model: judge-1
    base_url: %[1]s
    api_key_env: none
judge:
  model: judge
deepeval:
  enabled: true
eval:
  delay_between_calls: 0
  prompts_file: %[2]s
storage:
  results_dir: %[3]s
report:
  dashboard_path: %[4]s
logFile: %[5]s
`, srv.URL, promptsPath, filepath.Join(dir, "results"), filepath.Join(dir, "docs", "dashboard.html"), filepath.Join(dir, "llmeval.log"))

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	usePaths(t, configPath)
	return workspace{dir: dir, configPath: configPath, calls: &calls}
}

func (ws workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	rootCmd.SetArgs(append([]string{"--config", ws.configPath, "--env", filepath.Join(ws.dir, ".env"), "--logFile", filepath.Join(ws.dir, "llmeval.log")}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (ws workspace) load(t *testing.T, model string) *results.ModelResults {
	t.Helper()
	set, err := results.NewFileStore(filepath.Join(ws.dir, "results")).Load(context.Background(), model)
	if err != nil {
		t.Fatalf("load %s: %v", model, err)
	}
	return set
}

func TestEvalCompareAndRejudge(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "eval", "candidate")
	if err != nil {
		t.Fatalf("eval: %v\n%s", err, out)
	}
	set := ws.load(t, "candidate")
	if set.Runs.Len() != 2 {
		t.Fatalf("expected 2 prompts stored, got %d", set.Runs.Len())
	}
	latest, ok := set.Latest("r1")
	if !ok {
		t.Fatalf("expected r1 stored")
	}
	if latest.JudgeScore == nil || *latest.JudgeScore != 4 {
		t.Fatalf("expected judge score 4, got %v", latest.JudgeScore)
	}
	if latest.JudgeModel != "judge" {
		t.Fatalf("expected judge model recorded, got %q", latest.JudgeModel)
	}
	if latest.DeepEvalAvg == nil || *latest.DeepEvalAvg != 0.4 {
		t.Fatalf("expected deepeval avg 0.4, got %v", latest.DeepEvalAvg)
	}
	if _, err := os.Stat(filepath.Join(ws.dir, "docs", "dashboard.html")); err != nil {
		t.Fatalf("expected dashboard after eval: %v", err)
	}

	// A second eval has nothing pending and makes no provider calls.
	before := ws.calls.Load()
	out, err = ws.run(t, "eval", "candidate")
	if err != nil {
		t.Fatalf("second eval: %v", err)
	}
	if !strings.Contains(out, "Nothing to run") || ws.calls.Load() != before {
		t.Fatalf("expected resume to skip done prompts, calls %d -> %d\n%s", before, ws.calls.Load(), out)
	}

	out, err = ws.run(t, "compare", "--save")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !strings.Contains(out, "MODEL COMPARISON: 2 prompts") || !strings.Contains(out, "candidate") {
		t.Fatalf("unexpected compare output:\n%s", out)
	}
	md, err := os.ReadFile(filepath.Join(ws.dir, "results", report.ComparisonFile))
	if err != nil {
		t.Fatalf("expected saved comparison: %v", err)
	}
	if !strings.HasPrefix(string(md), "# LLM Comparison Report") {
		t.Fatalf("unexpected comparison markdown:\n%s", md)
	}

	out, err = ws.run(t, "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out, "candidate") || strings.Contains(out, "comparison") {
		t.Fatalf("unexpected models output:\n%s", out)
	}

	out, err = ws.run(t, "rejudge", "candidate")
	if err != nil {
		t.Fatalf("rejudge: %v", err)
	}
	if !strings.Contains(out, "0 scored, 2 skipped") {
		t.Fatalf("expected everything skipped without --force:\n%s", out)
	}

	out, err = ws.run(t, "rejudge", "candidate", "--force")
	if err != nil {
		t.Fatalf("rejudge --force: %v", err)
	}
	set = ws.load(t, "candidate")
	if runs := set.Runs.Runs("r1"); len(runs) != 2 {
		t.Fatalf("expected rejudge to append a run, got %d", len(runs))
	}
	if runs := set.Runs.Runs("r1"); runs[1].Content != runs[0].Content {
		t.Fatalf("expected response carried forward")
	}

	out, err = ws.run(t, "rescore", "candidate", "--ids", "c1", "--force")
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	set = ws.load(t, "candidate")
	if runs := set.Runs.Runs("c1"); len(runs) != 3 {
		t.Fatalf("expected rescore to append to c1 only, got %d runs", len(runs))
	}
	if runs := set.Runs.Runs("r1"); len(runs) != 2 {
		t.Fatalf("expected r1 untouched by rescore, got %d runs", len(runs))
	}
}

func TestEvalRequiresConfigFile(t *testing.T) {
	ws := newWorkspace(t)
	ws.configPath = filepath.Join(ws.dir, "absent.yaml")

	_, err := ws.run(t, "eval", "candidate")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestEvalRejectsUnknownModel(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "eval", "nobody")
	if err == nil || !strings.Contains(err.Error(), "available: candidate, judge") {
		t.Fatalf("expected unknown model error, got %v", err)
	}
	if ws.calls.Load() != 0 {
		t.Fatalf("expected no provider calls")
	}
}

func TestPromptsAndDashboardCommands(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "prompts", "--category", "coding")
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	if !strings.Contains(out, "Eval prompts (1)") || !strings.Contains(out, "c1") || strings.Contains(out, "r1") {
		t.Fatalf("unexpected prompts output:\n%s", out)
	}

	out, err = ws.run(t, "dashboard")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !strings.Contains(out, "No results to generate dashboard from.") {
		t.Fatalf("expected empty dashboard notice:\n%s", out)
	}

	out, err = ws.run(t, "compare")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !strings.Contains(out, "No results to compare.") {
		t.Fatalf("expected empty compare notice:\n%s", out)
	}
}
