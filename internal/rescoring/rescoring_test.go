// internal/rescoring/rescoring_test.go
package rescoring

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/llmeval/internal/judge"
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/secondary"
)

type memStore struct {
	mu    sync.Mutex
	sets  map[string]*results.ModelResults
	saves map[string]int
}

func newMemStore(sets ...*results.ModelResults) *memStore {
	m := &memStore{sets: map[string]*results.ModelResults{}, saves: map[string]int{}}
	for _, s := range sets {
		m.sets[s.ModelName] = s
	}
	return m
}

func (m *memStore) Load(_ context.Context, model string) (*results.ModelResults, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.sets[model]; ok {
		return set, nil
	}
	return results.New(model), nil
}

func (m *memStore) Save(_ context.Context, set *results.ModelResults) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[set.ModelName]++
	m.sets[set.ModelName] = set
	return nil
}

func (m *memStore) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name := range m.sets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

type stubJudge struct {
	mu    sync.Mutex
	score *int
	err   error
	seen  []string
	hook  func()
}

func (s *stubJudge) Judge(_ context.Context, p prompts.Prompt, response string, _ results.AutoChecks) (judge.Result, error) {
	s.mu.Lock()
	s.seen = append(s.seen, p.ID+":"+response)
	s.mu.Unlock()
	if s.hook != nil {
		s.hook()
	}
	return judge.Result{Score: s.score, Rationale: "re-graded"}, s.err
}

type stubScorer struct {
	err error
}

func (s stubScorer) Score(context.Context, prompts.Prompt, string) (secondary.Scores, error) {
	if s.err != nil {
		return secondary.Scores{Metrics: map[string]*float64{"coherence": nil}}, s.err
	}
	v := 0.6
	return secondary.Scores{Metrics: map[string]*float64{"coherence": &v}, Avg: &v}, nil
}

func intp(v int) *int { return &v }

func mustCatalog(t *testing.T, ids ...string) *prompts.Catalog {
	t.Helper()
	var ps []prompts.Prompt
	for _, id := range ids {
		ps = append(ps, prompts.Prompt{ID: id, Category: "general", Prompt: "prompt " + id})
	}
	c, err := prompts.New(ps)
	require.NoError(t, err)
	return c
}

func scoredEntry(content, judgeModel string, score *int) results.Entry {
	in, out := 12, 34
	return results.Entry{
		Timestamp:      "2026-01-01T00:00:00Z",
		APIModel:       "api-" + content,
		Content:        content,
		LatencyS:       1.25,
		InputTokens:    &in,
		OutputTokens:   &out,
		AutoChecks:     results.AutoChecks{Flags: []string{}, AutoScores: map[string]any{}, Passed: true},
		JudgeScore:     score,
		JudgeRationale: "old",
		JudgeModel:     judgeModel,
	}
}

func TestRejudgeSkipsCurrentJudgeUnlessForced(t *testing.T) {
	set := results.New("m1")
	set.Runs.Append("p1", scoredEntry("answer", "judge-a", intp(3)))
	store := newMemStore(set)
	jdg := &stubJudge{score: intp(5)}
	opts := Options{Catalog: mustCatalog(t, "p1"), Judge: jdg, JudgeName: "judge-a"}

	c, err := Rejudge(context.Background(), store, opts)
	require.NoError(t, err)
	assert.Equal(t, Counters{Skipped: 1}, c)
	assert.Len(t, set.Runs.Runs("p1"), 1)
	assert.Zero(t, store.saves["m1"])

	opts.Force = true
	c, err = Rejudge(context.Background(), store, opts)
	require.NoError(t, err)
	assert.Equal(t, Counters{Scored: 1}, c)
	assert.Len(t, set.Runs.Runs("p1"), 2)
	assert.Equal(t, 1, store.saves["m1"])
}

func TestRejudgeCopiesForwardUnchangedFields(t *testing.T) {
	set := results.New("m1")
	set.Runs.Append("p1", scoredEntry("stored response", "retired-judge", intp(2)))
	store := newMemStore(set)
	jdg := &stubJudge{score: intp(4)}

	c, err := Rejudge(context.Background(), store, Options{Catalog: mustCatalog(t, "p1"), Judge: jdg, JudgeName: "judge-b"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Scored)
	assert.Equal(t, []string{"p1:stored response"}, jdg.seen)

	runs := set.Runs.Runs("p1")
	require.Len(t, runs, 2)
	before, after := runs[0], runs[1]
	assert.Equal(t, before.Content, after.Content)
	assert.Equal(t, before.LatencyS, after.LatencyS)
	assert.Equal(t, *before.InputTokens, *after.InputTokens)
	assert.Equal(t, *before.OutputTokens, *after.OutputTokens)
	assert.Equal(t, before.APIModel, after.APIModel)
	assert.Equal(t, before.AutoChecks, after.AutoChecks)
	assert.Equal(t, 4, *after.JudgeScore)
	assert.Equal(t, "judge-b", after.JudgeModel)
	assert.Equal(t, "re-graded", after.JudgeRationale)
	assert.NotEqual(t, before.Timestamp, after.Timestamp)

	assert.Equal(t, 2, *before.JudgeScore, "earlier entry must not change")
	assert.Equal(t, "retired-judge", before.JudgeModel)
}

func TestRejudgeSkipsErroredAndMissingPrompts(t *testing.T) {
	set := results.New("m1")
	set.Runs.Append("failed", results.Entry{Error: "timeout"})
	set.Runs.Append("orphan", scoredEntry("x", "", nil))
	set.Runs.Append("good", scoredEntry("y", "", nil))
	store := newMemStore(set)
	var out bytes.Buffer

	c, err := Rejudge(context.Background(), store, Options{
		Catalog: mustCatalog(t, "failed", "good"), Judge: &stubJudge{score: intp(3)}, JudgeName: "j", Out: &out,
	})
	require.NoError(t, err)
	assert.Equal(t, Counters{Scored: 1, Skipped: 2}, c)
	assert.Contains(t, out.String(), "orphan - prompt not found")
	assert.Len(t, set.Runs.Runs("failed"), 1)
}

func TestRejudgeFailuresCountAsErrors(t *testing.T) {
	set := results.New("m1")
	set.Runs.Append("p1", scoredEntry("a", "", nil))
	set.Runs.Append("p2", scoredEntry("b", "", nil))
	store := newMemStore(set)

	// An unparseable verdict is appended with a nil score.
	c, err := Rejudge(context.Background(), store, Options{Catalog: mustCatalog(t, "p1", "p2"), Judge: &stubJudge{}, JudgeName: "j"})
	require.NoError(t, err)
	assert.Equal(t, Counters{Errored: 2}, c)
	assert.Len(t, set.Runs.Runs("p1"), 2)

	// An unreachable judge appends nothing.
	c, err = Rejudge(context.Background(), store, Options{Catalog: mustCatalog(t, "p1", "p2"), Judge: &stubJudge{err: errors.New("down")}, JudgeName: "j"})
	require.NoError(t, err)
	assert.Equal(t, Counters{Errored: 2}, c)
	assert.Len(t, set.Runs.Runs("p1"), 2)
}

func TestRejudgeExcludesJudgeModelAndListsStore(t *testing.T) {
	a, b, j := results.New("a"), results.New("b"), results.New("judge")
	for _, s := range []*results.ModelResults{a, b, j} {
		s.Runs.Append("p1", scoredEntry("r", "", nil))
	}
	store := newMemStore(a, b, j)
	jdg := &stubJudge{score: intp(4)}

	c, err := Rejudge(context.Background(), store, Options{
		Catalog: mustCatalog(t, "p1"), Judge: jdg, JudgeName: "judge", Exclude: "judge", Parallel: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Scored)
	assert.Len(t, j.Runs.Runs("p1"), 1)
	assert.Equal(t, 1, store.saves["a"])
	assert.Equal(t, 1, store.saves["b"])
	assert.Zero(t, store.saves["judge"])
}

func TestRejudgeRepeatedModelNameRunsOnce(t *testing.T) {
	ctx := context.Background()
	store := results.NewFileStore(filepath.Join(t.TempDir(), "results"))
	set := results.New("m1")
	set.Runs.Append("p1", scoredEntry("answer", "judge-a", intp(3)))
	require.NoError(t, store.Save(ctx, set))

	jdg := &stubJudge{score: intp(5), hook: func() { time.Sleep(50 * time.Millisecond) }}
	c, err := Rejudge(ctx, store, Options{
		Models:    []string{"m1", "m1"},
		Force:     true,
		Parallel:  2,
		Catalog:   mustCatalog(t, "p1"),
		Judge:     jdg,
		JudgeName: "judge-a",
	})
	require.NoError(t, err)
	assert.Equal(t, Counters{Scored: 1}, c)
	assert.Len(t, jdg.seen, 1)

	reloaded, err := store.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, reloaded.Runs.Runs("p1"), 2)
}

func TestRejudgeRequiresJudge(t *testing.T) {
	_, err := Rejudge(context.Background(), newMemStore(), Options{Catalog: mustCatalog(t, "p1")})
	assert.Error(t, err)
}

func TestRescore(t *testing.T) {
	set := results.New("m1")
	set.Runs.Append("p1", scoredEntry("a", "j", intp(4)))
	done := scoredEntry("b", "j", intp(5))
	v := 0.9
	done.DeepEvalScores = map[string]*float64{"coherence": &v}
	done.DeepEvalAvg = &v
	set.Runs.Append("p2", done)
	set.Runs.Append("p3", scoredEntry("c", "j", intp(3)))
	store := newMemStore(set)
	catalog := mustCatalog(t, "p1", "p2", "p3")

	c, err := Rescore(context.Background(), store, Options{Catalog: catalog, Scorer: stubScorer{}, IDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	assert.Equal(t, Counters{Scored: 1, Skipped: 1}, c)

	latest, _ := set.Latest("p1")
	assert.InDelta(t, 0.6, *latest.DeepEvalAvg, 1e-9)
	assert.Equal(t, 4, *latest.JudgeScore, "judge fields carried forward")
	assert.Equal(t, "j", latest.JudgeModel)
	assert.Len(t, set.Runs.Runs("p3"), 1, "filtered out")

	c, err = Rescore(context.Background(), store, Options{Catalog: catalog, Scorer: stubScorer{}, Force: true})
	require.NoError(t, err)
	assert.Equal(t, Counters{Scored: 3}, c)
	assert.Equal(t, 2, store.saves["m1"])
}

func TestRescoreTotalFailureAppendsNothing(t *testing.T) {
	set := results.New("m1")
	set.Runs.Append("p1", scoredEntry("a", "", nil))
	store := newMemStore(set)

	c, err := Rescore(context.Background(), store, Options{Catalog: mustCatalog(t, "p1"), Scorer: stubScorer{err: secondary.ErrNoScores}})
	require.NoError(t, err)
	assert.Equal(t, Counters{Errored: 1}, c)
	assert.Len(t, set.Runs.Runs("p1"), 1)
	assert.Zero(t, store.saves["m1"])
}

func TestCancellationPersistsProgress(t *testing.T) {
	set := results.New("m1")
	for _, id := range []string{"p1", "p2", "p3"} {
		set.Runs.Append(id, scoredEntry(id, "", nil))
	}
	store := newMemStore(set)
	ctx, cancel := context.WithCancel(context.Background())
	jdg := &stubJudge{score: intp(4), hook: cancel}

	c, err := Rejudge(ctx, store, Options{Catalog: mustCatalog(t, "p1", "p2", "p3"), Judge: jdg, JudgeName: "j"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.Scored)
	assert.Len(t, set.Runs.Runs("p1"), 2)
	assert.Len(t, set.Runs.Runs("p2"), 1)
	assert.Equal(t, 1, store.saves["m1"])

	// A second pass resumes where the first stopped.
	c, err = Rejudge(context.Background(), store, Options{Catalog: mustCatalog(t, "p1", "p2", "p3"), Judge: &stubJudge{score: intp(4)}, JudgeName: "j"})
	require.NoError(t, err)
	assert.Equal(t, Counters{Scored: 2, Skipped: 1}, c)
}
