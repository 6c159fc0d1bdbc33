// internal/results/file_test.go
package results

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/llmeval/internal/appconfig"
)

func fixClock(t *testing.T, ts time.Time) {
	t.Helper()
	orig := Now
	Now = func() time.Time { return ts }
	t.Cleanup(func() { Now = orig })
}

func TestFileStoreLoadAbsentModel(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "results"))

	set, err := store.Load(context.Background(), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", set.ModelName)
	assert.Equal(t, 0, set.Runs.Len())
	_, ok := set.Latest("any")
	assert.False(t, ok)
}

func TestFileStoreAppendPersistsEachEntry(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	fixClock(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	set, err := store.Load(ctx, "llama3")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, Append(ctx, store, set, "P1", Entry{Content: "run", OutputTokens: intPtr(i)}))

		reloaded, err := store.Load(ctx, "llama3")
		require.NoError(t, err)
		runs := reloaded.Runs.Runs("P1")
		require.Len(t, runs, i)
		for j, r := range runs {
			assert.Equal(t, j+1, *r.OutputTokens, "earlier entries must be unchanged")
		}
		latest, ok := reloaded.Latest("P1")
		require.True(t, ok)
		assert.Equal(t, i, *latest.OutputTokens)
		assert.Equal(t, "2025-03-01T10:00:00Z", reloaded.Updated)
	}
}

func TestFileStoreCorruptFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	_, err := NewFileStore(dir).Load(context.Background(), "broken")
	require.Error(t, err)
}

func TestFileStoreReadsNullableFields(t *testing.T) {
	dir := t.TempDir()
	doc := `{
  "model_name": "legacy",
  "created": "2025-01-01T00:00:00",
  "runs": {
    "B2": [{"timestamp": "t1", "api_model": "m", "content": "x", "latency_s": 1.5,
            "input_tokens": null, "output_tokens": 12,
            "auto_checks": {"flags": [], "auto_scores": {}, "passed": true},
            "judge_score": null, "judge_rationale": "", "judge_model": null}],
    "A1": [{"timestamp": "t2", "api_model": "m", "content": "", "latency_s": 0.2,
            "error": "timeout",
            "auto_checks": {"flags": ["API_ERROR"], "auto_scores": {}, "passed": false},
            "judge_score": null, "judge_rationale": "", "judge_model": "judge"}]
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.json"), []byte(doc), 0o644))

	set, err := NewFileStore(dir).Load(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, []string{"B2", "A1"}, set.Runs.IDs())

	b2, _ := set.Latest("B2")
	assert.Nil(t, b2.InputTokens)
	assert.Equal(t, 12, *b2.OutputTokens)
	assert.Nil(t, b2.JudgeScore)
	assert.Empty(t, b2.JudgeModel)

	a1, _ := set.Latest("A1")
	assert.True(t, a1.Failed())
	assert.False(t, a1.AutoChecks.Passed)
}

func TestFileStoreSaveWritesStableJSON(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	set := New("m1")
	set.Runs.Append("Q2", Entry{Content: "b"})
	set.Runs.Append("Q1", Entry{Content: "a"})
	require.NoError(t, store.Save(ctx, set))

	data, err := os.ReadFile(store.Path("m1"))
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "m1", generic["model_name"])
	assert.Contains(t, generic, "updated")
	assert.Less(t, strings.Index(string(data), `"Q2"`), strings.Index(string(data), `"Q1"`))
}

func TestFileStoreList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	names, err := NewFileStore(filepath.Join(dir, "missing")).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, m := range []string{"zeta", "alpha", "gpt-4.1"} {
		require.NoError(t, store.Save(ctx, New(m)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comparison.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	path, err := store.WriteReport(ctx, "comparison.md", []byte("# report"))
	require.NoError(t, err)
	assert.FileExists(t, path)

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "gpt-4.1", "zeta"}, names)
}

func TestValidateModelName(t *testing.T) {
	for _, bad := range []string{"", "comparison", "../etc/passwd", "a/b", `a\b`} {
		assert.ErrorIs(t, ValidateModelName(bad), ErrInvalidModelName, bad)
	}
	assert.NoError(t, ValidateModelName("claude-sonnet-4"))

	_, err := NewFileStore(t.TempDir()).Load(context.Background(), "../escape")
	assert.ErrorIs(t, err, ErrInvalidModelName)
}

func TestLoadAll(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	for _, m := range []string{"b", "a"} {
		set := New(m)
		require.NoError(t, Append(ctx, store, set, "p1", Entry{Content: m}))
	}

	sets, err := LoadAll(ctx, store, nil)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "a", sets[0].ModelName)

	sets, err = LoadAll(ctx, store, []string{"b", "new"})
	require.NoError(t, err)
	assert.Equal(t, 1, sets[0].Runs.Len())
	assert.Equal(t, 0, sets[1].Runs.Len())
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")

	store, err := Open(context.Background(), appconfig.Config{Storage: appconfig.StorageConfig{ResultsDir: dir}})
	require.NoError(t, err)
	fs, ok := store.(*FileStore)
	require.True(t, ok, "expected a file store, got %T", store)
	assert.Equal(t, filepath.Join(dir, "m.json"), fs.Path("m"))

	_, err = Open(context.Background(), appconfig.Config{Storage: appconfig.StorageConfig{Backend: "ftp"}})
	assert.True(t, errors.Is(err, appconfig.ErrConfig))
}

func TestTimestampKeepsSubsecondPrecision(t *testing.T) {
	fixClock(t, time.Date(2025, 3, 1, 10, 0, 0, 123456000, time.UTC))
	first := Timestamp()
	assert.Equal(t, "2025-03-01T10:00:00.123456Z", first)

	fixClock(t, time.Date(2025, 3, 1, 10, 0, 0, 654321000, time.UTC))
	assert.NotEqual(t, first, Timestamp())
}
