// internal/scoring/scoring.go

// Package scoring reduces run histories to per-model statistics, merges judge and
// secondary scores into a composite, and ranks models.
package scoring

import (
	"math"
	"sort"

	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/util"
)

// Weights are the composite blend factors.
type Weights struct {
	Judge     float64
	Secondary float64
}

// NormalizeJudge maps a 1-5 judge score onto 0-1.
func NormalizeJudge(score float64) float64 {
	return (score - 1) / 4
}

// Composite blends the average judge score and the secondary average. With only one
// side present it is that side alone; with neither it is nil.
func Composite(avgJudge, secondaryAvg *float64, w Weights) *float64 {
	var v float64
	switch {
	case avgJudge != nil && secondaryAvg != nil:
		judge, secondary := NormalizeJudge(*avgJudge), *secondaryAvg
		v = w.Judge*judge + w.Secondary*secondary
	case avgJudge != nil:
		v = NormalizeJudge(*avgJudge)
	case secondaryAvg != nil:
		v = *secondaryAvg
	default:
		return nil
	}
	v = util.Round(v, 4)
	return &v
}

// Efficiency is quality per order of magnitude of output length.
func Efficiency(avgJudge, avgTokens float64) float64 {
	if avgJudge <= 0 || avgTokens <= 1 {
		return 0
	}
	return util.Round(avgJudge/math.Log2(avgTokens), 2)
}

// Stats summarises one model's latest runs over a prompt set.
type Stats struct {
	Model string `json:"model"`
	// Total counts prompts with at least one run.
	Total   int `json:"total"`
	Scored  int `json:"scored"`
	Errored int `json:"errored"`
	Flagged int `json:"flagged"`

	AvgJudge      *float64           `json:"avg_judge"`
	Distribution  [5]int             `json:"distribution"`
	Latency       RunningStat        `json:"latency"`
	MedianLatency float64            `json:"median_latency"`
	OutputTokens  RunningStat        `json:"output_tokens"`
	SecondaryAvg  *float64           `json:"secondary_avg"`
	MetricAvgs    map[string]float64 `json:"metric_avgs,omitempty"`
	Composite     *float64           `json:"composite"`
	Efficiency    float64            `json:"efficiency"`
}

// JudgeAvg returns the average judge score or 0.
func (s Stats) JudgeAvg() float64 {
	if s.AvgJudge == nil {
		return 0
	}
	return *s.AvgJudge
}

// CompositeValue returns the composite or 0 for ordering and display.
func (s Stats) CompositeValue() float64 {
	if s.Composite == nil {
		return 0
	}
	return *s.Composite
}

// Summarize reduces set over ids. Failed completions count towards Total and Errored
// only.
func Summarize(set *results.ModelResults, ids []string, w Weights) Stats {
	st := Stats{Model: set.ModelName}
	var judgeSum, secondarySum float64
	var secondaryN int
	var latencies []float64
	metricSums := map[string]float64{}
	metricCounts := map[string]int{}

	for _, id := range ids {
		e, ok := set.Latest(id)
		if !ok {
			continue
		}
		st.Total++
		if e.Failed() {
			st.Errored++
			continue
		}
		if e.JudgeScore != nil {
			st.Scored++
			judgeSum += float64(*e.JudgeScore)
			if s := *e.JudgeScore; s >= 1 && s <= 5 {
				st.Distribution[s-1]++
			}
		}
		if e.Flagged() {
			st.Flagged++
		}
		st.Latency.Add(e.LatencyS)
		latencies = append(latencies, e.LatencyS)
		tokens := 0
		if e.OutputTokens != nil {
			tokens = *e.OutputTokens
		}
		st.OutputTokens.Add(float64(tokens))
		if e.DeepEvalAvg != nil {
			secondarySum += *e.DeepEvalAvg
			secondaryN++
		}
		for name, v := range e.DeepEvalScores {
			if v != nil {
				metricSums[name] += *v
				metricCounts[name]++
			}
		}
	}

	if st.Scored > 0 {
		avg := judgeSum / float64(st.Scored)
		st.AvgJudge = &avg
	}
	if secondaryN > 0 {
		avg := secondarySum / float64(secondaryN)
		st.SecondaryAvg = &avg
	}
	if len(metricCounts) > 0 {
		st.MetricAvgs = make(map[string]float64, len(metricCounts))
		for name, n := range metricCounts {
			st.MetricAvgs[name] = util.Round(metricSums[name]/float64(n), 4)
		}
	}
	st.MedianLatency = median(latencies)
	st.Composite = Composite(st.AvgJudge, st.SecondaryAvg, w)
	st.Efficiency = Efficiency(st.JudgeAvg(), st.OutputTokens.Mean)
	return st
}

// Rank orders rows in place: models with any judge score first, then composite
// descending (nil counts as 0), then model name.
func Rank(rows []Stats) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.Scored > 0) != (b.Scored > 0) {
			return a.Scored > 0
		}
		if a.CompositeValue() != b.CompositeValue() {
			return a.CompositeValue() > b.CompositeValue()
		}
		return a.Model < b.Model
	})
}
