// internal/report/dashboard.go
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/mwiater/llmeval/internal/results"
	"github.com/mwiater/llmeval/internal/scoring"
)

// DashboardOptions labels the rendered dashboard.
type DashboardOptions struct {
	Title      string
	JudgeModel string
	Weights    scoring.Weights
}

type dashboardData struct {
	Title       string
	Generated   string
	JudgeModel  string
	PromptCount int
	Rows        []scoring.Stats
	Metrics     []string
	Categories  []scoring.CategoryRow
	Flags       []scoring.FlagRow
	Methodology template.HTML
	ChartJSON   template.JS
}

type chartModel struct {
	Name         string   `json:"name"`
	Composite    *float64 `json:"composite"`
	Distribution [5]int   `json:"distribution"`
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"judge":    fmtJudge,
	"optional": fmtOptional,
	"inc":      func(i int) int { return i + 1 },
	"metric": func(s scoring.Stats, name string) string {
		if v, ok := s.MetricAvgs[name]; ok {
			return fmt.Sprintf("%.2f", v)
		}
		return dash
	},
	"band": func(v *float64) string {
		switch {
		case v == nil:
			return "none"
		case *v >= 0.75:
			return "high"
		case *v >= 0.5:
			return "mid"
		default:
			return "low"
		}
	},
}).Parse(dashboardHTML))

// Dashboard renders lb as a standalone HTML page.
func Dashboard(lb scoring.Leaderboard, opts DashboardOptions) ([]byte, error) {
	var methodology bytes.Buffer
	if err := markdown.Convert([]byte(methodologyMarkdown(opts)), &methodology); err != nil {
		return nil, fmt.Errorf("render methodology: %w", err)
	}

	chart := make([]chartModel, 0, len(lb.Rows))
	for _, r := range lb.Rows {
		chart = append(chart, chartModel{Name: r.Model, Composite: r.Composite, Distribution: r.Distribution})
	}
	payload, err := json.Marshal(chart)
	if err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = "llmeval: LLM Comparison Dashboard"
	}
	data := dashboardData{
		Title:       title,
		Generated:   results.Timestamp(),
		JudgeModel:  opts.JudgeModel,
		PromptCount: len(lb.Prompts),
		Rows:        lb.Rows,
		Metrics:     metricNames(lb.Rows),
		Categories:  lb.Categories,
		Flags:       lb.Flags,
		Methodology: template.HTML(methodology.String()),
		ChartJSON:   template.JS(payload),
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func metricNames(rows []scoring.Stats) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		for name := range r.MetricAvgs {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func methodologyMarkdown(opts DashboardOptions) string {
	judge := opts.JudgeModel
	if judge == "" {
		judge = "not configured"
	}
	return fmt.Sprintf(`## Methodology

Each model answers every prompt once per evaluation pass. Only the **latest** run of each
prompt counts towards these figures; earlier runs stay in the history.

| Signal | Range | Source |
|---|---|---|
| Judge score | 1-5 | LLM judge (%s) |
| Secondary metrics | 0-1 | correctness, coherence, instruction following |
| Auto-check flags | - | heuristic checks per prompt type |

**Composite** = %.2f × (judge − 1) / 4 + %.2f × secondary average. When only one side is
available the composite is that side alone.

**Efficiency** = average judge score / log2(average output tokens).

Failed API calls count as errors and are excluded from score, latency and token averages.
The judge model itself is excluded from this leaderboard.
`, judge, opts.Weights.Judge, opts.Weights.Secondary)
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ .Title }}</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css">
  <style>
    :root {
      --primary: #334155;
      --light: #F1F5F9;
      --background: #FFFFFF;
      --text: #0F172A;
      --high: #10B981;
      --mid: #F59E0B;
      --low: #EF4444;
      --border: #E2E8F0;
    }
    body { background-color: var(--light); color: var(--text); }
    .navbar-dark { background-color: var(--primary) !important; }
    .card { border: 1px solid var(--border); background-color: var(--background); }
    .band-high { color: var(--high); font-weight: 600; }
    .band-mid { color: var(--mid); font-weight: 600; }
    .band-low { color: var(--low); font-weight: 600; }
    .band-none { color: #94A3B8; }
    .bar { height: 1rem; background: var(--primary); border-radius: 2px; }
    .dist span { display: inline-block; width: 1.6rem; text-align: center; font-size: 0.8rem; }
  </style>
</head>
<body>
<nav class="navbar navbar-dark mb-4">
  <div class="container-fluid">
    <span class="navbar-brand">{{ .Title }}</span>
    <span class="text-light small">{{ .PromptCount }} prompts · judge: {{ if .JudgeModel }}{{ .JudgeModel }}{{ else }}none{{ end }} · generated {{ .Generated }}</span>
  </div>
</nav>
<main class="container-fluid">
  <div class="card mb-4"><div class="card-body">
    <h5 class="card-title">Leaderboard</h5>
    <table class="table table-sm table-striped" id="leaderboard">
      <thead><tr>
        <th>#</th><th>Model</th><th>Composite</th><th>Judge</th><th>Secondary</th><th>Scored</th>
        <th>Errors</th><th>Flagged</th><th>Latency (mean ± sd / median)</th><th>Tokens</th><th>Efficiency</th><th>Score distribution 1-5</th>
      </tr></thead>
      <tbody>
      {{- range $i, $r := .Rows }}
      <tr data-model="{{ $r.Model }}">
        <td>{{ inc $i }}</td>
        <td>{{ $r.Model }}</td>
        <td class="band-{{ band $r.Composite }}">{{ optional $r.Composite }}</td>
        <td>{{ judge $r }}</td>
        <td>{{ optional $r.SecondaryAvg }}</td>
        <td>{{ $r.Scored }}/{{ $r.Total }}</td>
        <td>{{ $r.Errored }}</td>
        <td>{{ $r.Flagged }}</td>
        <td>{{ printf "%.1f" $r.Latency.Mean }}s ± {{ printf "%.1f" $r.Latency.StdDev }} / {{ printf "%.1f" $r.MedianLatency }}s</td>
        <td>{{ printf "%.0f" $r.OutputTokens.Mean }}</td>
        <td>{{ printf "%.2f" $r.Efficiency }}</td>
        <td class="dist">{{ range $r.Distribution }}<span>{{ . }}</span>{{ end }}</td>
      </tr>
      {{- end }}
      </tbody>
    </table>
    <div id="composite-chart"></div>
  </div></div>

  {{- if .Metrics }}
  <div class="card mb-4"><div class="card-body">
    <h5 class="card-title">Secondary metric breakdown</h5>
    <table class="table table-sm">
      <thead><tr><th>Model</th>{{ range .Metrics }}<th>{{ . }}</th>{{ end }}</tr></thead>
      <tbody>
      {{- range $r := .Rows }}
      <tr><td>{{ $r.Model }}</td>{{ range $.Metrics }}<td>{{ metric $r . }}</td>{{ end }}</tr>
      {{- end }}
      </tbody>
    </table>
  </div></div>
  {{- end }}

  <div class="card mb-4"><div class="card-body">
    <h5 class="card-title">By category</h5>
    <table class="table table-sm">
      <thead><tr><th>Category</th>{{ range .Rows }}<th>{{ .Model }}</th>{{ end }}</tr></thead>
      <tbody>
      {{- range .Categories }}
      <tr><td>{{ .Category }}</td>{{ range .Models }}<td class="band-{{ band .Composite }}">{{ judge . }}</td>{{ end }}</tr>
      {{- end }}
      </tbody>
    </table>
  </div></div>

  <div class="card mb-4"><div class="card-body">
    <h5 class="card-title">Notable flags</h5>
    {{- if .Flags }}
    <ul class="list-unstyled">
    {{- range .Flags }}
      <li class="mb-2"><strong>{{ .PromptID }}</strong> ({{ .Subcategory }})
        <ul>{{ range .Models }}<li>{{ .Model }}: {{ range $i, $f := .Flags }}{{ if $i }}, {{ end }}<code>{{ $f }}</code>{{ end }}</li>{{ end }}</ul>
      </li>
    {{- end }}
    </ul>
    {{- else }}
    <p>None, all passed auto-checks.</p>
    {{- end }}
  </div></div>

  <div class="card mb-4"><div class="card-body">{{ .Methodology }}</div></div>
</main>
<script>
  const models = {{ .ChartJSON }};
  const chart = document.getElementById("composite-chart");
  models.forEach(function (m) {
    const row = document.createElement("div");
    row.className = "d-flex align-items-center mb-1";
    const label = document.createElement("div");
    label.style.width = "14rem";
    label.textContent = m.name;
    const bar = document.createElement("div");
    bar.className = "bar";
    bar.style.width = ((m.composite || 0) * 60) + "%";
    bar.title = m.composite === null ? "no score" : m.composite.toFixed(2);
    row.appendChild(label);
    row.appendChild(bar);
    chart.appendChild(row);
  });
</script>
</body>
</html>`
