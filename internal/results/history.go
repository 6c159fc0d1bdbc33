// internal/results/history.go
package results

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// History maps prompt ids to their runs, oldest first. Prompt ids keep the order in
// which they were first recorded, including across a JSON round trip.
type History struct {
	runs *orderedmap.OrderedMap[string, []Entry]
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{runs: orderedmap.New[string, []Entry]()}
}

func (h *History) ensure() {
	if h.runs == nil {
		h.runs = orderedmap.New[string, []Entry]()
	}
}

// Append adds e as the newest run for id.
func (h *History) Append(id string, e Entry) {
	h.ensure()
	existing, _ := h.runs.Get(id)
	runs := make([]Entry, len(existing), len(existing)+1)
	copy(runs, existing)
	h.runs.Set(id, append(runs, e))
}

// Latest returns the most recent run for id.
func (h *History) Latest(id string) (Entry, bool) {
	if h == nil || h.runs == nil {
		return Entry{}, false
	}
	runs, ok := h.runs.Get(id)
	if !ok || len(runs) == 0 {
		return Entry{}, false
	}
	return runs[len(runs)-1], true
}

// Runs returns a copy of all runs for id, oldest first.
func (h *History) Runs(id string) []Entry {
	if h == nil || h.runs == nil {
		return nil
	}
	runs, _ := h.runs.Get(id)
	out := make([]Entry, len(runs))
	copy(out, runs)
	return out
}

// IDs returns every prompt id with at least one run, in insertion order.
func (h *History) IDs() []string {
	if h == nil || h.runs == nil {
		return nil
	}
	ids := make([]string, 0, h.runs.Len())
	for pair := h.runs.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) > 0 {
			ids = append(ids, pair.Key)
		}
	}
	return ids
}

// Len returns the number of prompt ids with at least one run.
func (h *History) Len() int {
	return len(h.IDs())
}

// Has reports whether id has at least one run.
func (h *History) Has(id string) bool {
	_, ok := h.Latest(id)
	return ok
}

func (h *History) MarshalJSON() ([]byte, error) {
	h.ensure()
	return h.runs.MarshalJSON()
}

func (h *History) UnmarshalJSON(data []byte) error {
	h.runs = orderedmap.New[string, []Entry]()
	return h.runs.UnmarshalJSON(data)
}
