// internal/results/store.go
package results

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ReservedName is the result-set name taken by the saved comparison report.
const ReservedName = "comparison"

// ErrInvalidModelName is returned for model names that cannot be stored.
var ErrInvalidModelName = errors.New("invalid model name")

// ModelResults is the complete persisted history for one model.
type ModelResults struct {
	ModelName string   `json:"model_name"`
	Created   string   `json:"created"`
	Updated   string   `json:"updated,omitempty"`
	Runs      *History `json:"runs"`
}

// New returns an empty result set for model.
func New(model string) *ModelResults {
	return &ModelResults{
		ModelName: model,
		Created:   Timestamp(),
		Runs:      NewHistory(),
	}
}

// Latest returns the most recent run for id.
func (m *ModelResults) Latest(id string) (Entry, bool) {
	return m.Runs.Latest(id)
}

// Store persists model result sets. Implementations must treat an absent model as an
// empty set and must never replace unreadable data with an empty one.
type Store interface {
	// Load returns the stored set for model, or a new empty set when none exists.
	Load(ctx context.Context, model string) (*ModelResults, error)
	// Save persists the whole set, refreshing its updated timestamp.
	Save(ctx context.Context, set *ModelResults) error
	// List returns stored model names in alphabetical order, excluding ReservedName.
	List(ctx context.Context) ([]string, error)
}

// ReportWriter is implemented by stores that can hold generated reports, such as
// comparison.md, beside the result sets. It returns where the report was written.
type ReportWriter interface {
	WriteReport(ctx context.Context, name string, data []byte) (string, error)
}

// Append records e as the newest run for id and persists the set.
func Append(ctx context.Context, store Store, set *ModelResults, id string, e Entry) error {
	set.Runs.Append(id, e)
	if err := store.Save(ctx, set); err != nil {
		return fmt.Errorf("save %s after %s: %w", set.ModelName, id, err)
	}
	return nil
}

// LoadAll loads the named sets, or every stored set when names is empty.
func LoadAll(ctx context.Context, store Store, names []string) ([]*ModelResults, error) {
	if len(names) == 0 {
		listed, err := store.List(ctx)
		if err != nil {
			return nil, err
		}
		names = listed
	}
	sets := make([]*ModelResults, 0, len(names))
	for _, name := range names {
		set, err := store.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// ValidateModelName rejects names that cannot be used as a storage key.
func ValidateModelName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	case name == ReservedName:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidModelName, name)
	case strings.ContainsAny(name, `/\`) || strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidModelName, name)
	}
	return nil
}

func prepare(set *ModelResults, model string) *ModelResults {
	if set.ModelName == "" {
		set.ModelName = model
	}
	if set.Runs == nil {
		set.Runs = NewHistory()
	}
	return set
}
