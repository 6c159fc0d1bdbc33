// internal/prompts/prompts.go
// Package prompts loads the evaluation prompt catalog and selects subsets of it.
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Difficulty grades a prompt.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Prompt is one catalog item. Extra carries per-check metadata such as
// target_word_count or banned_words; the core never interprets it.
type Prompt struct {
	ID          string         `mapstructure:"id" json:"id"`
	Category    string         `mapstructure:"category" json:"category"`
	Subcategory string         `mapstructure:"subcategory" json:"subcategory"`
	Difficulty  Difficulty     `mapstructure:"difficulty" json:"difficulty"`
	CheckType   string         `mapstructure:"check_type" json:"check_type"`
	Prompt      string         `mapstructure:"prompt" json:"prompt"`
	Ideal       string         `mapstructure:"ideal" json:"ideal"`
	Criteria    []string       `mapstructure:"criteria" json:"criteria"`
	Extra       map[string]any `mapstructure:",remain" json:"-"`
}

// Catalog is an ordered, id-indexed prompt set.
type Catalog struct {
	prompts []Prompt
	byID    map[string]int
}

// ErrDuplicateID is returned when two prompts share an id.
var ErrDuplicateID = errors.New("duplicate prompt id")

const catalogSchema = `{
  "type": "object",
  "required": ["prompts"],
  "properties": {
    "prompts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "category", "prompt"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "category": {"type": "string"},
          "subcategory": {"type": "string"},
          "difficulty": {"type": "string", "enum": ["easy", "medium", "hard"]},
          "check_type": {"type": "string"},
          "prompt": {"type": "string", "minLength": 1},
          "ideal": {"type": "string"},
          "criteria": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// Load reads a catalog from a JSON or YAML file, chosen by extension.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %q: %w", path, err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	catalog, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("prompts %q: %w", path, err)
	}
	return catalog, nil
}

// Parse decodes and validates catalog data in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*Catalog, error) {
	var raw map[string]any
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	items, _ := raw["prompts"].([]any)
	catalog := &Catalog{
		prompts: make([]Prompt, 0, len(items)),
		byID:    make(map[string]int, len(items)),
	}
	for i, item := range items {
		var p Prompt
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &p,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(item); err != nil {
			return nil, fmt.Errorf("prompt %d: %w", i, err)
		}
		p.Difficulty = Difficulty(strings.ToLower(string(p.Difficulty)))
		if _, exists := catalog.byID[p.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		catalog.byID[p.ID] = len(catalog.prompts)
		catalog.prompts = append(catalog.prompts, p)
	}
	return catalog, nil
}

func validate(raw map[string]any) error {
	schema := gojsonschema.NewStringLoader(catalogSchema)
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("validate catalog: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid catalog: %s", strings.Join(msgs, "; "))
}

// New builds a catalog from prompts already in memory.
func New(items []Prompt) (*Catalog, error) {
	catalog := &Catalog{byID: make(map[string]int, len(items))}
	for _, p := range items {
		if _, exists := catalog.byID[p.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		catalog.byID[p.ID] = len(catalog.prompts)
		catalog.prompts = append(catalog.prompts, p)
	}
	return catalog, nil
}

// All returns every prompt in catalog order.
func (c *Catalog) All() []Prompt {
	out := make([]Prompt, len(c.prompts))
	copy(out, c.prompts)
	return out
}

func (c *Catalog) Len() int { return len(c.prompts) }

// ByID looks up a prompt.
func (c *Catalog) ByID(id string) (Prompt, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Prompt{}, false
	}
	return c.prompts[i], true
}

// Filter narrows a prompt selection. Empty fields match everything. Ids match exactly;
// categories and difficulties match case-insensitively.
type Filter struct {
	IDs          []string
	Categories   []string
	Difficulties []string
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return len(f.IDs) == 0 && len(f.Categories) == 0 && len(f.Difficulties) == 0
}

// Select returns the prompts matching f, in catalog order.
func (c *Catalog) Select(f Filter) []Prompt {
	ids := toSet(f.IDs, false)
	cats := toSet(f.Categories, true)
	diffs := toSet(f.Difficulties, true)

	var out []Prompt
	for _, p := range c.prompts {
		if len(ids) > 0 && !ids[p.ID] {
			continue
		}
		if len(cats) > 0 && !cats[strings.ToLower(p.Category)] {
			continue
		}
		if len(diffs) > 0 && !diffs[strings.ToLower(string(p.Difficulty))] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// IDs returns the ids of ps in order.
func IDs(ps []Prompt) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

// Categories returns the distinct categories of ps, sorted.
func Categories(ps []Prompt) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range ps {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out
}

func toSet(values []string, fold bool) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold {
			v = strings.ToLower(v)
		}
		set[v] = true
	}
	return set
}
