// internal/results/file.go
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moby/sys/atomicwriter"
)

// FileStore keeps one <model>.json document per model in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file backing model.
func (s *FileStore) Path(model string) string {
	return filepath.Join(s.dir, model+".json")
}

func (s *FileStore) Load(ctx context.Context, model string) (*ModelResults, error) {
	if err := ValidateModelName(model); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(model))
	if errors.Is(err, fs.ErrNotExist) {
		return New(model), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results for %s: %w", model, err)
	}
	var set ModelResults
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode results for %s (%s): %w", model, s.Path(model), err)
	}
	return prepare(&set, model), nil
}

func (s *FileStore) Save(ctx context.Context, set *ModelResults) error {
	if err := ValidateModelName(set.ModelName); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	set.Updated = Timestamp()
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results for %s: %w", set.ModelName, err)
	}
	if err := atomicwriter.WriteFile(s.Path(set.ModelName), data, 0o644); err != nil {
		return fmt.Errorf("write results for %s: %w", set.ModelName, err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if name == ReservedName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) WriteReport(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if err := atomicwriter.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
