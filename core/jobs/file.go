package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/fieldboard/core/model"
	"gopkg.in/yaml.v3"
)

type recordFile struct {
	Jobs []Record `json:"jobs" yaml:"jobs"`
}

// LoadRecords reads a YAML or JSON fixture with a top-level "jobs" list.
func LoadRecords(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f recordFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported job file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return f.Jobs, nil
}

// FileRegistry serves jobs from a fixture file. The file is re-read on each
// day lookup; status updates are written back to it.
type FileRegistry struct {
	mu   sync.Mutex
	path string
}

// NewFileRegistry validates that path can be decoded.
func NewFileRegistry(path string) (*FileRegistry, error) {
	if _, err := LoadRecords(path); err != nil {
		return nil, err
	}
	return &FileRegistry{path: path}, nil
}

func (f *FileRegistry) JobsForDay(ctx context.Context, day time.Time) ([]model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	records, err := LoadRecords(f.path)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ForDay(records, day)
}

func (f *FileRegistry) UpdateStatus(ctx context.Context, jobID string, status model.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := LoadRecords(f.path)
	if err != nil {
		return err
	}
	found := false
	for i := range records {
		if records[i].ID == jobID {
			records[i].Status = string(status)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	var b []byte
	if strings.EqualFold(filepath.Ext(f.path), ".json") {
		b, err = json.MarshalIndent(recordFile{Jobs: records}, "", "  ")
	} else {
		b, err = yaml.Marshal(recordFile{Jobs: records})
	}
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
