// Package scenarios replays scripted board sessions described in YAML.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fieldboard/core/jobs"
	"github.com/kilianp07/fieldboard/core/model"
)

// Step is one command of a scenario. Version overrides the expected
// version sent with the command; by default the current board version is
// used.
type Step struct {
	Op       string  `yaml:"op"`
	Job      string  `yaml:"job,omitempty"`
	Vehicle  string  `yaml:"vehicle,omitempty"`
	Position int     `yaml:"position,omitempty"`
	Status   string  `yaml:"status,omitempty"`
	Version  *uint64 `yaml:"version,omitempty"`
	// Expect is the error code of the outcome, "ok" when empty.
	Expect string `yaml:"expect,omitempty"`
}

type Expected struct {
	Version       uint64              `yaml:"version"`
	Lanes         map[string][]string `yaml:"lanes"`
	UndoAvailable bool                `yaml:"undo_available"`
	Statuses      map[string]string   `yaml:"statuses,omitempty"`
}

type Scenario struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Date        string          `yaml:"date"`
	UndoDepth   int             `yaml:"undo_depth,omitempty"`
	Vehicles    []model.Vehicle `yaml:"vehicles"`
	Jobs        []string        `yaml:"jobs"`
	Steps       []Step          `yaml:"steps"`
	Expected    Expected        `yaml:"expected"`
}

// Records turns the scenario jobs into registry records scheduled hourly
// from 08:00 on the scenario date.
func (s *Scenario) Records() ([]jobs.Record, error) {
	day, err := model.ParseDay(s.Date)
	if err != nil {
		return nil, err
	}
	out := make([]jobs.Record, len(s.Jobs))
	for i, id := range s.Jobs {
		out[i] = jobs.Record{
			ID:            id,
			ProjectRef:    "P-" + id,
			ScheduledTime: day.Add(time.Duration(8+i) * time.Hour),
			DurationHours: 1,
		}
	}
	return out, nil
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" || sc.Date == "" {
		return nil, fmt.Errorf("%s: name and date are required", path)
	}
	return &sc, nil
}
