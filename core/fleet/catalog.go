// Package fleet provides the vehicle catalog: the lanes available on a day.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kilianp07/fieldboard/core/model"
	"gopkg.in/yaml.v3"
)

// Catalog lists the vehicles available on a day, in display order.
type Catalog interface {
	Vehicles(ctx context.Context, day time.Time) ([]model.Vehicle, error)
}

// StaticCatalog returns the same vehicles for every day.
type StaticCatalog []model.Vehicle

func (c StaticCatalog) Vehicles(ctx context.Context, _ time.Time) ([]model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]model.Vehicle(nil), c...), nil
}

// Validate checks every vehicle and rejects duplicate ids.
func (c StaticCatalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, v := range c {
		if err := v.Validate(); err != nil {
			return err
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("duplicate vehicle %s", v.ID)
		}
		seen[v.ID] = struct{}{}
	}
	return nil
}

type catalogFile struct {
	Vehicles []model.Vehicle `json:"vehicles" yaml:"vehicles"`
}

// LoadCatalog reads a JSON or YAML file with a top-level "vehicles" list.
func LoadCatalog(path string) (StaticCatalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f catalogFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	c := StaticCatalog(f.Vehicles)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
