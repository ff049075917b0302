package config

import (
	"fmt"

	"github.com/kilianp07/fieldboard/core/fleet"
	"github.com/kilianp07/fieldboard/core/model"
)

// VehicleConfig declares one lane inline. Capacity 0 means unlimited.
type VehicleConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// FleetConfig lists the vehicles of the board, either inline or from a
// catalog file (YAML or JSON).
type FleetConfig struct {
	CatalogFile string          `json:"catalog_file"`
	Vehicles    []VehicleConfig `json:"vehicles"`
}

func (c *FleetConfig) SetDefaults() {}

func (c FleetConfig) Validate() error {
	if c.CatalogFile != "" && len(c.Vehicles) > 0 {
		return fmt.Errorf("catalog_file and vehicles are mutually exclusive")
	}
	if c.CatalogFile == "" {
		return c.inline().Validate()
	}
	return nil
}

func (c FleetConfig) inline() fleet.StaticCatalog {
	out := make(fleet.StaticCatalog, len(c.Vehicles))
	for i, v := range c.Vehicles {
		out[i] = model.Vehicle{ID: v.ID, Name: v.Name, Capacity: model.Capacity(v.Capacity)}
	}
	return out
}

// Catalog returns the configured vehicle catalog.
func (c FleetConfig) Catalog() (fleet.StaticCatalog, error) {
	if c.CatalogFile != "" {
		return fleet.LoadCatalog(c.CatalogFile)
	}
	return c.inline(), nil
}
