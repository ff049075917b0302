package config

import (
	"fmt"

	"github.com/kilianp07/fieldboard/infra/boardstore"
	"github.com/kilianp07/fieldboard/infra/jobstore"
)

// JobStoreConfig selects where jobs are read from.
type JobStoreConfig struct {
	// Backend is "file" or "http".
	Backend string `json:"backend"`
	// Path is the job fixture file used by the file backend.
	Path string          `json:"path"`
	HTTP jobstore.Config `json:"http"`
}

func (c *JobStoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "file"
	}
	if c.Backend == "file" && c.Path == "" {
		c.Path = "jobs.yaml"
	}
}

func (c JobStoreConfig) Validate() error {
	switch c.Backend {
	case "file":
		if c.Path == "" {
			return fmt.Errorf("path is required")
		}
	case "http":
		if c.HTTP.BaseURL == "" {
			return fmt.Errorf("http.base_url is required")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// StoreConfig selects the board persistence backend.
type StoreConfig struct {
	// Backend is one of "memory", "file", "sqlite" or "etcd".
	Backend string `json:"backend"`
	// Path is a directory for "file" and a database file for "sqlite".
	Path string                `json:"path"`
	Etcd boardstore.EtcdConfig `json:"etcd"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Path != "" {
		return
	}
	switch c.Backend {
	case "file":
		c.Path = "boards"
	case "sqlite":
		c.Path = "boards.db"
	}
}

func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory", "file", "sqlite":
	case "etcd":
		if len(c.Etcd.Endpoints) == 0 {
			return fmt.Errorf("etcd.endpoints is required")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}
