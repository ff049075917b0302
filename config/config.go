package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fieldboard/core/dispatch"
	"github.com/kilianp07/fieldboard/core/metrics"
	"github.com/kilianp07/fieldboard/infra/mqtt"
)

type Config struct {
	Engine   dispatch.Config `json:"engine"`
	Fleet    FleetConfig     `json:"fleet"`
	JobStore JobStoreConfig  `json:"job_store"`
	Store    StoreConfig     `json:"store"`
	Journal  JournalConfig   `json:"journal"`
	MQTT     mqtt.Config     `json:"mqtt"`
	Metrics  metrics.Config  `json:"metrics"`
	API      APIConfig       `json:"api"`
	Sentry   SentryConfig    `json:"sentry"`
}

type section interface {
	SetDefaults()
	Validate() error
}

// Load reads a YAML or JSON file, applies K_ prefixed environment
// overrides (K_API__ADDRESS sets api.address) and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Prepare applies defaults and validates every section.
func (c *Config) Prepare() error {
	sections := []struct {
		name string
		s    section
	}{
		{"engine", &c.Engine},
		{"fleet", &c.Fleet},
		{"job_store", &c.JobStore},
		{"store", &c.Store},
		{"journal", &c.Journal},
		{"api", &c.API},
	}
	for _, s := range sections {
		s.s.SetDefaults()
		if err := s.s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
