package metrics

import "github.com/kilianp07/fieldboard/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort enables the /metrics endpoint when set.
	PrometheusPort string `json:"prometheus_port"`
}
