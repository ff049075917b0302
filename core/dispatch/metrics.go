package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandLatency *prometheus.HistogramVec
	commandsTotal  *prometheus.CounterVec
	saveFailures   prometheus.Counter
	saveAttempts   prometheus.Counter
	boardsLoaded   prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Gauge) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "board_command_latency_seconds",
			Help:    "Time spent handling a board command under the board lock",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_commands_total",
			Help: "Board commands by outcome and reason",
		},
		[]string{"command", "outcome", "reason"},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_save_failures_total",
			Help: "Board saves that failed after all retries",
		},
	)
	att := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_save_attempts_total",
			Help: "Board save attempts including retries",
		},
	)
	loaded := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boards_loaded",
			Help: "Number of day boards held in memory",
		},
	)
	return lat, total, fail, att, loaded
}

func init() {
	commandLatency, commandsTotal, saveFailures, saveAttempts, boardsLoaded = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commandLatency, commandsTotal, saveFailures, saveAttempts, boardsLoaded)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commandLatency, commandsTotal, saveFailures, saveAttempts, boardsLoaded = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
