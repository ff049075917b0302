package metrics

import (
	coremetrics "github.com/kilianp07/fieldboard/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records board activity in Prometheus metrics.
type PromSink struct {
	events   *prometheus.CounterVec
	laneFill *prometheus.GaugeVec
	laneJobs *prometheus.GaugeVec
	balance  *prometheus.GaugeVec
	degraded *prometheus.GaugeVec
	loads    *prometheus.HistogramVec
}

// NewPromSink registers board metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_command_events_total",
			Help: "Handled board commands seen on the event bus",
		}, []string{"command", "outcome"}),
		laneFill: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "board_lane_fill_ratio",
			Help: "Jobs over capacity for each capacity-bound lane",
		}, []string{"date", "vehicle_id"}),
		laneJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "board_lane_jobs",
			Help: "Number of jobs in each lane",
		}, []string{"date", "vehicle_id"}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "board_fill_balance",
			Help: "Mean and standard deviation of lane fill",
		}, []string{"date", "stat"}),
		degraded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "board_persistence_degraded",
			Help: "1 while the board's last save failed",
		}, []string{"date"}),
		loads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "board_load_duration_seconds",
			Help:    "Time to build a day's board",
			Buckets: prometheus.DefBuckets,
		}, []string{"spilled"}),
	}
	var err error
	if s.events, err = register(reg, s.events); err != nil {
		return nil, err
	}
	if s.laneFill, err = register(reg, s.laneFill); err != nil {
		return nil, err
	}
	if s.laneJobs, err = register(reg, s.laneJobs); err != nil {
		return nil, err
	}
	if s.balance, err = register(reg, s.balance); err != nil {
		return nil, err
	}
	if s.degraded, err = register(reg, s.degraded); err != nil {
		return nil, err
	}
	if s.loads, err = register(reg, s.loads); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c is a duplicate.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCommand counts a handled command.
func (s *PromSink) RecordCommand(ev coremetrics.CommandEvent) error {
	s.events.WithLabelValues(ev.Command, ev.Outcome).Inc()
	return nil
}

// RecordLaneLoad sets the lane gauges.
func (s *PromSink) RecordLaneLoad(loads []coremetrics.LaneLoad) error {
	for _, l := range loads {
		s.laneJobs.WithLabelValues(l.Date, l.VehicleID).Set(float64(l.Jobs))
		if l.Capacity > 0 {
			s.laneFill.WithLabelValues(l.Date, l.VehicleID).Set(l.Fill)
		}
	}
	return nil
}

// RecordBalance sets the fill balance gauges.
func (s *PromSink) RecordBalance(ev coremetrics.BalanceEvent) error {
	s.balance.WithLabelValues(ev.Date, "mean").Set(ev.MeanFill)
	s.balance.WithLabelValues(ev.Date, "stddev").Set(ev.StdDevFill)
	return nil
}

// RecordPersistence flips the degraded gauge.
func (s *PromSink) RecordPersistence(ev coremetrics.PersistenceEvent) error {
	v := 0.0
	if ev.Degraded {
		v = 1
	}
	s.degraded.WithLabelValues(ev.Date).Set(v)
	return nil
}

// RecordBoardLoad observes the build duration.
func (s *PromSink) RecordBoardLoad(ev coremetrics.BoardLoadEvent) error {
	spilled := "false"
	if ev.Spilled > 0 {
		spilled = "true"
	}
	s.loads.WithLabelValues(spilled).Observe(ev.Duration.Seconds())
	return nil
}
