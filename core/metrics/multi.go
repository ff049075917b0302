package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCommand forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCommand(ev CommandEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCommand(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordLaneLoad forwards lane loads when supported by the sink.
func (m *MultiSink) RecordLaneLoad(loads []LaneLoad) error {
	for _, s := range m.Sinks {
		if r, ok := s.(LaneLoadRecorder); ok {
			if err := r.RecordLaneLoad(loads); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBalance forwards balance statistics.
func (m *MultiSink) RecordBalance(ev BalanceEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(BalanceRecorder); ok {
			if err := r.RecordBalance(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPersistence forwards persistence health changes.
func (m *MultiSink) RecordPersistence(ev PersistenceEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(PersistenceRecorder); ok {
			if err := r.RecordPersistence(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBoardLoad forwards board loads.
func (m *MultiSink) RecordBoardLoad(ev BoardLoadEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(BoardLoadRecorder); ok {
			if err := r.RecordBoardLoad(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
