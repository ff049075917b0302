// Package metrics defines interfaces for recording board activity. Sinks
// like PromSink and InfluxSink record handled commands, lane loads and
// persistence health, and can be combined with NewMultiSink. The factory
// helpers return a MultiSink automatically when multiple sinks are
// configured.
package metrics
