// Package infra holds the adapters behind the core interfaces: board and
// job stores, MQTT, metrics sinks, logging and error reporting.
package infra
