// Package otel publishes engine counters through OpenTelemetry observable
// instruments: one Int64ObservableCounter per metric family with the outcome
// carried as attributes, and the latency histogram as a bucket gauge keyed by
// an "le" attribute. A single callback reads the engine snapshot on each
// collection. Callers own the MeterProvider.
package otel
