// Package sinks implements progress consumers: a structured log sink and a
// Prometheus sink for execution-level metrics.
package sinks
