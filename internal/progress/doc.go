// Package progress carries workflow execution events from the engine to
// pluggable sinks. Emitters never block: events are buffered, batched on a
// background goroutine and dropped under backpressure.
package progress
