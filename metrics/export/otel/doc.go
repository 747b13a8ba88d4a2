// Package otel publishes tokenguard engine metrics as OpenTelemetry
// observable instruments.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter. The
// validate latency histogram becomes a "<name>_bucket" gauge carrying one
// cumulative data point per "le" attribute value, plus a "<name>_count"
// counter. One callback reads the engine's MetricsSnapshot per collection.
//
// The caller owns the MeterProvider and supplies the Meter.
package otel
