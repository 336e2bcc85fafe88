// Package otel publishes portalAuth engine metrics as OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] creates one Int64ObservableCounter per engine counter and
// a bucket gauge per histogram with an "le" attribute on each data point. All
// values come from a single [portalAuth.Engine.MetricsSnapshot] call per
// collection. Callers own the MeterProvider.
package otel
