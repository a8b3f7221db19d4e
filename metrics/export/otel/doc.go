// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// Every family becomes one observable counter whose series are told apart by
// an attribute, mirroring the Prometheus labels. OpenTelemetry has no
// asynchronous histogram, so authenticate latency is exported as cumulative
// bucket, sum and count counters. The caller owns the MeterProvider.
package otel
