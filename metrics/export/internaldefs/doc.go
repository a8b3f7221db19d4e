// Package internaldefs is the catalogue shared by the metric exporters: it
// maps engine MetricIDs onto exported families and label values, and turns
// latency snapshots into cumulative buckets.
//
// Both exporters render from [Families], so a renamed series changes in
// Prometheus and OpenTelemetry output at once.
package internaldefs
