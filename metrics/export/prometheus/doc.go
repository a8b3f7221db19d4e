// Package prometheus serves engine metrics in the Prometheus text format.
//
// Counters are grouped into labelled families (gsa_login_total{outcome=...},
// gsa_refresh_total{outcome=...} and so on) and the authenticate latency is
// a native histogram with a real _sum. Nothing is registered globally; mount
// [Exporter.Handler] where the scraper expects it.
package prometheus
