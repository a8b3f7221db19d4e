package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/metrics/export/internaldefs"
)

// ErrNilArgument is returned by [New] for a nil meter or source.
var ErrNilArgument = errors.New("otel exporter: nil meter or source")

// Source is the part of [goSessionAuth.Engine] the exporter reads.
type Source interface {
	MetricsSnapshot() goSessionAuth.MetricsSnapshot
	AuditDropped() uint64
}

type family struct {
	def        internaldefs.Family
	instrument metric.Int64ObservableCounter
	attrs      []metric.ObserveOption
}

// Exporter keeps the callback registration alive until [Exporter.Close].
type Exporter struct {
	source       Source
	families     []family
	latencyBkt   metric.Int64ObservableCounter
	latencySum   metric.Float64ObservableCounter
	latencyCount metric.Int64ObservableCounter
	dropped      metric.Int64ObservableCounter
	registration metric.Registration
}

// New creates the instruments on meter and registers one callback that
// snapshots source per collection.
func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil || source == nil {
		return nil, ErrNilArgument
	}
	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel exporter: counter %s: %w", def.Name, err)
		}
		f := family{def: def, instrument: ins, attrs: make([]metric.ObserveOption, len(def.Series))}
		for i, s := range def.Series {
			if def.Label != "" {
				f.attrs[i] = metric.WithAttributes(attribute.String(def.Label, s.Value))
			}
		}
		e.families = append(e.families, f)
		observables = append(observables, ins)
	}

	var err error
	if e.latencyBkt, err = meter.Int64ObservableCounter(internaldefs.LatencyName+"_bucket",
		metric.WithDescription(internaldefs.LatencyHelp)); err != nil {
		return nil, fmt.Errorf("otel exporter: latency buckets: %w", err)
	}
	if e.latencySum, err = meter.Float64ObservableCounter(internaldefs.LatencyName+"_sum",
		metric.WithDescription(internaldefs.LatencyHelp), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("otel exporter: latency sum: %w", err)
	}
	if e.latencyCount, err = meter.Int64ObservableCounter(internaldefs.LatencyName+"_count",
		metric.WithDescription(internaldefs.LatencyHelp)); err != nil {
		return nil, fmt.Errorf("otel exporter: latency count: %w", err)
	}
	if e.dropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp)); err != nil {
		return nil, fmt.Errorf("otel exporter: audit dropped: %w", err)
	}
	observables = append(observables, e.latencyBkt, e.latencySum, e.latencyCount, e.dropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel exporter: register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	if len(snap.Counters) > 0 {
		for _, f := range e.families {
			for i, s := range f.def.Series {
				var opts []metric.ObserveOption
				if f.attrs[i] != nil {
					opts = append(opts, f.attrs[i])
				}
				o.ObserveInt64(f.instrument, int64(snap.Counters[s.ID]), opts...)
			}
		}
	}

	if counts, ok := snap.Histograms[goSessionAuth.MetricAuthenticateLatency]; ok {
		buckets := internaldefs.LatencyBuckets(counts)
		for _, b := range buckets {
			o.ObserveInt64(e.latencyBkt, int64(b.Count), metric.WithAttributes(attribute.String("le", b.Le)))
		}
		o.ObserveInt64(e.latencyCount, int64(buckets[len(buckets)-1].Count))
		o.ObserveFloat64(e.latencySum, snap.HistogramSums[goSessionAuth.MetricAuthenticateLatency].Seconds())
	}

	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay on the meter but
// report nothing afterwards.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
