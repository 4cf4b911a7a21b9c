package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/merbs-org/clientauth"
	"github.com/merbs-org/clientauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() clientauth.MetricsSnapshot
	DroppedEvents() uint64
}

// latencyInstruments carries one engine histogram. Buckets share a single
// gauge distinguished by the "le" attribute.
type latencyInstruments struct {
	id      clientauth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableCounter
}

// Exporter mirrors engine metrics into an OpenTelemetry meter. Collection is
// pull based: one callback reads a single snapshot per cycle, so every value
// in a cycle comes from the same instant.
type Exporter struct {
	source   metricsSource
	reg      metric.Registration
	counters map[clientauth.MetricID]metric.Int64ObservableCounter
	latency  []latencyInstruments
	dropped  metric.Int64ObservableCounter
}

var bucketOptions = func() []metric.ObserveOption {
	opts := make([]metric.ObserveOption, len(internaldefs.BucketLabels))
	for i, le := range internaldefs.BucketLabels {
		opts[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}
	return opts
}()

// NewExporter registers instruments on meter for engine.
func NewExporter(meter metric.Meter, engine *clientauth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[clientauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."),
			metric.WithUnit("{observation}"),
		)
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableCounter(def.Name+"_count",
			metric.WithDescription(def.Help+" Observation count."),
		)
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		e.latency = append(e.latency, latencyInstruments{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.DroppedEventsName,
		metric.WithDescription(internaldefs.DroppedEventsHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.DroppedEventsName, err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.reg = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, l := range e.latency {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[l.id]))
		for i, v := range cum {
			o.ObserveInt64(l.buckets, int64(v), bucketOptions[i])
		}
		o.ObserveInt64(l.count, int64(cum[len(cum)-1]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.DroppedEvents()))
	return nil
}

// Close unregisters the callback. Instruments stay on the meter but report
// nothing afterwards.
func (e *Exporter) Close() error {
	if e == nil || e.reg == nil {
		return nil
	}
	return e.reg.Unregister()
}
