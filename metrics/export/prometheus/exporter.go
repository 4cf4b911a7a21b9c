package prometheus

import (
	"net/http"

	"github.com/merbs-org/clientauth"
	"github.com/merbs-org/clientauth/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() clientauth.MetricsSnapshot
	DroppedEvents() uint64
}

// Exporter is a [prometheus.Collector] over engine metrics. Every scrape reads
// one snapshot.
type Exporter struct {
	source     metricsSource
	counters   []*prometheus.Desc
	histograms []*prometheus.Desc
	dropped    *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter creates an exporter reading from engine.
func NewExporter(engine *clientauth.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource creates an exporter from any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:     source,
		counters:   make([]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histograms: make([]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		dropped:    prometheus.NewDesc(internaldefs.DroppedEventsName, internaldefs.DroppedEventsHelp, nil, nil),
	}
	for i, def := range internaldefs.CounterDefs {
		e.counters[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for i, def := range internaldefs.HistogramDefs {
		e.histograms[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.counters {
		ch <- d
	}
	for _, d := range e.histograms {
		ch <- d
	}
	ch <- e.dropped
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(e.counters[i], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	for i, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for j, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[j]
		}
		// Sums are not tracked by the engine.
		ch <- prometheus.MustNewConstHistogram(e.histograms[i], cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.dropped, prometheus.CounterValue, float64(e.source.DroppedEvents()))
}

// Handler serves the exporter from a private registry, so nothing is added to
// the global default registry.
func (e *Exporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
