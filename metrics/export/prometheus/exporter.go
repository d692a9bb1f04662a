// Package prometheus exposes engine metrics as a prometheus.Collector.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcore "github.com/calyptra/authcore"
	"github.com/calyptra/authcore/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter reads engine snapshots on every scrape. It holds no state of its
// own, so one engine can back any number of registries.
type Exporter struct {
	source       metricsSource
	counterDescs map[authcore.MetricID]*prometheus.Desc
	histoDescs   map[authcore.MetricID]*prometheus.Desc
	droppedDesc  *prometheus.Desc
}

// NewExporter creates a collector reading from the engine.
func NewExporter(engine *authcore.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource creates a collector from any snapshot source, which
// tests use to feed synthetic snapshots.
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:       source,
		counterDescs: make(map[authcore.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histoDescs:   make(map[authcore.MetricID]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		droppedDesc: prometheus.NewDesc("authcore_audit_dropped_total",
			"Audit events dropped to dispatcher backpressure.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counterDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histoDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return e
}

// Handler returns an http.Handler serving this exporter from a private
// registry, for hosts that do not run their own.
func (e *Exporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range e.counterDescs {
		ch <- desc
	}
	for _, desc := range e.histoDescs {
		ch <- desc
	}
	ch <- e.droppedDesc
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(e.counterDescs[def.ID],
			prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	for _, def := range internaldefs.HistogramDefs {
		perBucket := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(perBucket)

		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, bound := range internaldefs.HistogramBounds {
			buckets[bound] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]

		// The engine tracks bucket counts, not a running sum. Reconstruct
		// an upper-bound estimate so _sum stays monotonic; overflow samples
		// are priced at the last finite bound.
		var sum float64
		for i, bound := range internaldefs.HistogramBounds {
			sum += float64(perBucket[i]) * bound
		}
		sum += float64(perBucket[len(perBucket)-1]) *
			internaldefs.HistogramBounds[len(internaldefs.HistogramBounds)-1]

		ch <- prometheus.MustNewConstHistogram(e.histoDescs[def.ID], count, sum, buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.droppedDesc,
		prometheus.CounterValue, float64(e.source.AuditDropped()))
}
