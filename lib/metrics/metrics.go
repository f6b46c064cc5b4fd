// Package metrics exposes harvest counters through Prometheus. Every metric is
// a no-op until Initialize is called, so components can record unconditionally.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tablestream"

type Counter interface {
	Inc()
	Add(float64)
}

type Gauge interface {
	Set(float64)
}

type Histogram interface {
	Observe(float64)
}

type CounterVec interface {
	With(labels ...string) Counter
}

type GaugeVec interface {
	With(labels ...string) Gauge
}

type HistogramVec interface {
	With(labels ...string) Histogram
}

type NoopStat struct{}

func (NoopStat) Inc()            {}
func (NoopStat) Add(float64)     {}
func (NoopStat) Set(float64)     {}
func (NoopStat) Observe(float64) {}

type noopCounterVec struct{}
type noopGaugeVec struct{}
type noopHistogramVec struct{}

func (noopCounterVec) With(...string) Counter     { return NoopStat{} }
func (noopGaugeVec) With(...string) Gauge         { return NoopStat{} }
func (noopHistogramVec) With(...string) Histogram { return NoopStat{} }

type prometheusCounterVec struct{ vec *prometheus.CounterVec }
type prometheusGaugeVec struct{ vec *prometheus.GaugeVec }
type prometheusHistogramVec struct{ vec *prometheus.HistogramVec }

func (p *prometheusCounterVec) With(labels ...string) Counter {
	return p.vec.WithLabelValues(labels...)
}

func (p *prometheusGaugeVec) With(labels ...string) Gauge {
	return p.vec.WithLabelValues(labels...)
}

func (p *prometheusHistogramVec) With(labels ...string) Histogram {
	return p.vec.WithLabelValues(labels...)
}

var (
	//RowsTotal counts rows delivered by table
	RowsTotal CounterVec = noopCounterVec{}

	//PagesTotal counts pages fetched by table
	PagesTotal CounterVec = noopCounterVec{}

	//CyclesTotal counts poll cycles by table and outcome (rows, empty, inverted, failed)
	CyclesTotal CounterVec = noopCounterVec{}

	//CycleDurationSeconds measures the scan part of a poll cycle
	CycleDurationSeconds HistogramVec = noopHistogramVec{}

	//LastCommitSeconds is the unix time the watermark last advanced
	LastCommitSeconds GaugeVec = noopGaugeVec{}

	//EmittedTotal counts events handed to a downstream operator or sink by its name
	EmittedTotal CounterVec = noopCounterVec{}
)

var (
	once     sync.Once
	registry *prometheus.Registry
)

//Initialize switch every metric to a Prometheus collector, safe to call more than once.
func Initialize() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registry.MustRegister(collectors.NewGoCollector())

		RowsTotal = newCounterVec("rows_total", "rows delivered by the harvester", "table")
		PagesTotal = newCounterVec("pages_total", "pages fetched from the table store", "table")
		CyclesTotal = newCounterVec("cycles_total", "poll cycles by outcome", "table", "result")
		CycleDurationSeconds = newHistogramVec("cycle_duration_seconds", "scan duration of a poll cycle",
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}, "table")
		LastCommitSeconds = newGaugeVec("last_commit_seconds", "unix time of the last watermark advance", "table")
		EmittedTotal = newCounterVec("emitted_total", "events handed to a downstream component", "component")
	})
}

func newCounterVec(name, help string, labels ...string) CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	registry.MustRegister(vec)
	return &prometheusCounterVec{vec: vec}
}

func newGaugeVec(name, help string, labels ...string) GaugeVec {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	registry.MustRegister(vec)
	return &prometheusGaugeVec{vec: vec}
}

func newHistogramVec(name, help string, buckets []float64, labels ...string) HistogramVec {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
	registry.MustRegister(vec)
	return &prometheusHistogramVec{vec: vec}
}

//Handler serve the registry, nil until Initialize.
func Handler() http.Handler {
	if registry == nil {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
