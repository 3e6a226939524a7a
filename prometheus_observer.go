package memsim

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rcolburn/memsim/internal/interfaces"
)

// PrometheusObserver is an interfaces.Observer backed by a Prometheus
// registry, for cmd/memsim's --http flag: it exposes the same completion,
// CiM, queue-depth, and age events Metrics aggregates in-process, but as
// scrapeable counters/histograms/gauges instead of a one-shot JSON
// snapshot.
type PrometheusObserver struct {
	readCompletions  prometheus.Counter
	writeCompletions prometheus.Counter
	latency          prometheus.Histogram
	cimCompletions   *prometheus.CounterVec
	cimLatency       *prometheus.HistogramVec
	queueDepth       *prometheus.GaugeVec
	age              *prometheus.GaugeVec
}

// NewPrometheusObserver registers a fresh set of collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	buckets := make([]float64, len(LatencyBuckets))
	for i, b := range LatencyBuckets {
		buckets[i] = float64(b)
	}

	o := &PrometheusObserver{
		readCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memsim_read_completions_total",
			Help: "Total plain read completions observed.",
		}),
		writeCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memsim_write_completions_total",
			Help: "Total plain write completions observed.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memsim_completion_latency_cycles",
			Help:    "Completion latency in cycles, for reads and writes.",
			Buckets: buckets,
		}),
		cimCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memsim_cim_completions_total",
			Help: "Total CiM op completions observed, by op name.",
		}, []string{"op"}),
		cimLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memsim_cim_completion_latency_cycles",
			Help:    "CiM op completion latency in cycles, by op name.",
			Buckets: buckets,
		}, []string{"op"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memsim_crossbar_queue_depth",
			Help: "Last observed crossbar queue depth, by stage.",
		}, []string{"stage"}),
		age: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memsim_crossbar_arbitration_age",
			Help: "Last observed crossbar arbitration age, by stage.",
		}, []string{"stage"}),
	}

	reg.MustRegister(o.readCompletions, o.writeCompletions, o.latency, o.cimCompletions, o.cimLatency, o.queueDepth, o.age)
	return o
}

// ObserveCompletion implements interfaces.Observer.
func (o *PrometheusObserver) ObserveCompletion(kind interfaces.CompletionKind, latencyCycles uint64) {
	switch kind {
	case interfaces.CompletionRead:
		o.readCompletions.Inc()
	case interfaces.CompletionWrite:
		o.writeCompletions.Inc()
	}
	o.latency.Observe(float64(latencyCycles))
}

// ObserveCiMComplete implements interfaces.Observer.
func (o *PrometheusObserver) ObserveCiMComplete(op string, latencyCycles uint64) {
	o.cimCompletions.WithLabelValues(op).Inc()
	o.cimLatency.WithLabelValues(op).Observe(float64(latencyCycles))
}

// ObserveQueueDepth implements interfaces.Observer.
func (o *PrometheusObserver) ObserveQueueDepth(stage string, depth int) {
	o.queueDepth.WithLabelValues(stage).Set(float64(depth))
}

// ObserveAge implements interfaces.Observer.
func (o *PrometheusObserver) ObserveAge(stage string, age int) {
	o.age.WithLabelValues(stage).Set(float64(age))
}

var _ interfaces.Observer = (*PrometheusObserver)(nil)
