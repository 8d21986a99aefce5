// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// Registry holds all collectors for one process.
type Registry struct {
	reg *prometheus.Registry

	StreamLatency     prometheus.Histogram
	ProcessingLatency prometheus.Histogram
	Messages          *prometheus.CounterVec
	HistoryDepth      prometheus.Gauge
	StreamState       prometheus.Gauge
	Sessions          *prometheus.CounterVec
	NetCost           prometheus.Gauge
}

// NewRegistry builds and registers the collectors. withRuntime adds the Go
// and process collectors.
func NewRegistry(withRuntime bool) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecost_stream_latency_ms",
			Help:    "Gap between consecutive feed messages in milliseconds, any outcome",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),

		ProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecost_processing_latency_ms",
			Help:    "Time from decode start to estimate ready in milliseconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),

		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecost_messages_total",
			Help: "Feed messages processed by outcome",
		}, []string{"outcome"}),

		HistoryDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradecost_history_depth",
			Help: "Mid prices currently held in the rolling history",
		}),

		StreamState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradecost_stream_state",
			Help: "Ingestor state (0 idle, 1 connecting, 2 streaming, 3 stopped, 4 failed)",
		}),

		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecost_sessions_ended_total",
			Help: "Stream sessions ended by terminal state",
		}, []string{"state"}),

		NetCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradecost_net_cost",
			Help: "Net cost of the most recent estimate",
		}),
	}

	r.reg.MustRegister(
		r.StreamLatency,
		r.ProcessingLatency,
		r.Messages,
		r.HistoryDepth,
		r.StreamState,
		r.Sessions,
		r.NetCost,
	)
	if withRuntime {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// ObserveMessage counts one message outcome.
func (r *Registry) ObserveMessage(outcome string) {
	r.Messages.WithLabelValues(outcome).Inc()
}

// ObserveState records the ingestor state.
func (r *Registry) ObserveState(state domain.StreamState) {
	r.StreamState.Set(float64(state))
}

// ObserveHistory records the rolling history depth.
func (r *Registry) ObserveHistory(depth int) {
	r.HistoryDepth.Set(float64(depth))
}

// ObserveStreamLatency records the gap before a received frame.
func (r *Registry) ObserveStreamLatency(ms float64) {
	r.StreamLatency.Observe(ms)
}

// ObserveEstimate records the processing latency and net cost of an estimate.
func (r *Registry) ObserveEstimate(est domain.CostEstimate) {
	r.ProcessingLatency.Observe(est.ProcessingLatencyMs)
	r.NetCost.Set(est.NetCost)
}

// ObserveStreamEnd counts a finished session.
func (r *Registry) ObserveStreamEnd(end domain.StreamEnd) {
	r.Sessions.WithLabelValues(end.State.String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
