// Package metrics exposes the engine's Prometheus counters: identity
// cascade outcomes, broker bridge restarts, and pipeline run results
// (spec.md §4.11 "Observability"). The dev-only HTTP transport serves
// these at /metrics; the stdio transport never touches them on the wire.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Collector owns a private registry so repeated NewCollector calls in tests
// never collide with prometheus.DefaultRegisterer.
type Collector struct {
	registry       *prometheus.Registry
	cascadeHits    *prometheus.CounterVec
	bridgeRestarts prometheus.Counter
	pipelineRuns   *prometheus.CounterVec
}

// NewCollector builds a Collector with all series registered and zeroed.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		cascadeHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_hits_total",
			Help: "Identity resolution cascade outcomes by source step.",
		}, []string{"source"}),
		bridgeRestarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_restarts_total",
			Help: "Number of times the broker bridge child process was forcibly restarted.",
		}),
		pipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Look-through pipeline runs by terminal status.",
		}, []string{"status"}),
	}
}

// RecordCascadeHit implements identity.HitRecorder.
func (c *Collector) RecordCascadeHit(source string) {
	c.cascadeHits.WithLabelValues(source).Inc()
}

// IncBridgeRestart implements the broker registry's restart hook signature.
func (c *Collector) IncBridgeRestart() {
	c.bridgeRestarts.Inc()
}

// RecordPipelineRun tallies one terminal pipeline run outcome ("success" or
// "failure").
func (c *Collector) RecordPipelineRun(status string) {
	c.pipelineRuns.WithLabelValues(status).Inc()
}

// Handler serves the collector's registry in the Prometheus text exposition
// format, for mounting at /metrics on the dev HTTP transport.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Snapshot flattens every counter into a label-qualified map, for the
// shutdown summary line logged by cmd/engine.
func (c *Collector) Snapshot() map[string]float64 {
	families, err := c.registry.Gather()
	if err != nil {
		return nil
	}
	out := make(map[string]float64)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			out[metricKey(fam.GetName(), m)] = metricValue(m)
		}
	}
	return out
}

func metricKey(name string, m *dto.Metric) string {
	key := name
	for _, lp := range m.GetLabel() {
		key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
	}
	return key
}

func metricValue(m *dto.Metric) float64 {
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	if g := m.GetGauge(); g != nil {
		return g.GetValue()
	}
	return 0
}
