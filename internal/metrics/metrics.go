// Package metrics registers the prometheus collectors for run and
// workflow instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RunsStarted   *prometheus.CounterVec
	RunsFinished  *prometheus.CounterVec
	ApprovalsWait prometheus.Counter
	Decisions     *prometheus.CounterVec
	NodeDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_runs_started_total",
			Help: "Workflow runs started, by kind.",
		}, []string{"kind"}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_runs_finished_total",
			Help: "Workflow runs reaching a terminal status, by kind and status.",
		}, []string{"kind", "status"}),
		ApprovalsWait: factory.NewCounter(prometheus.CounterOpts{
			Name: "opsdesk_runs_suspended_total",
			Help: "Runs parked waiting for an approval decision.",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_approval_decisions_total",
			Help: "Approval decisions applied, by decision.",
		}, []string{"decision"}),
		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdesk_workflow_node_duration_seconds",
			Help:    "Wall time spent executing one workflow node.",
			Buckets: prometheus.DefBuckets,
		}, []string{"graph", "node"}),
	}
}

// ObserveNode adapts NodeDuration to the engine's observer hook.
func (m *Metrics) ObserveNode(graph string) func(node string, elapsed time.Duration) {
	return func(node string, elapsed time.Duration) {
		m.NodeDuration.WithLabelValues(graph, node).Observe(elapsed.Seconds())
	}
}
