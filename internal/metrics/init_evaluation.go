package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEvaluationMetrics() {
	r.PassesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweave_evaluation_passes_total",
			Help: "Total number of evaluation passes by outcome",
		},
		[]string{"tree", "outcome"},
	)

	r.PassDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nodeweave_evaluation_pass_duration_seconds",
			Help:    "Evaluation pass duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"tree"},
	)

	r.NodesEvaluated = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweave_nodes_evaluated_total",
			Help: "Total number of node Update hooks run",
		},
		[]string{"tree"},
	)
}
