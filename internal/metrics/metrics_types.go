// Package metrics exposes evaluation and editing activity as Prometheus
// metrics on a private registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application.
type Registry struct {
	// Evaluation metrics
	PassesTotal    *prometheus.CounterVec
	PassDuration   *prometheus.HistogramVec
	NodesEvaluated *prometheus.CounterVec

	// Graph metrics
	EditsTotal         *prometheus.CounterVec
	LinksRejectedTotal *prometheus.CounterVec
	CommittedNodes     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initEvaluationMetrics()
	r.initGraphMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
