package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGraphMetrics() {
	r.EditsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweave_graph_edits_total",
			Help: "Total number of graph edits by operation",
		},
		[]string{"tree", "op"},
	)

	r.LinksRejectedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweave_links_rejected_total",
			Help: "Total number of rejected link requests by reason",
		},
		[]string{"tree", "reason"},
	)

	r.CommittedNodes = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweave_committed_nodes_total",
			Help: "Total number of nodes moved to Clean by commits",
		},
		[]string{"tree"},
	)
}
