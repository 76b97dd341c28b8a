package metrics

import (
	"strconv"
	"time"

	"github.com/vk/nodeweave/internal/graph"
)

// ObservePass records one finished evaluation pass.
func (r *Registry) ObservePass(tree, outcome string, duration time.Duration, evaluated int) {
	r.PassesTotal.WithLabelValues(tree, outcome).Inc()
	r.PassDuration.WithLabelValues(tree).Observe(duration.Seconds())
	r.NodesEvaluated.WithLabelValues(tree).Add(float64(evaluated))
}

// Observe records a tree event.
func (r *Registry) Observe(e graph.Event) {
	switch e.Kind {
	case graph.EventLinkRejected:
		r.LinksRejectedTotal.WithLabelValues(e.Tree, e.Detail).Inc()
	case graph.EventCommitted:
		if n, err := strconv.Atoi(e.Detail); err == nil {
			r.CommittedNodes.WithLabelValues(e.Tree).Add(float64(n))
		}
	default:
		r.EditsTotal.WithLabelValues(e.Tree, string(e.Kind)).Inc()
	}
}

// Watch subscribes the registry to a tree's events.
func (r *Registry) Watch(t *graph.Tree) (cancel func()) {
	return t.Subscribe(r)
}
