package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/inmemoryresults"
	"github.com/vk/nodeweave/internal/resultstore"
)

// ErrNodeFailed wraps the error of every node whose Update hook failed.
var ErrNodeFailed = errors.New("node evaluation failed")

// Pass outcomes reported to Metrics.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// OutcomeOf classifies the error returned by Run.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// Metrics receives one observation per finished top-level pass.
type Metrics interface {
	ObservePass(tree, outcome string, duration time.Duration, evaluated int)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithWorkers sets the size of the worker pool. Values below 1 select
// runtime.NumCPU(). One worker evaluates sequentially in topological order.
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		e.workers = n
	}
}

// WithMetrics reports every pass to m.
func WithMetrics(m Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithStore replaces the per-pass result store factory.
func WithStore(newStore func() resultstore.Store) Option {
	return func(e *Evaluator) { e.newStore = newStore }
}

// Evaluator runs evaluation passes over one tree. Passes of the same
// Evaluator are serialised.
type Evaluator struct {
	tree     *graph.Tree
	workers  int
	metrics  Metrics
	newStore func() resultstore.Store

	mu sync.Mutex
}

// New creates an evaluator for tree.
func New(tree *graph.Tree, opts ...Option) *Evaluator {
	e := &Evaluator{
		tree:     tree,
		workers:  runtime.NumCPU(),
		newStore: inmemoryresults.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NodeFailure describes a node whose Update hook returned an error.
type NodeFailure struct {
	Node   string
	TypeID string
	Err    error
}

// Result summarises one pass.
type Result struct {
	Tree    string
	Version uint64
	// Evaluated counts nodes whose Update hook ran, successfully or not.
	Evaluated int
	// Cleaned counts nodes the commit moved to Clean.
	Cleaned  int
	Failures []NodeFailure
	// Skipped lists nodes not run because an upstream node failed.
	Skipped  []string
	Duration time.Duration
}

// Run evaluates every Dirty node of the tree and commits the results.
//
// Nodes that fail keep their previous derived state and stay Dirty; the
// returned error joins one ErrNodeFailed per failure. If ctx is cancelled
// the pass is aborted: nothing is committed and ctx's error is returned.
func (e *Evaluator) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	snap := e.tree.Snapshot()
	logger.Debug("Evaluation pass started.", "tree", snap.Name, "version", snap.Version, "workers", e.workers)

	p := e.newPass(ctx, snap, nil, false)
	p.run(ctx)

	res := &Result{Tree: snap.Name, Version: snap.Version, Evaluated: int(p.evaluated.Load())}
	if err := ctx.Err(); err != nil {
		e.tree.Abort(snap)
		res.Duration = time.Since(start)
		e.observe(res, OutcomeCancelled)
		logger.Warn("Evaluation pass cancelled.", "tree", snap.Name, "error", err)
		return res, fmt.Errorf("evaluation of %q cancelled: %w", snap.Name, err)
	}

	done, err := p.store.Completed(ctx)
	if err != nil {
		e.tree.Abort(snap)
		return res, fmt.Errorf("collecting results of %q: %w", snap.Name, err)
	}
	res.Cleaned, err = e.tree.Commit(snap, done)
	if err != nil {
		return res, err
	}
	res.Failures, res.Skipped = p.outcome(ctx)
	res.Duration = time.Since(start)

	if len(res.Failures) > 0 {
		e.observe(res, OutcomeFailed)
		errs := make([]error, 0, len(res.Failures))
		for _, f := range res.Failures {
			errs = append(errs, fmt.Errorf("%w: %s (%s): %w", ErrNodeFailed, f.Node, f.TypeID, f.Err))
		}
		logger.Error("Evaluation pass finished with failures.",
			"tree", snap.Name, "failed", len(res.Failures), "skipped", len(res.Skipped))
		return res, errors.Join(errs...)
	}

	e.observe(res, OutcomeOK)
	logger.Info("Evaluation pass finished.",
		"tree", snap.Name, "evaluated", res.Evaluated, "cleaned", res.Cleaned, "duration", res.Duration)
	return res, nil
}

func (e *Evaluator) observe(res *Result, outcome string) {
	if e.metrics != nil {
		e.metrics.ObservePass(res.Tree, outcome, res.Duration, res.Evaluated)
	}
}
