package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/resultstore"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

const (
	taskPending int32 = iota
	taskQueued
	taskSkipped
)

// task is one node a pass has to evaluate.
type task struct {
	node       *graph.SnapshotNode
	deps       atomic.Int32
	state      atomic.Int32
	dependents []*task
}

// pass evaluates one snapshot into its own result store.
type pass struct {
	e     *Evaluator
	snap  *graph.Snapshot
	store resultstore.Store
	// iface feeds the Group Input nodes of a nested pass.
	iface map[string]cty.Value

	tasks     []*task
	byHandle  map[graph.NodeHandle]*task
	ready     chan *task
	remaining atomic.Int64
	closeOnce sync.Once
	evaluated atomic.Int64
}

// newPass prepares a pass. Top-level passes evaluate the nodes captured
// Dirty and seed the store with the committed outputs of the rest; nested
// passes (all) evaluate every node.
func (e *Evaluator) newPass(ctx context.Context, snap *graph.Snapshot, iface map[string]cty.Value, all bool) *pass {
	p := &pass{
		e:        e,
		snap:     snap,
		store:    e.newStore(),
		iface:    iface,
		byHandle: make(map[graph.NodeHandle]*task),
	}
	for i := range snap.Nodes {
		sn := &snap.Nodes[i]
		if all || sn.Dirty {
			tk := &task{node: sn}
			p.tasks = append(p.tasks, tk)
			p.byHandle[sn.Handle] = tk
			continue
		}
		_ = p.store.SetOutput(ctx, sn.Handle, sn.Derived)
		_ = p.store.SetStatus(ctx, sn.Handle, resultstore.StatusCompleted)
	}
	for _, tk := range p.tasks {
		for _, up := range snap.Upstream(tk.node.Handle) {
			if ut, ok := p.byHandle[up]; ok {
				tk.deps.Add(1)
				ut.dependents = append(ut.dependents, tk)
			}
		}
	}
	return p
}

func (p *pass) run(ctx context.Context) {
	if len(p.tasks) == 0 {
		return
	}
	if p.e.workers <= 1 {
		p.runSequential(ctx)
		return
	}

	logger := ctxlog.FromContext(ctx)
	p.ready = make(chan *task, len(p.tasks))
	p.remaining.Store(int64(len(p.tasks)))
	roots := 0
	for _, tk := range p.tasks {
		if tk.deps.Load() == 0 && tk.state.CompareAndSwap(taskPending, taskQueued) {
			p.ready <- tk
			roots++
		}
	}
	logger.Debug("Found root nodes.", "tree", p.snap.Name, "count", roots)

	var g errgroup.Group
	for i := 0; i < p.e.workers; i++ {
		workerID := i
		g.Go(func() error {
			p.worker(ctx, workerID)
			return nil
		})
	}
	_ = g.Wait()
}

// worker is the processing loop of one pool goroutine.
func (p *pass) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx)
	for tk := range p.ready {
		if err := ctx.Err(); err != nil {
			p.fail(ctx, tk, err)
			continue
		}
		logger.Debug("Worker picked up node.", "tree", p.snap.Name, "node", tk.node.Name, "workerID", workerID)
		if err := p.evaluate(ctx, tk); err != nil {
			p.fail(ctx, tk, err)
			continue
		}
		for _, d := range tk.dependents {
			if d.deps.Add(-1) == 0 && d.state.CompareAndSwap(taskPending, taskQueued) {
				p.ready <- d
			}
		}
		p.finish()
	}
}

// runSequential evaluates the pass on the calling goroutine in
// TopologicalOrder.
func (p *pass) runSequential(ctx context.Context) {
	order, err := TopologicalOrder(p.snap)
	if err != nil {
		for _, tk := range p.tasks {
			_ = p.store.SetStatus(ctx, tk.node.Handle, resultstore.StatusFailed)
			_ = p.store.SetError(ctx, tk.node.Handle, err)
		}
		return
	}
	for _, h := range order {
		tk, ok := p.byHandle[h]
		if !ok || tk.state.Load() == taskSkipped {
			continue
		}
		if err := ctx.Err(); err != nil {
			p.fail(ctx, tk, err)
			continue
		}
		if err := p.evaluate(ctx, tk); err != nil {
			p.fail(ctx, tk, err)
		}
	}
}

// finish counts one task as settled and closes the queue after the last.
func (p *pass) finish() {
	if p.ready != nil && p.remaining.Add(-1) == 0 {
		p.closeOnce.Do(func() { close(p.ready) })
	}
}

func (p *pass) fail(ctx context.Context, tk *task, err error) {
	if ctx.Err() == nil {
		ctxlog.FromContext(ctx).Warn("Node evaluation failed.", "tree", p.snap.Name, "node", tk.node.Name, "error", err)
	}
	_ = p.store.SetStatus(ctx, tk.node.Handle, resultstore.StatusFailed)
	_ = p.store.SetError(ctx, tk.node.Handle, err)
	p.finish()
	p.skipDependents(ctx, tk)
}

// skipDependents marks everything downstream of a failed node as skipped.
func (p *pass) skipDependents(ctx context.Context, failed *task) {
	for _, d := range failed.dependents {
		if !d.state.CompareAndSwap(taskPending, taskSkipped) {
			continue
		}
		ctxlog.FromContext(ctx).Debug("Skipping node due to upstream failure.",
			"tree", p.snap.Name, "node", d.node.Name, "dependency", failed.node.Name)
		_ = p.store.SetStatus(ctx, d.node.Handle, resultstore.StatusSkipped)
		_ = p.store.SetError(ctx, d.node.Handle, fmt.Errorf("skipped due to upstream failure of %q", failed.node.Name))
		p.finish()
		p.skipDependents(ctx, d)
	}
}

// evaluate runs one node and records its outputs.
func (p *pass) evaluate(ctx context.Context, tk *task) error {
	sn := tk.node
	_ = p.store.SetStatus(ctx, sn.Handle, resultstore.StatusRunning)
	p.evaluated.Add(1)

	in, err := p.updateInput(ctx, sn)
	if err != nil {
		return err
	}
	update := sn.Update
	if update == nil {
		update = registry.DefaultUpdate
	}
	out, err := callUpdate(ctx, update, in)
	if err != nil {
		return err
	}
	if out == nil {
		out = registry.Derived{}
	}
	if err := p.store.SetOutput(ctx, sn.Handle, out); err != nil {
		return err
	}
	return p.store.SetStatus(ctx, sn.Handle, resultstore.StatusCompleted)
}

// callUpdate runs the hook, reporting a panic as an error.
func callUpdate(ctx context.Context, update registry.UpdateFunc, in *registry.UpdateInput) (out registry.Derived, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update hook panicked: %v", r)
		}
	}()
	return update(ctx, in)
}

// outcome lists the failed and skipped nodes in snapshot order.
func (p *pass) outcome(ctx context.Context) ([]NodeFailure, []string) {
	var failures []NodeFailure
	var skipped []string
	for _, tk := range p.tasks {
		status, _ := p.store.GetStatus(ctx, tk.node.Handle)
		switch status {
		case resultstore.StatusFailed:
			err, _ := p.store.GetError(ctx, tk.node.Handle)
			failures = append(failures, NodeFailure{Node: tk.node.Name, TypeID: tk.node.TypeID, Err: err})
		case resultstore.StatusSkipped:
			skipped = append(skipped, tk.node.Name)
		}
	}
	return failures, skipped
}
