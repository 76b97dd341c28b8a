package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/editorlink"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/nodeid"
	"github.com/vk/nodeweave/internal/scheduler"
)

// Evaluate runs one pass over each named tree, or every tree, that has
// dirty nodes. Trees wrapped by group nodes are evaluated before their
// users. Node failures are joined into the returned error and do not stop
// the remaining trees; cancellation does.
func (a *App) Evaluate(ctx context.Context, names ...string) ([]*scheduler.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	trees, err := a.library.Closure(names...)
	if err != nil {
		return nil, err
	}

	var results []*scheduler.Result
	var errs []error
	for _, tr := range trees {
		if len(tr.DirtyNodes()) == 0 {
			a.logger.Debug("Tree is up to date, skipping.", "tree", tr.Name())
			continue
		}
		res, err := a.evaluator(tr).Run(ctx)
		if link := a.editorLink(); link != nil {
			link.PublishPass(res, err)
		}
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			if scheduler.OutcomeOf(err) == scheduler.OutcomeCancelled {
				return results, err
			}
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// EvaluateTagged evaluates the trees tagged since the last call.
func (a *App) EvaluateTagged(ctx context.Context) ([]*scheduler.Result, error) {
	tagged := a.library.Tagged()
	a.library.ClearTags()
	if len(tagged) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(tagged))
	for _, e := range tagged {
		names = append(names, e.Tree.Name())
	}
	return a.Evaluate(ctx, names...)
}

func (a *App) editorLink() *editorlink.Link {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.editor
}

func (a *App) evaluator(tr *graph.Tree) *scheduler.Evaluator {
	a.mu.Lock()
	defer a.mu.Unlock()
	ev, ok := a.evaluators[tr.ID()]
	if !ok {
		ev = scheduler.New(tr, scheduler.WithWorkers(a.config.WorkerCount), scheduler.WithMetrics(a.metrics))
		a.evaluators[tr.ID()] = ev
	}
	return ev
}

// Output returns the derived values an address points at, by socket
// identifier.
func (a *App) Output(addr *nodeid.Address) (map[string]string, error) {
	outputs, err := a.Outputs(addr.Tree)
	if err != nil {
		return nil, err
	}
	e, _ := a.library.Get(addr.Tree)
	if _, ok := e.Tree.NodeByName(addr.Node); !ok {
		return nil, fmt.Errorf("%s: node %q not found", addr, addr.Node)
	}
	values, ok := outputs[addr.Node]
	if !ok {
		return nil, fmt.Errorf("%s: node has not been evaluated", addr)
	}
	if addr.Socket == "" {
		return values, nil
	}
	v, ok := values[addr.Socket]
	if !ok {
		return nil, fmt.Errorf("%s: no output %q", addr, addr.Socket)
	}
	return map[string]string{addr.Socket: v}, nil
}

// Outputs returns the derived outputs of every node of a tree, by node name.
// Nodes that were never evaluated are left out.
func (a *App) Outputs(name string) (map[string]map[string]string, error) {
	e, ok := a.library.Get(name)
	if !ok {
		return nil, fmt.Errorf("tree %q not found", name)
	}
	tr := e.Tree
	out := map[string]map[string]string{}
	for _, h := range tr.Nodes() {
		info, ok := tr.Node(h)
		if !ok {
			continue
		}
		derived, ok := tr.Derived(h)
		if !ok {
			continue
		}
		values := make(map[string]string, len(derived))
		for id, v := range derived {
			values[id] = formatValue(v)
		}
		out[info.Name] = values
	}
	return out, nil
}
