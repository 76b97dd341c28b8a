package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/vk/nodeweave/modules/core"
	"github.com/vk/nodeweave/modules/shader"
	"github.com/zclconf/go-cty/cty"
)

// blocker lets a test hold a node's Update until it is released.
type blocker struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlocker() *blocker {
	return &blocker{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blocker) update(ctx context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return registry.Derived{"Value": in.Input("Value")}, nil
}

func newTestRegistry(t *testing.T, b *blocker) *registry.Registry {
	t.Helper()
	r := registry.New(sockettype.NewDefault())
	r.RegisterModules(context.Background(), &core.Module{}, &shader.Module{})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:      "Fail",
		Outputs: []registry.SocketTemplate{{Identifier: "Value", Type: "float"}},
		Hooks: registry.Hooks{Update: func(context.Context, *registry.UpdateInput) (registry.Derived, error) {
			return nil, errors.New("boom")
		}},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:      "Panic",
		Outputs: []registry.SocketTemplate{{Identifier: "Value", Type: "float"}},
		Hooks: registry.Hooks{Update: func(context.Context, *registry.UpdateInput) (registry.Derived, error) {
			panic("broken node")
		}},
	})
	if b != nil {
		r.MustRegisterNodeType(&registry.NodeType{
			ID:      "Block",
			Inputs:  []registry.SocketTemplate{{Identifier: "Value", Type: "float"}},
			Outputs: []registry.SocketTemplate{{Identifier: "Value", Type: "float"}},
			Hooks:   registry.Hooks{Update: b.update},
		})
	}
	r.Seal()
	return r
}

func newTree(t *testing.T, reg *registry.Registry, name string) *graph.Tree {
	t.Helper()
	return graph.NewTree(context.Background(), reg, name, shader.TreeKind)
}

func add(t *testing.T, tr *graph.Tree, typeID string) graph.NodeHandle {
	t.Helper()
	h, err := tr.AddNode(typeID)
	require.NoError(t, err)
	return h
}

func link(t *testing.T, tr *graph.Tree, from graph.NodeHandle, fromID string, to graph.NodeHandle, toID string) {
	t.Helper()
	fs, ok := tr.SocketByIdentifier(from, graph.Output, fromID)
	require.True(t, ok, "output %s", fromID)
	ts, ok := tr.SocketByIdentifier(to, graph.Input, toID)
	require.True(t, ok, "input %s", toID)
	_, err := tr.AddLink(fs, ts)
	require.NoError(t, err)
}

func value(t *testing.T, tr *graph.Tree, v float64) graph.NodeHandle {
	t.Helper()
	h := add(t, tr, "ShaderNodeValue")
	require.NoError(t, tr.SetParam(h, "value", sockettype.Float(v)))
	return h
}

func mathNode(t *testing.T, tr *graph.Tree, op string) graph.NodeHandle {
	t.Helper()
	h := add(t, tr, "ShaderNodeMath")
	require.NoError(t, tr.SetParam(h, "operation", cty.StringVal(op)))
	return h
}

func derivedFloat(t *testing.T, tr *graph.Tree, h graph.NodeHandle, id string) float64 {
	t.Helper()
	d, ok := tr.Derived(h)
	require.True(t, ok, "node has no derived state")
	return sockettype.AsFloat(d[id])
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) ObservePass(_, outcome string, _ time.Duration, _ int) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcome)
	m.mu.Unlock()
}

func TestTopologicalOrder(t *testing.T) {
	tr := newTree(t, newTestRegistry(t, nil), "T")
	m1 := mathNode(t, tr, "ADD")
	v := value(t, tr, 1)
	m2 := mathNode(t, tr, "ADD")
	x := value(t, tr, 2)
	link(t, tr, v, "Value", m1, "Value")
	link(t, tr, m1, "Value", m2, "Value")

	order, err := TopologicalOrder(tr.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeHandle{v, m1, m2, x}, order)
}

func TestRun(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("workers", func(t *testing.T) {
			tr := newTree(t, newTestRegistry(t, nil), "T")
			a := value(t, tr, 2)
			b := value(t, tr, 3)
			m := mathNode(t, tr, "MULTIPLY")
			link(t, tr, a, "Value", m, "Value")
			link(t, tr, b, "Value", m, "Value_001")

			metrics := &recordingMetrics{}
			ev := New(tr, WithWorkers(workers), WithMetrics(metrics))

			res, err := ev.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3, res.Evaluated)
			assert.Equal(t, 3, res.Cleaned)
			assert.Equal(t, 6.0, derivedFloat(t, tr, m, "Value"))
			assert.Empty(t, tr.DirtyNodes())

			t.Run("clean trees evaluate nothing", func(t *testing.T) {
				res, err := ev.Run(context.Background())
				require.NoError(t, err)
				assert.Equal(t, 0, res.Evaluated)
			})

			t.Run("only dirty nodes are recomputed", func(t *testing.T) {
				require.NoError(t, tr.SetParam(b, "value", sockettype.Float(4)))
				res, err := ev.Run(context.Background())
				require.NoError(t, err)
				assert.Equal(t, 2, res.Evaluated)
				assert.Equal(t, 8.0, derivedFloat(t, tr, m, "Value"))
			})

			assert.Equal(t, []string{OutcomeOK, OutcomeOK, OutcomeOK}, metrics.outcomes)
		})
	}
}

func TestRun_InputResolution(t *testing.T) {
	tr := newTree(t, newTestRegistry(t, nil), "T")
	xyz := add(t, tr, "ShaderNodeCombineXYZ")
	for id, v := range map[string]float64{"X": 1, "Y": 2, "Z": 6} {
		s, ok := tr.SocketByIdentifier(xyz, graph.Input, id)
		require.True(t, ok)
		require.NoError(t, tr.SetSocketDefault(s, sockettype.Float(v)))
	}
	m := mathNode(t, tr, "ADD")
	link(t, tr, xyz, "Vector", m, "Value")

	_, err := New(tr, WithWorkers(2)).Run(context.Background())
	require.NoError(t, err)
	// The vector is averaged into the float input; the second input keeps its default.
	assert.Equal(t, 3.5, derivedFloat(t, tr, m, "Value"))

	t.Run("disabled inputs read their default", func(t *testing.T) {
		s, _ := tr.SocketByIdentifier(m, graph.Input, "Value")
		require.NoError(t, tr.SetSocketEnabled(s, false))
		require.NoError(t, tr.SetSocketDefault(s, sockettype.Float(10)))
		_, err := New(tr).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 10.5, derivedFloat(t, tr, m, "Value"))
	})
}

func TestRun_FailureSkipsDependents(t *testing.T) {
	tr := newTree(t, newTestRegistry(t, nil), "T")
	f := add(t, tr, "Fail")
	m1 := mathNode(t, tr, "ADD")
	m2 := mathNode(t, tr, "ADD")
	v := value(t, tr, 1)
	link(t, tr, f, "Value", m1, "Value")
	link(t, tr, m1, "Value", m2, "Value")

	metrics := &recordingMetrics{}
	res, err := New(tr, WithWorkers(3), WithMetrics(metrics)).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeFailed)
	assert.Contains(t, err.Error(), "boom")

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Fail", res.Failures[0].Node)
	assert.ElementsMatch(t, []string{"Math", "Math.001"}, res.Skipped)
	assert.Equal(t, 1, res.Cleaned)
	assert.Equal(t, []graph.NodeHandle{f, m1, m2}, tr.DirtyNodes())
	assert.Equal(t, 1.0, derivedFloat(t, tr, v, "Value"))
	assert.Equal(t, []string{OutcomeFailed}, metrics.outcomes)
	assert.Equal(t, OutcomeFailed, OutcomeOf(err))
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	tr := newTree(t, newTestRegistry(t, nil), "T")
	add(t, tr, "Panic")

	res, err := New(tr, WithWorkers(1)).Run(context.Background())
	require.ErrorIs(t, err, ErrNodeFailed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Err.Error(), "broken node")
}

func TestRun_Cancelled(t *testing.T) {
	tr := newTree(t, newTestRegistry(t, nil), "T")
	a := value(t, tr, 1)
	m := mathNode(t, tr, "ADD")
	link(t, tr, a, "Value", m, "Value")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	metrics := &recordingMetrics{}
	_, runErr := New(tr, WithWorkers(2), WithMetrics(metrics)).Run(ctx)
	require.ErrorIs(t, runErr, context.Canceled)

	assert.Equal(t, []graph.NodeHandle{a, m}, tr.DirtyNodes())
	st, err := tr.State(a)
	require.NoError(t, err)
	assert.Equal(t, graph.StateDirty, st)
	_, ok := tr.Derived(m)
	assert.False(t, ok)
	assert.Equal(t, []string{OutcomeCancelled}, metrics.outcomes)
	assert.Equal(t, OutcomeCancelled, OutcomeOf(runErr))
	assert.Equal(t, OutcomeOK, OutcomeOf(nil))
}

func TestRun_EditDuringPass(t *testing.T) {
	b := newBlocker()
	tr := newTree(t, newTestRegistry(t, b), "T")
	v := value(t, tr, 5)
	blk := add(t, tr, "Block")
	link(t, tr, v, "Value", blk, "Value")

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := New(tr, WithWorkers(2)).Run(context.Background())
		done <- outcome{res, err}
	}()

	<-b.started
	require.NoError(t, tr.SetParam(blk, "tag", cty.StringVal("edited")))
	close(b.release)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, 1, out.res.Cleaned)
	assert.Equal(t, []graph.NodeHandle{blk}, tr.DirtyNodes())

	res, err := New(tr).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Empty(t, tr.DirtyNodes())
	assert.Equal(t, 5.0, derivedFloat(t, tr, blk, "Value"))
}

func TestRun_Group(t *testing.T) {
	reg := newTestRegistry(t, nil)
	inner := newTree(t, reg, "Scale")
	_, err := inner.AddInterfaceSocket(graph.Input, "float", "In")
	require.NoError(t, err)
	_, err = inner.AddInterfaceSocket(graph.Output, "float", "Out")
	require.NoError(t, err)
	inID := inner.Interface(graph.Input)[0].Identifier
	outID := inner.Interface(graph.Output)[0].Identifier

	gin := add(t, inner, core.GroupInput)
	gout := add(t, inner, core.GroupOutput)
	mul := mathNode(t, inner, "MULTIPLY")
	factor, ok := inner.SocketByIdentifier(mul, graph.Input, "Value_001")
	require.True(t, ok)
	require.NoError(t, inner.SetSocketDefault(factor, sockettype.Float(10)))
	link(t, inner, gin, inID, mul, "Value")
	link(t, inner, mul, "Value", gout, outID)

	outer := newTree(t, reg, "Material")
	v := value(t, outer, 3)
	g := add(t, outer, core.Group)
	require.NoError(t, outer.SetGroupTree(g, inner))
	after := mathNode(t, outer, "ADD")
	link(t, outer, v, "Value", g, inID)
	link(t, outer, g, outID, after, "Value")

	ev := New(outer, WithWorkers(4))
	_, err = ev.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30.0, derivedFloat(t, outer, g, outID))
	assert.Equal(t, 30.5, derivedFloat(t, outer, after, "Value"))

	t.Run("editing the wrapped tree re-evaluates the group", func(t *testing.T) {
		require.NoError(t, inner.SetSocketDefault(factor, sockettype.Float(100)))
		assert.ElementsMatch(t, []graph.NodeHandle{g, after}, outer.DirtyNodes())

		res, err := ev.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, res.Evaluated)
		assert.Equal(t, 300.0, derivedFloat(t, outer, g, outID))
	})

	t.Run("unlinked group inputs use the interface default", func(t *testing.T) {
		in, ok := outer.SocketByIdentifier(g, graph.Input, inID)
		require.True(t, ok)
		info, _ := outer.Socket(in)
		outer.RemoveLink(info.Links[0])
		_, err := ev.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0.0, derivedFloat(t, outer, g, outID))
	})
}

func TestRun_EmptyGroup(t *testing.T) {
	reg := newTestRegistry(t, nil)
	tr := newTree(t, reg, "T")
	g := add(t, tr, core.Group)
	res, err := New(tr).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cleaned)
	d, ok := tr.Derived(g)
	require.True(t, ok)
	assert.Empty(t, d)
}
