package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// commitAll commits an empty result for every node captured dirty.
func commitAll(t *testing.T, tr *Tree, s *Snapshot) int {
	t.Helper()
	results := make(map[NodeHandle]registry.Derived)
	for _, n := range s.Nodes {
		if n.Dirty {
			results[n.Handle] = registry.Derived{}
		}
	}
	n, err := tr.Commit(s, results)
	require.NoError(t, err)
	return n
}

func stateOf(t *testing.T, tr *Tree, h NodeHandle) State {
	t.Helper()
	st, err := tr.State(h)
	require.NoError(t, err)
	return st
}

func TestSnapshot_Capture(t *testing.T) {
	tr := newTestTree(t, newTestRegistry(), "T")
	v := mustAdd(t, tr, "Value")
	m := mustAdd(t, tr, "Math")
	_, err := tr.AddLink(out(t, tr, v, "Value"), in(t, tr, m, "B"))
	require.NoError(t, err)
	require.NoError(t, tr.SetSocketDefault(in(t, tr, m, "A"), cty.NumberIntVal(2)))
	require.NoError(t, tr.SetParam(m, "operation", cty.StringVal("add")))

	s := tr.Snapshot()
	assert.Equal(t, tr.Version(), s.Version)
	require.Len(t, s.Nodes, 2)
	require.Len(t, s.Links, 1)

	sm, ok := s.Node(m)
	require.True(t, ok)
	assert.True(t, sm.Dirty)
	assert.Equal(t, "add", sm.Params["operation"].AsString())
	require.Len(t, sm.Inputs, 2)
	assert.Equal(t, -1, sm.Inputs[0].Link)
	assert.Equal(t, 2.0, sockettype.AsFloat(sm.Inputs[0].Default))
	assert.Equal(t, 0, sm.Inputs[1].Link)
	assert.Equal(t, v, s.Links[0].FromNode)
	assert.Equal(t, []NodeHandle{v}, s.Upstream(m))
	assert.Empty(t, s.Upstream(v))

	t.Run("captured nodes are evaluating", func(t *testing.T) {
		assert.Equal(t, StateEvaluating, stateOf(t, tr, v))
		assert.Equal(t, StateEvaluating, stateOf(t, tr, m))
	})

	t.Run("later edits do not reach the capture", func(t *testing.T) {
		require.NoError(t, tr.SetParam(m, "operation", cty.StringVal("multiply")))
		mustAdd(t, tr, "Value")
		assert.Len(t, s.Nodes, 2)
		sm, _ := s.Node(m)
		assert.Equal(t, "add", sm.Params["operation"].AsString())
	})
}

func TestCommit(t *testing.T) {
	tr := newTestTree(t, newTestRegistry(), "T")
	v := mustAdd(t, tr, "Value")
	m := mustAdd(t, tr, "Math")
	_, err := tr.AddLink(out(t, tr, v, "Value"), in(t, tr, m, "A"))
	require.NoError(t, err)

	s := tr.Snapshot()
	n, err := tr.Commit(s, map[NodeHandle]registry.Derived{
		v: {"Value": cty.NumberIntVal(1)},
		m: {"Result": cty.NumberIntVal(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, tr.DirtyNodes())

	d, ok := tr.Derived(m)
	require.True(t, ok)
	assert.True(t, d["Result"].RawEquals(cty.NumberIntVal(2)))

	t.Run("clean nodes are not recaptured dirty", func(t *testing.T) {
		s := tr.Snapshot()
		for _, n := range s.Nodes {
			assert.False(t, n.Dirty)
			assert.NotNil(t, n.Derived)
		}
		assert.Equal(t, 0, commitAll(t, tr, s))
	})

	t.Run("edits dirty downstream only", func(t *testing.T) {
		require.NoError(t, tr.SetParam(m, "operation", cty.StringVal("add")))
		assert.Equal(t, []NodeHandle{m}, tr.DirtyNodes())
		commitAll(t, tr, tr.Snapshot())

		require.NoError(t, tr.SetParam(v, "value", cty.NumberIntVal(5)))
		assert.Equal(t, []NodeHandle{v, m}, tr.DirtyNodes())
		commitAll(t, tr, tr.Snapshot())
	})

	t.Run("missing results stay dirty", func(t *testing.T) {
		tr.TagForUpdate()
		s := tr.Snapshot()
		n, err := tr.Commit(s, map[NodeHandle]registry.Derived{v: {}})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []NodeHandle{m}, tr.DirtyNodes())
		assert.Equal(t, StateDirty, stateOf(t, tr, m))
		commitAll(t, tr, tr.Snapshot())
	})

	t.Run("foreign snapshot", func(t *testing.T) {
		other := newTestTree(t, newTestRegistry(), "Other")
		_, err := tr.Commit(other.Snapshot(), nil)
		assert.Error(t, err)
		_, err = tr.Commit(nil, nil)
		assert.Error(t, err)
	})
}

func TestCommit_EditDuringPass(t *testing.T) {
	tr := newTestTree(t, newTestRegistry(), "T")
	v := mustAdd(t, tr, "Value")
	m := mustAdd(t, tr, "Math")
	_, err := tr.AddLink(out(t, tr, v, "Value"), in(t, tr, m, "A"))
	require.NoError(t, err)

	s := tr.Snapshot()
	// The edit lands while the pass is running.
	require.NoError(t, tr.SetParam(m, "operation", cty.StringVal("subtract")))
	assert.Equal(t, StateDirty, stateOf(t, tr, m))

	n := commitAll(t, tr, s)
	assert.Equal(t, 1, n)
	assert.Equal(t, StateClean, stateOf(t, tr, v))
	assert.Equal(t, StateDirty, stateOf(t, tr, m))

	s = tr.Snapshot()
	sm, _ := s.Node(m)
	assert.True(t, sm.Dirty)
	assert.Equal(t, "subtract", sm.Params["operation"].AsString())
	commitAll(t, tr, s)
	assert.Empty(t, tr.DirtyNodes())
}

func TestAbort(t *testing.T) {
	tr := newTestTree(t, newTestRegistry(), "T")
	v := mustAdd(t, tr, "Value")
	m := mustAdd(t, tr, "Math")

	s := tr.Snapshot()
	tr.Abort(s)
	assert.Equal(t, StateDirty, stateOf(t, tr, v))
	assert.Equal(t, StateDirty, stateOf(t, tr, m))
	assert.Equal(t, []NodeHandle{v, m}, tr.DirtyNodes())

	s = tr.Snapshot()
	sv, _ := s.Node(v)
	assert.True(t, sv.Dirty)
	assert.Equal(t, 2, commitAll(t, tr, s))

	tr.Abort(s)
	assert.Equal(t, StateClean, stateOf(t, tr, v))
}

func TestSnapshot_GroupCapture(t *testing.T) {
	reg := newTestRegistry()
	inner := newTestTree(t, reg, "Inner")
	outer := newTestTree(t, reg, "Outer")
	mustAdd(t, inner, "Value")
	_, err := inner.AddInterfaceSocket(Output, "float", "Out")
	require.NoError(t, err)

	g := mustAdd(t, outer, "Group")
	require.NoError(t, outer.SetGroupTree(g, inner))

	s := outer.Snapshot()
	sg, ok := s.Node(g)
	require.True(t, ok)
	require.NotNil(t, sg.Group)
	assert.Equal(t, inner.ID(), sg.Group.TreeID)
	assert.Len(t, sg.Group.Nodes, 1)
	require.Len(t, sg.Group.Outputs, 1)
	assert.Equal(t, "Out", sg.Group.Outputs[0].Name)

	// Nested captures leave the wrapped tree alone.
	assert.Len(t, inner.DirtyNodes(), 1)
	assert.Equal(t, StateDirty, stateOf(t, inner, inner.Nodes()[0]))
}
