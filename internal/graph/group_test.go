package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// assertMirrors checks the group sync law for one group node.
func assertMirrors(t *testing.T, outer *Tree, group NodeHandle, inner *Tree) {
	t.Helper()
	assert.Equal(t, ifaceSignature(inner.Interface(Input)), signature(outer.Sockets(group, Input)))
	assert.Equal(t, ifaceSignature(inner.Interface(Output)), signature(outer.Sockets(group, Output)))
}

func TestGroup_ScenarioD(t *testing.T) {
	reg := newTestRegistry()
	inner := newTestTree(t, reg, "Inner")
	outer := newTestTree(t, reg, "Outer")

	_, err := inner.AddInterfaceSocket(Input, "float", "Value")
	require.NoError(t, err)

	g := mustAdd(t, outer, "Group")
	require.NoError(t, outer.SetGroupTree(g, inner))
	require.Len(t, outer.Sockets(g, Input), 1)

	_, err = inner.AddInterfaceSocket(Input, "color", "Color")
	require.NoError(t, err)

	inputs := outer.Sockets(g, Input)
	require.Len(t, inputs, 2)
	assert.Equal(t, "Value", inputs[0].Name)
	assert.Equal(t, "float", inputs[0].TypeID)
	assert.Equal(t, "Color", inputs[1].Name)
	assert.Equal(t, "color", inputs[1].TypeID)
	assertMirrors(t, outer, g, inner)
}

func TestGroup_SyncLaw(t *testing.T) {
	reg := newTestRegistry()
	inner := newTestTree(t, reg, "Inner")
	outer := newTestTree(t, reg, "Outer")
	second := newTestTree(t, reg, "Second")

	a, err := inner.AddInterfaceSocket(Input, "float", "A")
	require.NoError(t, err)
	b, err := inner.AddInterfaceSocket(Input, "vector", "B")
	require.NoError(t, err)
	res, err := inner.AddInterfaceSocket(Output, "float", "Result")
	require.NoError(t, err)

	g1 := mustAdd(t, outer, "Group")
	g2 := mustAdd(t, outer, "Group")
	g3 := mustAdd(t, second, "Group")
	for _, u := range []struct {
		tree *Tree
		node NodeHandle
	}{{outer, g1}, {outer, g2}, {second, g3}} {
		require.NoError(t, u.tree.SetGroupTree(u.node, inner))
	}
	assert.Len(t, inner.Users(), 3)

	v := mustAdd(t, outer, "Value")
	m := mustAdd(t, outer, "Math")
	aSock := in(t, outer, g1, inner.Interface(Input)[0].Identifier)
	_, err = outer.AddLink(out(t, outer, v, "Value"), aSock)
	require.NoError(t, err)
	_, err = outer.AddLink(out(t, outer, g1, inner.Interface(Output)[0].Identifier), in(t, outer, m, "A"))
	require.NoError(t, err)

	checkAll := func(t *testing.T) {
		assertMirrors(t, outer, g1, inner)
		assertMirrors(t, outer, g2, inner)
		assertMirrors(t, second, g3, inner)
	}

	t.Run("move keeps links", func(t *testing.T) {
		require.NoError(t, inner.MoveInterfaceSocket(b, 0))
		checkAll(t)
		assert.Equal(t, 2, outer.LinkCount())
	})

	t.Run("rename", func(t *testing.T) {
		require.NoError(t, inner.SetInterfaceName(a, "Alpha"))
		checkAll(t)
		info, _ := outer.Socket(aSock)
		assert.Equal(t, "Alpha", info.Name)
	})

	t.Run("remove drops mirrored sockets and their links", func(t *testing.T) {
		inner.RemoveInterfaceSocket(a)
		checkAll(t)
		_, ok := outer.Socket(aSock)
		assert.False(t, ok)
		assert.Equal(t, 1, outer.LinkCount())

		inner.RemoveInterfaceSocket(a)
		checkAll(t)
	})

	t.Run("remove output", func(t *testing.T) {
		inner.RemoveInterfaceSocket(res)
		checkAll(t)
		assert.Equal(t, 0, outer.LinkCount())
	})

	t.Run("removing the group node releases the tree", func(t *testing.T) {
		outer.RemoveNode(g2)
		assert.Len(t, inner.Users(), 2)
	})
}

func TestGroup_InterfaceEdits(t *testing.T) {
	reg := newTestRegistry()
	tr := newTestTree(t, reg, "T")

	_, err := tr.AddInterfaceSocket(Input, "nope", "X")
	assert.ErrorIs(t, err, ErrUnknownSocketType)
	_, err = tr.AddInterfaceSocket(Input, "virtual", "X")
	assert.ErrorIs(t, err, ErrIncompatibleTypes)

	h, err := tr.AddInterfaceSocket(Input, "float", "Fac")
	require.NoError(t, err)

	lo, hi := 0.0, 1.0
	require.NoError(t, tr.SetInterfaceRange(h, &lo, &hi))
	require.NoError(t, tr.SetInterfaceDefault(h, cty.NumberFloatVal(3)))
	iface := tr.Interface(Input)
	require.Len(t, iface, 1)
	assert.Equal(t, 1.0, sockettype.AsFloat(iface[0].Default))
	assert.Equal(t, "Socket_0", iface[0].Identifier)

	assert.Error(t, tr.SetInterfaceRange(h, &hi, &lo))
	assert.ErrorIs(t, tr.MoveInterfaceSocket(h, 3), ErrOutOfRange)

	s, err := tr.AddInterfaceSocket(Output, "string", "Label")
	require.NoError(t, err)
	assert.Error(t, tr.SetInterfaceRange(s, &lo, &hi))

	_, err = tr.AddInterfaceSocketWithIdentifier(Input, "float", "Again", "Socket_0")
	assert.ErrorIs(t, err, ErrIdentifierTaken)
	_, err = tr.AddInterfaceSocketWithIdentifier(Output, "float", "Other", "Socket_0")
	assert.NoError(t, err, "identifiers are scoped per direction")
	assert.Len(t, tr.Interface(Input), 1)
}

func TestGroupIONodes(t *testing.T) {
	reg := newTestRegistry()
	tr := newTestTree(t, reg, "T")
	_, err := tr.AddInterfaceSocket(Input, "float", "Value")
	require.NoError(t, err)

	gin := mustAdd(t, tr, "GroupInput")
	gout := mustAdd(t, tr, "GroupOutput")

	outs := tr.Sockets(gin, Output)
	require.Len(t, outs, 2)
	assert.Equal(t, "Value", outs[0].Name)
	assert.True(t, outs[1].Extension)
	ins := tr.Sockets(gout, Input)
	require.Len(t, ins, 1)
	assert.True(t, ins[0].Extension)

	t.Run("linking to the virtual socket exposes a new output", func(t *testing.T) {
		m := mustAdd(t, tr, "Math")
		_, err := tr.AddLink(out(t, tr, m, "Result"), ins[0].Handle)
		require.NoError(t, err)

		iface := tr.Interface(Output)
		require.Len(t, iface, 1)
		assert.Equal(t, "Result", iface[0].Name)
		assert.Equal(t, "float", iface[0].Type.ID())

		got := tr.Sockets(gout, Input)
		require.Len(t, got, 2)
		assert.Equal(t, iface[0].Identifier, got[0].Identifier)
		assert.True(t, got[0].Linked())
		assert.True(t, got[1].Extension)
	})

	t.Run("linking from the virtual socket exposes a new input", func(t *testing.T) {
		v := mustAdd(t, tr, "Vec")
		ext := tr.Sockets(gin, Output)[1]
		require.True(t, ext.Extension)
		_, err := tr.AddLink(ext.Handle, in(t, tr, v, "Vector"))
		require.NoError(t, err)

		iface := tr.Interface(Input)
		require.Len(t, iface, 2)
		assert.Equal(t, "vector", iface[1].Type.ID())
		assert.Len(t, tr.Sockets(gin, Output), 3)
	})

	t.Run("virtual to virtual is rejected", func(t *testing.T) {
		ext := tr.Sockets(gin, Output)
		_, err := tr.AddLink(ext[len(ext)-1].Handle, tr.Sockets(gout, Input)[1].Handle)
		assert.ErrorIs(t, err, ErrIncompatibleTypes)
	})
}

func TestSetGroupTree(t *testing.T) {
	reg := newTestRegistry()
	a := newTestTree(t, reg, "A")
	b := newTestTree(t, reg, "B")
	c := newTestTree(t, reg, "C")

	ga := mustAdd(t, a, "Group")
	gb := mustAdd(t, b, "Group")
	gc := mustAdd(t, c, "Group")

	require.NoError(t, a.SetGroupTree(ga, b))
	require.NoError(t, b.SetGroupTree(gb, c))

	t.Run("self nesting", func(t *testing.T) {
		assert.ErrorIs(t, c.SetGroupTree(gc, c), ErrCycleDetected)
	})

	t.Run("transitive nesting", func(t *testing.T) {
		assert.ErrorIs(t, c.SetGroupTree(gc, a), ErrCycleDetected)
	})

	t.Run("not a group node", func(t *testing.T) {
		m := mustAdd(t, c, "Math")
		assert.ErrorIs(t, c.SetGroupTree(m, newTestTree(t, reg, "D")), ErrNotGroup)
	})

	t.Run("tree kind must match", func(t *testing.T) {
		comp := NewTree(context.Background(), reg, "Comp", "compositor")
		assert.ErrorIs(t, c.SetGroupTree(gc, comp), ErrPollFailed)
	})

	t.Run("detach clears users", func(t *testing.T) {
		_, err := c.AddInterfaceSocket(Input, "float", "X")
		require.NoError(t, err)
		assert.Len(t, b.Sockets(gb, Input), 1)

		c.Detach()
		assert.Empty(t, c.Users())
		_, ok := b.GroupTree(gb)
		assert.False(t, ok)
		assert.Empty(t, b.Sockets(gb, Input))
	})
}

func TestGroupEditDirtiesUsers(t *testing.T) {
	reg := newTestRegistry()
	inner := newTestTree(t, reg, "Inner")
	outer := newTestTree(t, reg, "Outer")
	g := mustAdd(t, outer, "Group")
	after := mustAdd(t, outer, "Math")
	require.NoError(t, outer.SetGroupTree(g, inner))
	_, err := inner.AddInterfaceSocket(Output, "float", "Out")
	require.NoError(t, err)
	_, err = outer.AddLink(out(t, outer, g, inner.Interface(Output)[0].Identifier), in(t, outer, after, "A"))
	require.NoError(t, err)

	commitAll(t, inner, inner.Snapshot())
	commitAll(t, outer, outer.Snapshot())
	require.Empty(t, outer.DirtyNodes())

	mustAdd(t, inner, "Value")
	assert.ElementsMatch(t, []NodeHandle{g, after}, outer.DirtyNodes())
}
