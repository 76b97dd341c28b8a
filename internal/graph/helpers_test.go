package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
)

func float(id string) registry.SocketTemplate {
	return registry.SocketTemplate{Identifier: id, Type: "float"}
}

// newTestRegistry registers a small set of node types covering every role.
func newTestRegistry() *registry.Registry {
	r := registry.New(sockettype.NewDefault())
	r.MustRegisterNodeType(&registry.NodeType{ID: "Value", Outputs: []registry.SocketTemplate{float("Value")}})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:      "Math",
		Inputs:  []registry.SocketTemplate{float("A"), float("B")},
		Outputs: []registry.SocketTemplate{float("Result")},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:      "Vec",
		Inputs:  []registry.SocketTemplate{{Identifier: "Vector", Type: "vector"}},
		Outputs: []registry.SocketTemplate{{Identifier: "Vector", Type: "vector"}},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:      "Text",
		Outputs: []registry.SocketTemplate{{Identifier: "String", Type: "string"}},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:      "Bsdf",
		Outputs: []registry.SocketTemplate{{Identifier: "BSDF", Type: "shader"}},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:      "Reroute",
		Role:    registry.RoleReroute,
		Inputs:  []registry.SocketTemplate{{Identifier: "Input", Type: "virtual"}},
		Outputs: []registry.SocketTemplate{{Identifier: "Output", Type: "virtual"}},
		Hooks:   registry.Hooks{ValidateLink: func(registry.LinkCandidate) bool { return true }},
	})
	r.MustRegisterNodeType(&registry.NodeType{ID: "Frame", Role: registry.RoleFrame})
	r.MustRegisterNodeType(&registry.NodeType{ID: "Group", Role: registry.RoleGroup})
	r.MustRegisterNodeType(&registry.NodeType{ID: "GroupInput", Role: registry.RoleGroupInput})
	r.MustRegisterNodeType(&registry.NodeType{ID: "GroupOutput", Role: registry.RoleGroupOutput})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:     "Picky",
		Inputs: []registry.SocketTemplate{float("In")},
		Hooks: registry.Hooks{ValidateLink: func(c registry.LinkCandidate) bool {
			// Only accepts links coming from Value nodes.
			return !c.Incoming || c.From.NodeType == "Value"
		}},
	})
	r.MustRegisterNodeType(&registry.NodeType{ID: "ShaderOnly", TreeKinds: []string{"shader"}})
	r.Seal()
	return r
}

func newTestTree(t *testing.T, reg *registry.Registry, name string) *Tree {
	t.Helper()
	return NewTree(context.Background(), reg, name, "shader")
}

func mustAdd(t *testing.T, tr *Tree, typeID string) NodeHandle {
	t.Helper()
	h, err := tr.AddNode(typeID)
	require.NoError(t, err)
	return h
}

func sock(t *testing.T, tr *Tree, n NodeHandle, dir Direction, id string) SocketHandle {
	t.Helper()
	h, ok := tr.SocketByIdentifier(n, dir, id)
	require.True(t, ok, "socket %s %s", dir, id)
	return h
}

func out(t *testing.T, tr *Tree, n NodeHandle, id string) SocketHandle {
	t.Helper()
	return sock(t, tr, n, Output, id)
}

func in(t *testing.T, tr *Tree, n NodeHandle, id string) SocketHandle {
	t.Helper()
	return sock(t, tr, n, Input, id)
}

// signature returns identifier/name/type triples for comparing socket lists.
func signature(list []SocketInfo) [][3]string {
	var sig [][3]string
	for _, s := range list {
		if s.Extension {
			continue
		}
		sig = append(sig, [3]string{s.Identifier, s.Name, s.TypeID})
	}
	return sig
}

func ifaceSignature(list []InterfaceSocket) [][3]string {
	var sig [][3]string
	for _, s := range list {
		sig = append(sig, [3]string{s.Identifier, s.Name, s.Type.ID()})
	}
	return sig
}
