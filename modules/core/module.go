// Package core registers the structural node types every tree kind
// shares: reroutes, frames, and the group family.
package core

import (
	"context"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
)

// Node type identifiers.
const (
	Reroute     = "NodeReroute"
	Frame       = "NodeFrame"
	GroupInput  = "NodeGroupInput"
	GroupOutput = "NodeGroupOutput"
	Group       = "NodeGroup"
	CustomGroup = "NodeCustomGroup"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// UpdateReroute passes its input through unchanged.
func UpdateReroute(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	return registry.Derived{"Output": in.Input("Input")}, nil
}

// UpdateGroupInput exposes the values the enclosing group node was given.
// Interface inputs the group node did not provide read the socket default.
func UpdateGroupInput(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	out := make(registry.Derived, len(in.Outputs))
	for _, o := range in.Outputs {
		if v, ok := in.Interface[o.Identifier]; ok && !sockettype.IsNil(v) {
			out[o.Identifier] = v
			continue
		}
		switch {
		case !sockettype.IsNil(o.Default):
			out[o.Identifier] = o.Default
		case o.Type != nil:
			out[o.Identifier] = o.Type.Default()
		}
	}
	return out, nil
}

// UpdateGroupOutput records its resolved inputs, which become the outputs
// of the group node evaluating the tree.
func UpdateGroupOutput(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	out := make(registry.Derived, len(in.Inputs))
	for k, v := range in.Inputs {
		out[k] = v
	}
	return out, nil
}

// UpdateGroup evaluates the wrapped tree. A group node without a tree
// outputs its socket defaults.
func UpdateGroup(ctx context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	if in.Subgraph == nil {
		return registry.DefaultUpdate(ctx, in)
	}
	return in.Subgraph(ctx, in.Inputs)
}

// Register registers the node types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.MustRegisterNodeType(&registry.NodeType{
		ID:          Reroute,
		Label:       "Reroute",
		Description: "Passes a value through to tidy up links.",
		Role:        registry.RoleReroute,
		Inputs:      []registry.SocketTemplate{{Identifier: "Input", Type: "virtual"}},
		Outputs:     []registry.SocketTemplate{{Identifier: "Output", Type: "virtual"}},
		Hooks:       registry.Hooks{Update: UpdateReroute},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:          Frame,
		Label:       "Frame",
		Description: "Groups nodes visually.",
		Role:        registry.RoleFrame,
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:          GroupInput,
		Label:       "Group Input",
		Description: "Exposes the tree's interface inputs.",
		Role:        registry.RoleGroupInput,
		Hooks:       registry.Hooks{Update: UpdateGroupInput},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:          GroupOutput,
		Label:       "Group Output",
		Description: "Collects the tree's interface outputs.",
		Role:        registry.RoleGroupOutput,
		Hooks:       registry.Hooks{Update: UpdateGroupOutput},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:          Group,
		Label:       "Group",
		Description: "Instances another tree as a single node.",
		Role:        registry.RoleGroup,
		Hooks:       registry.Hooks{Update: UpdateGroup},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:          CustomGroup,
		Label:       "Custom Group",
		Description: "Group node whose type is provided by an add-on.",
		Role:        registry.RoleGroup,
		Hooks:       registry.Hooks{Update: UpdateGroup},
	})
}
