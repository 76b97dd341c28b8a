// Package texture registers the procedural texture node types of texture
// trees.
package texture

import (
	"context"
	"math"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
)

// TreeKind is the tree kind the texture node types poll for.
const TreeKind = "texture"

// Module implements the registry.Module interface for this package.
type Module struct{}

// UpdateChecker samples a checkerboard at the input coordinate.
func UpdateChecker(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	size := in.Float("Size")
	if size <= 0 {
		size = 1
	}
	p := sockettype.AsVector(in.Input("Vector"))
	sum := 0
	for _, c := range p {
		sum += int(math.Floor(c / size))
	}
	src := "Color1"
	if sum%2 != 0 {
		src = "Color2"
	}
	return registry.Derived{"Color": in.Input(src)}, nil
}

// UpdateOutput records the color reaching the texture output.
func UpdateOutput(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	return registry.Derived{"Color": in.Input("Color")}, nil
}

// Register registers the node types with the registry.
func (m *Module) Register(r *registry.Registry) {
	kinds := []string{TreeKind}

	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "TextureNodeChecker",
		Label:     "Checker",
		TreeKinds: kinds,
		Inputs: []registry.SocketTemplate{
			{Identifier: "Vector", Type: "vector"},
			{Identifier: "Color1", Name: "Color 1", Type: "color", Default: sockettype.Color(1, 0, 0, 1)},
			{Identifier: "Color2", Name: "Color 2", Type: "color", Default: sockettype.Color(1, 1, 1, 1)},
			{Identifier: "Size", Type: "float", Default: sockettype.Float(0.5)},
		},
		Outputs: []registry.SocketTemplate{{Identifier: "Color", Type: "color"}},
		Hooks:   registry.Hooks{Update: UpdateChecker},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "TextureNodeOutput",
		Label:     "Output",
		TreeKinds: kinds,
		Inputs:    []registry.SocketTemplate{{Identifier: "Color", Type: "color"}},
		Hooks:     registry.Hooks{Update: UpdateOutput},
	})
}
