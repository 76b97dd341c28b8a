// Package compositor registers the image post-processing node types of
// compositor trees. Images are represented by a single color sample.
package compositor

import (
	"context"
	"math"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// TreeKind is the tree kind the compositor node types poll for.
const TreeKind = "compositor"

// Module implements the registry.Module interface for this package.
type Module struct{}

var black = sockettype.Color(0, 0, 0, 1)

// UpdateInvert inverts the RGB channels, blended by Fac.
func UpdateInvert(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	fac := in.Float("Fac")
	c := sockettype.AsColor(in.Input("Color"))
	var out [3]float64
	for i := range out {
		out[i] = c[i]*(1-fac) + (1-c[i])*fac
	}
	return registry.Derived{"Color": sockettype.Color(out[0], out[1], out[2], c[3])}, nil
}

// UpdateBrightContrast applies the brightness/contrast formula used by the
// compositor: out = (in - 0.5) * contrast' + 0.5 + bright.
func UpdateBrightContrast(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	c := sockettype.AsColor(in.Input("Image"))
	bright := in.Float("Bright") / 100
	contrast := 1 + in.Float("Contrast")/100
	var out [3]float64
	for i := range out {
		out[i] = math.Max(0, (c[i]-0.5)*contrast+0.5+bright)
	}
	return registry.Derived{"Image": sockettype.Color(out[0], out[1], out[2], c[3])}, nil
}

// UpdateSink records the image reaching a Composite or Viewer node.
func UpdateSink(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	return registry.Derived{"Image": in.Input("Image")}, nil
}

// Register registers the node types with the registry.
func (m *Module) Register(r *registry.Registry) {
	kinds := []string{TreeKind}
	image := registry.SocketTemplate{Identifier: "Image", Type: "color", Default: black}

	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "CompositorNodeInvert",
		Label:     "Invert Color",
		TreeKinds: kinds,
		Inputs: []registry.SocketTemplate{
			{Identifier: "Fac", Type: "factor", Default: sockettype.Float(1)},
			{Identifier: "Color", Type: "color", Default: sockettype.Color(1, 1, 1, 1)},
		},
		Outputs: []registry.SocketTemplate{{Identifier: "Color", Type: "color"}},
		Hooks:   registry.Hooks{Update: UpdateInvert},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "CompositorNodeBrightContrast",
		Label:     "Brightness/Contrast",
		TreeKinds: kinds,
		Inputs: []registry.SocketTemplate{
			image,
			{Identifier: "Bright", Type: "float"},
			{Identifier: "Contrast", Type: "float"},
		},
		Outputs: []registry.SocketTemplate{{Identifier: "Image", Type: "color"}},
		Hooks:   registry.Hooks{Update: UpdateBrightContrast},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "CompositorNodeComposite",
		Label:     "Composite",
		TreeKinds: kinds,
		Inputs:    []registry.SocketTemplate{image, {Identifier: "Alpha", Type: "factor", Default: sockettype.Float(1)}},
		Hooks: registry.Hooks{
			Init:   func(p registry.Params) { p["use_alpha"] = cty.True },
			Update: UpdateSink,
		},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "CompositorNodeViewer",
		Label:     "Viewer",
		TreeKinds: kinds,
		Inputs:    []registry.SocketTemplate{image},
		Hooks:     registry.Hooks{Update: UpdateSink},
	})
}
