// Package shader registers the material node types of shader trees. The
// Clamp and Map Range nodes are declared in the shader catalog and bind to
// the "clamp" and "map_range" hook sets registered here.
package shader

import (
	"context"
	"fmt"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// TreeKind is the tree kind the shader node types poll for.
const TreeKind = "shader"

// Module implements the registry.Module interface for this package.
type Module struct{}

func ptr(f float64) *float64 { return &f }

func socket(id, typ string) registry.SocketTemplate {
	return registry.SocketTemplate{Identifier: id, Type: typ}
}

func named(id, name, typ string, def cty.Value) registry.SocketTemplate {
	return registry.SocketTemplate{Identifier: id, Name: name, Type: typ, Default: def}
}

func factor(id, name string, def float64) registry.SocketTemplate {
	return registry.SocketTemplate{Identifier: id, Name: name, Type: "factor", Default: sockettype.Float(def), Min: ptr(0), Max: ptr(1)}
}

// UpdateValue outputs the node's value parameter.
func UpdateValue(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	return registry.Derived{"Value": sockettype.Float(sockettype.AsFloat(in.Param("value", sockettype.Float(0.5))))}, nil
}

// UpdateRGB outputs the node's color parameter.
func UpdateRGB(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	c, err := sockettype.Coerce(sockettype.KindColor, in.Param("color", sockettype.Color(0.5, 0.5, 0.5, 1)))
	if err != nil {
		return nil, fmt.Errorf("color parameter: %w", err)
	}
	return registry.Derived{"Color": c}, nil
}

// UpdateMix blends colors A and B by Factor.
func UpdateMix(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	f := in.Float("Factor")
	a, b := sockettype.AsColor(in.Input("A")), sockettype.AsColor(in.Input("B"))
	var out [4]float64
	switch mode := in.StringParam("blend_type", "MIX"); mode {
	case "MIX":
		for i := range out {
			out[i] = a[i]*(1-f) + b[i]*f
		}
	case "ADD":
		for i := range out {
			out[i] = a[i] + b[i]*f
		}
	case "MULTIPLY":
		for i := range out {
			out[i] = a[i] * (1 - f + b[i]*f)
		}
	default:
		return nil, fmt.Errorf("unknown blend type %q", mode)
	}
	out[3] = a[3]
	return registry.Derived{"Result": sockettype.Color(out[0], out[1], out[2], out[3])}, nil
}

// UpdatePrincipled packs its inputs into a shader closure.
func UpdatePrincipled(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	params := make(map[string]cty.Value, len(in.Inputs))
	for k, v := range in.Inputs {
		params[k] = v
	}
	return registry.Derived{"BSDF": sockettype.Shader(&sockettype.Closure{Kind: "principled_bsdf", Params: params})}, nil
}

// UpdateOutputMaterial records the closure reaching the surface input so
// that callers can inspect the final material.
func UpdateOutputMaterial(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	out := registry.Derived{}
	if c, ok := sockettype.AsClosure(in.Input("Surface")); ok {
		out["Surface"] = sockettype.Shader(c)
	}
	return out, nil
}

// Register registers the node types and hook sets with the registry.
func (m *Module) Register(r *registry.Registry) {
	kinds := []string{TreeKind}

	r.RegisterHooks("clamp", registry.Hooks{
		Init:     func(p registry.Params) { p["clamp_type"] = cty.StringVal("MINMAX") },
		Update:   UpdateClamp,
		Describe: func(registry.Params) string { return "Clamp" },
	})
	r.RegisterHooks("map_range", registry.Hooks{
		Init:   func(p registry.Params) { p["clamp"] = cty.True },
		Update: UpdateMapRange,
	})

	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeValue",
		Label:     "Value",
		TreeKinds: kinds,
		Outputs:   []registry.SocketTemplate{socket("Value", "float")},
		Hooks: registry.Hooks{
			Init:   func(p registry.Params) { p["value"] = sockettype.Float(0.5) },
			Update: UpdateValue,
		},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeRGB",
		Label:     "RGB",
		TreeKinds: kinds,
		Outputs:   []registry.SocketTemplate{socket("Color", "color")},
		Hooks: registry.Hooks{
			Init:   func(p registry.Params) { p["color"] = sockettype.Color(0.5, 0.5, 0.5, 1) },
			Update: UpdateRGB,
		},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeMath",
		Label:     "Math",
		TreeKinds: kinds,
		Inputs: []registry.SocketTemplate{
			named("Value", "Value", "float", sockettype.Float(0.5)),
			named("Value_001", "Value", "float", sockettype.Float(0.5)),
		},
		Outputs: []registry.SocketTemplate{socket("Value", "float")},
		Hooks:   registry.Hooks{Init: initMath, Update: UpdateMath, Describe: describeMath},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeVectorMath",
		Label:     "Vector Math",
		TreeKinds: kinds,
		Inputs: []registry.SocketTemplate{
			named("Vector", "Vector", "vector", cty.NilVal),
			named("Vector_001", "Vector", "vector", cty.NilVal),
			named("Scale", "Scale", "float", sockettype.Float(1)),
		},
		Outputs: []registry.SocketTemplate{socket("Vector", "vector"), socket("Value", "float")},
		Hooks:   registry.Hooks{Init: initVectorMath, Update: UpdateVectorMath, Describe: describeMath},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeMix",
		Label:     "Mix",
		TreeKinds: kinds,
		Inputs: []registry.SocketTemplate{
			factor("Factor", "Factor", 0.5),
			named("A", "A", "color", sockettype.Color(0.5, 0.5, 0.5, 1)),
			named("B", "B", "color", sockettype.Color(0.5, 0.5, 0.5, 1)),
		},
		Outputs: []registry.SocketTemplate{socket("Result", "color")},
		Hooks: registry.Hooks{
			Init:   func(p registry.Params) { p["blend_type"] = cty.StringVal("MIX") },
			Update: UpdateMix,
		},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeCombineXYZ",
		Label:     "Combine XYZ",
		TreeKinds: kinds,
		Inputs:    []registry.SocketTemplate{socket("X", "float"), socket("Y", "float"), socket("Z", "float")},
		Outputs:   []registry.SocketTemplate{socket("Vector", "vector")},
		Hooks:     registry.Hooks{Update: UpdateCombineXYZ},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeSeparateXYZ",
		Label:     "Separate XYZ",
		TreeKinds: kinds,
		Inputs:    []registry.SocketTemplate{socket("Vector", "vector")},
		Outputs:   []registry.SocketTemplate{socket("X", "float"), socket("Y", "float"), socket("Z", "float")},
		Hooks:     registry.Hooks{Update: UpdateSeparateXYZ},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeBsdfPrincipled",
		Label:     "Principled BSDF",
		TreeKinds: kinds,
		Inputs: []registry.SocketTemplate{
			named("Base Color", "Base Color", "color", sockettype.Color(0.8, 0.8, 0.8, 1)),
			factor("Metallic", "Metallic", 0),
			factor("Roughness", "Roughness", 0.5),
			named("IOR", "IOR", "float", sockettype.Float(1.45)),
			factor("Alpha", "Alpha", 1),
			named("Normal", "Normal", "vector", cty.NilVal),
		},
		Outputs: []registry.SocketTemplate{socket("BSDF", "shader")},
		Hooks:   registry.Hooks{Update: UpdatePrincipled},
	})
	r.MustRegisterNodeType(&registry.NodeType{
		ID:        "ShaderNodeOutputMaterial",
		Label:     "Material Output",
		TreeKinds: kinds,
		Inputs: []registry.SocketTemplate{
			socket("Surface", "shader"),
			socket("Volume", "shader"),
			socket("Displacement", "vector"),
		},
		Hooks: registry.Hooks{
			Init:   func(p registry.Params) { p["target"] = cty.StringVal("ALL") },
			Update: UpdateOutputMaterial,
		},
	})
}
