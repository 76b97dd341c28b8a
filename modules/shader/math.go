package shader

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// mathOps maps the operation parameter of ShaderNodeMath to its function.
var mathOps = map[string]func(a, b float64) float64{
	"ADD":      func(a, b float64) float64 { return a + b },
	"SUBTRACT": func(a, b float64) float64 { return a - b },
	"MULTIPLY": func(a, b float64) float64 { return a * b },
	"DIVIDE": func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return a / b
	},
	"POWER":   math.Pow,
	"MINIMUM": math.Min,
	"MAXIMUM": math.Max,
	"MODULO": func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return math.Mod(a, b)
	},
	"LESS_THAN": func(a, b float64) float64 {
		if a < b {
			return 1
		}
		return 0
	},
	"GREATER_THAN": func(a, b float64) float64 {
		if a > b {
			return 1
		}
		return 0
	},
	"ABSOLUTE": func(a, _ float64) float64 { return math.Abs(a) },
	"SQRT": func(a, _ float64) float64 {
		if a < 0 {
			return 0
		}
		return math.Sqrt(a)
	},
}

func initMath(p registry.Params) {
	p["operation"] = cty.StringVal("ADD")
	p["use_clamp"] = cty.False
}

// UpdateMath applies the selected scalar operation to the two inputs.
func UpdateMath(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	op := in.StringParam("operation", "ADD")
	fn, ok := mathOps[op]
	if !ok {
		return nil, fmt.Errorf("unknown math operation %q", op)
	}
	v := fn(in.Float("Value"), in.Float("Value_001"))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	if sockettype.AsBool(in.Param("use_clamp", cty.False)) {
		v = math.Max(0, math.Min(1, v))
	}
	return registry.Derived{"Value": sockettype.Float(v)}, nil
}

func describeMath(p registry.Params) string {
	op := "ADD"
	if v, ok := p["operation"]; ok && sockettype.AsString(v) != "" {
		op = sockettype.AsString(v)
	}
	return titleCase(op)
}

// titleCase turns "GREATER_THAN" into "Greater Than".
func titleCase(op string) string {
	words := strings.Split(strings.ToLower(op), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func initVectorMath(p registry.Params) {
	p["operation"] = cty.StringVal("ADD")
}

// UpdateVectorMath applies the selected vector operation. Operations with
// a scalar result write Value and leave Vector at zero.
func UpdateVectorMath(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	a := sockettype.AsVector(in.Input("Vector"))
	b := sockettype.AsVector(in.Input("Vector_001"))
	scale := in.Float("Scale")

	var vec [3]float64
	var val float64
	switch op := in.StringParam("operation", "ADD"); op {
	case "ADD":
		vec = [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
	case "SUBTRACT":
		vec = [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
	case "MULTIPLY":
		vec = [3]float64{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
	case "SCALE":
		vec = [3]float64{a[0] * scale, a[1] * scale, a[2] * scale}
	case "CROSS_PRODUCT":
		vec = [3]float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
	case "DOT_PRODUCT":
		val = a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	case "LENGTH":
		val = math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
	case "NORMALIZE":
		if l := math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2]); l > 0 {
			vec = [3]float64{a[0] / l, a[1] / l, a[2] / l}
		}
	default:
		return nil, fmt.Errorf("unknown vector math operation %q", op)
	}
	return registry.Derived{
		"Vector": sockettype.Vector(vec[0], vec[1], vec[2]),
		"Value":  sockettype.Float(val),
	}, nil
}

// UpdateCombineXYZ builds a vector from three scalars.
func UpdateCombineXYZ(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	return registry.Derived{"Vector": sockettype.Vector(in.Float("X"), in.Float("Y"), in.Float("Z"))}, nil
}

// UpdateSeparateXYZ splits a vector into its components.
func UpdateSeparateXYZ(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	v := sockettype.AsVector(in.Input("Vector"))
	return registry.Derived{
		"X": sockettype.Float(v[0]),
		"Y": sockettype.Float(v[1]),
		"Z": sockettype.Float(v[2]),
	}, nil
}

// UpdateClamp clamps Value into [Min, Max]. It backs the catalog-declared
// ShaderNodeClamp.
func UpdateClamp(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	lo, hi := in.Float("Min"), in.Float("Max")
	if lo > hi && in.StringParam("clamp_type", "MINMAX") == "RANGE" {
		lo, hi = hi, lo
	}
	return registry.Derived{"Result": sockettype.Float(math.Max(lo, math.Min(hi, in.Float("Value"))))}, nil
}

// UpdateMapRange linearly remaps Value from [From Min, From Max] to
// [To Min, To Max]. It backs the catalog-declared ShaderNodeMapRange.
func UpdateMapRange(_ context.Context, in *registry.UpdateInput) (registry.Derived, error) {
	v := in.Float("Value")
	fromMin, fromMax := in.Float("From_Min"), in.Float("From_Max")
	toMin, toMax := in.Float("To_Min"), in.Float("To_Max")

	var result float64
	if fromMax != fromMin {
		result = toMin + (v-fromMin)/(fromMax-fromMin)*(toMax-toMin)
	}
	if sockettype.AsBool(in.Param("clamp", cty.True)) {
		lo, hi := math.Min(toMin, toMax), math.Max(toMin, toMax)
		result = math.Max(lo, math.Min(hi, result))
	}
	return registry.Derived{"Result": sockettype.Float(result)}, nil
}
