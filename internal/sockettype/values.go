package sockettype

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Float returns a number value.
func Float(f float64) cty.Value {
	return cty.NumberFloatVal(f)
}

// Vector returns a three component vector value.
func Vector(x, y, z float64) cty.Value {
	return cty.TupleVal([]cty.Value{Float(x), Float(y), Float(z)})
}

// Color returns an RGBA color value.
func Color(r, g, b, a float64) cty.Value {
	return cty.TupleVal([]cty.Value{Float(r), Float(g), Float(b), Float(a)})
}

// Shader wraps a closure in a shader socket value.
func Shader(c *Closure) cty.Value {
	return cty.CapsuleVal(ShaderType, c)
}

// IsNil reports whether v is the zero cty.Value, which is what gohcl leaves
// in optional attributes that were not written.
func IsNil(v cty.Value) bool {
	return v.Type() == cty.NilType
}

// AsFloat reads a number value. Null, unknown and non-number values read as 0.
func AsFloat(v cty.Value) float64 {
	if IsNil(v) || v.IsNull() || !v.IsKnown() {
		return 0
	}
	switch {
	case v.Type() == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case v.Type() == cty.Bool:
		if v.True() {
			return 1
		}
		return 0
	}
	return 0
}

// AsBool reads a bool value; numbers are true when non-zero.
func AsBool(v cty.Value) bool {
	if IsNil(v) || v.IsNull() || !v.IsKnown() {
		return false
	}
	if v.Type() == cty.Bool {
		return v.True()
	}
	return AsFloat(v) != 0
}

// AsString reads a string value, empty for anything else.
func AsString(v cty.Value) string {
	if IsNil(v) || v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return ""
	}
	return v.AsString()
}

// AsVector reads the first three components of a tuple or list value.
// Scalars broadcast.
func AsVector(v cty.Value) [3]float64 {
	c := components(v)
	return [3]float64{c[0], c[1], c[2]}
}

// AsColor reads an RGBA value. Missing alpha reads as 1.
func AsColor(v cty.Value) [4]float64 {
	c := components(v)
	if n := componentCount(v); n >= 0 && n < 4 {
		c[3] = 1
	}
	return c
}

// AsClosure unwraps a shader value.
func AsClosure(v cty.Value) (*Closure, bool) {
	if IsNil(v) || v.IsNull() || !v.IsKnown() || !v.Type().Equals(ShaderType) {
		return nil, false
	}
	c, ok := v.EncapsulatedValue().(*Closure)
	return c, ok
}

func componentCount(v cty.Value) int {
	if IsNil(v) || v.IsNull() || !v.IsKnown() {
		return -1
	}
	ty := v.Type()
	if ty.IsTupleType() || ty.IsListType() {
		return v.LengthInt()
	}
	return -1
}

func components(v cty.Value) [4]float64 {
	var out [4]float64
	n := componentCount(v)
	if n < 0 {
		f := AsFloat(v)
		return [4]float64{f, f, f, f}
	}
	for i, elem := range v.AsValueSlice() {
		if i >= len(out) {
			break
		}
		out[i] = AsFloat(elem)
	}
	return out
}

// Coerce converts v into the value domain of kind. A nil value yields the
// kind's zero value.
func Coerce(kind Kind, v cty.Value) (cty.Value, error) {
	if IsNil(v) {
		return kind.Zero(), nil
	}
	want := kind.CtyType()
	if want == cty.DynamicPseudoType {
		return v, nil
	}
	if v.IsNull() {
		return cty.NullVal(want), nil
	}
	out, err := convert.Convert(v, want)
	if err != nil {
		return cty.NilVal, fmt.Errorf("value of type %s does not fit socket kind %s: %w", v.Type().FriendlyName(), kind, err)
	}
	if kind == KindInt && out.IsKnown() {
		out = Float(math.Trunc(AsFloat(out)))
	}
	return out, nil
}

// KindOf infers the kind of a value carried by a virtual socket. Numbers
// read as float, three component tuples as vectors and four component
// tuples as colors.
func KindOf(v cty.Value) (Kind, bool) {
	if IsNil(v) || v.IsNull() || !v.IsKnown() {
		return 0, false
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return KindBool, true
	case ty == cty.Number:
		return KindFloat, true
	case ty == cty.String:
		return KindString, true
	case ty.Equals(ShaderType):
		return KindShader, true
	case ty.IsTupleType() || ty.IsListType():
		switch v.LengthInt() {
		case 3:
			return KindVector, true
		case 4:
			return KindColor, true
		}
	}
	return 0, false
}
