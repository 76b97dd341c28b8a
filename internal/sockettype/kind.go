package sockettype

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Kind is the value domain of a socket type.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindVector
	KindColor
	KindString
	KindShader
	KindVirtual
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindVector:  "vector",
	KindColor:   "color",
	KindString:  "string",
	KindShader:  "shader",
	KindVirtual: "virtual",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a kind name (as written in catalogs) to its Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown socket kind %q", name)
}

// Closure is the opaque handle carried by shader sockets.
type Closure struct {
	Kind   string
	Params map[string]cty.Value
}

// ShaderType is the cty type of shader socket values.
var ShaderType = cty.Capsule("shader", reflect.TypeOf(Closure{}))

var (
	vectorType = cty.Tuple([]cty.Type{cty.Number, cty.Number, cty.Number})
	colorType  = cty.Tuple([]cty.Type{cty.Number, cty.Number, cty.Number, cty.Number})
)

// CtyType returns the cty type used to hold values of this kind.
func (k Kind) CtyType() cty.Type {
	switch k {
	case KindBool:
		return cty.Bool
	case KindInt, KindFloat:
		return cty.Number
	case KindVector:
		return vectorType
	case KindColor:
		return colorType
	case KindString:
		return cty.String
	case KindShader:
		return ShaderType
	default:
		return cty.DynamicPseudoType
	}
}

// Zero returns the value used when neither a socket nor its type supplies a default.
func (k Kind) Zero() cty.Value {
	switch k {
	case KindBool:
		return cty.False
	case KindInt, KindFloat:
		return cty.Zero
	case KindVector:
		return Vector(0, 0, 0)
	case KindColor:
		return Color(0, 0, 0, 1)
	case KindString:
		return cty.StringVal("")
	case KindShader:
		return cty.NullVal(ShaderType)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}

// Numeric reports whether min/max bounds make sense for the kind.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}
