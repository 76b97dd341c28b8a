package app

import (
	"fmt"
	"strconv"

	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// formatValue renders a socket value for terminal output.
func formatValue(v cty.Value) string {
	kind, ok := sockettype.KindOf(v)
	if !ok {
		return "-"
	}
	switch kind {
	case sockettype.KindBool:
		return strconv.FormatBool(sockettype.AsBool(v))
	case sockettype.KindString:
		return strconv.Quote(sockettype.AsString(v))
	case sockettype.KindShader:
		if c, ok := sockettype.AsClosure(v); ok {
			return "closure(" + c.Kind + ")"
		}
		return "closure"
	case sockettype.KindVector:
		x := sockettype.AsVector(v)
		return fmt.Sprintf("(%g, %g, %g)", x[0], x[1], x[2])
	case sockettype.KindColor:
		c := sockettype.AsColor(v)
		return fmt.Sprintf("(%g, %g, %g, %g)", c[0], c[1], c[2], c[3])
	default:
		return strconv.FormatFloat(sockettype.AsFloat(v), 'g', -1, 64)
	}
}
