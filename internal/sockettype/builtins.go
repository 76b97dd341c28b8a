package sockettype

import (
	"github.com/zclconf/go-cty/cty"
)

var builtins = []struct {
	id   string
	kind Kind
	def  cty.Value
}{
	{"bool", KindBool, cty.False},
	{"int", KindInt, cty.Zero},
	{"float", KindFloat, cty.Zero},
	{"factor", KindFloat, Float(0.5)},
	{"angle", KindFloat, cty.Zero},
	{"distance", KindFloat, cty.Zero},
	{"vector", KindVector, Vector(0, 0, 0)},
	{"color", KindColor, Color(0.8, 0.8, 0.8, 1)},
	{"string", KindString, cty.StringVal("")},
	{"shader", KindShader, cty.NilVal},
	{"virtual", KindVirtual, cty.NilVal},
}

// RegisterBuiltins registers the engine's built-in socket types.
func RegisterBuiltins(r *Registry) error {
	for _, b := range builtins {
		if _, err := r.Register(b.id, b.kind, b.def); err != nil {
			return err
		}
	}
	return nil
}

// NewDefault returns a registry holding the built-in types with the default
// conversion table. It is not sealed.
func NewDefault() *Registry {
	r := NewRegistry(DefaultConversions())
	if err := RegisterBuiltins(r); err != nil {
		// Built-ins are static; a failure here is a programming error.
		panic(err)
	}
	return r
}
