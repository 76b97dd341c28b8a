package sockettype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestRegister(t *testing.T) {
	t.Run("coerces default into kind", func(t *testing.T) {
		r := NewRegistry(nil)
		typ, err := r.Register("v", KindVector, cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2), cty.NumberIntVal(3)}))
		require.NoError(t, err)
		assert.Equal(t, [3]float64{1, 2, 3}, AsVector(typ.Default()))
		assert.Equal(t, KindVector, typ.Kind())
		assert.Equal(t, "v", typ.ID())
	})

	t.Run("nil default selects zero", func(t *testing.T) {
		r := NewRegistry(nil)
		typ, err := r.Register("c", KindColor, cty.NilVal)
		require.NoError(t, err)
		assert.Equal(t, [4]float64{0, 0, 0, 1}, AsColor(typ.Default()))
	})

	t.Run("int default truncates", func(t *testing.T) {
		r := NewRegistry(nil)
		typ, err := r.Register("i", KindInt, cty.NumberFloatVal(2.7))
		require.NoError(t, err)
		assert.Equal(t, 2.0, AsFloat(typ.Default()))
	})

	t.Run("duplicate", func(t *testing.T) {
		r := NewRegistry(nil)
		_, err := r.Register("float", KindFloat, cty.NilVal)
		require.NoError(t, err)
		_, err = r.Register("float", KindInt, cty.NilVal)
		assert.ErrorIs(t, err, ErrDuplicateType)
		assert.Len(t, r.Types(), 1)
	})

	t.Run("sealed", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Seal()
		_, err := r.Register("float", KindFloat, cty.NilVal)
		assert.ErrorIs(t, err, ErrSealed)
		assert.True(t, r.Sealed())
	})

	t.Run("default of wrong domain", func(t *testing.T) {
		r := NewRegistry(nil)
		_, err := r.Register("b", KindBool, cty.StringVal("not a bool"))
		assert.Error(t, err)
	})
}

func TestResolve(t *testing.T) {
	r := NewDefault()
	typ, err := r.Resolve("color")
	require.NoError(t, err)
	assert.Equal(t, KindColor, typ.Kind())

	_, err = r.Resolve("quaternion")
	assert.ErrorIs(t, err, ErrUnknownSocketType)
}

func TestIsCompatible(t *testing.T) {
	r := NewDefault()
	get := func(id string) *Type {
		typ, ok := r.Lookup(id)
		require.True(t, ok, id)
		return typ
	}

	tests := []struct {
		from, to string
		want     bool
	}{
		{"float", "float", true},
		{"float", "factor", true},
		{"float", "vector", true},
		{"float", "color", true},
		{"color", "float", true},
		{"vector", "color", true},
		{"bool", "int", true},
		{"shader", "shader", true},
		{"shader", "float", false},
		{"float", "shader", false},
		{"string", "float", false},
		{"float", "string", false},
		{"virtual", "shader", true},
		{"color", "virtual", true},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsCompatible(get(tt.from), get(tt.to)))
		})
	}

	assert.False(t, r.IsCompatible(nil, get("float")))
}

func TestIsCompatible_SwappedPolicy(t *testing.T) {
	r := NewRegistry(NewConversions())
	require.NoError(t, RegisterBuiltins(r))
	f, _ := r.Lookup("float")
	v, _ := r.Lookup("vector")
	assert.False(t, r.IsCompatible(f, v), "empty table allows only identical kinds")

	r.Conversions().Allow(KindFloat, KindVector, func(val cty.Value) (cty.Value, error) {
		return Vector(AsFloat(val), 0, 0), nil
	})
	assert.True(t, r.IsCompatible(f, v))
	out, err := r.Convert(Float(3), f, v)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{3, 0, 0}, AsVector(out))
}

func TestConvert(t *testing.T) {
	r := NewDefault()
	get := func(id string) *Type {
		typ, _ := r.Lookup(id)
		return typ
	}

	out, err := r.Convert(Float(0.25), get("float"), get("vector"))
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0.25, 0.25, 0.25}, AsVector(out))

	out, err = r.Convert(Color(1, 1, 1, 0.5), get("color"), get("float"))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, AsFloat(out), 1e-9)

	out, err = r.Convert(Vector(1, 2, 3), get("vector"), get("color"))
	require.NoError(t, err)
	assert.Equal(t, [4]float64{1, 2, 3, 1}, AsColor(out))

	out, err = r.Convert(cty.True, get("bool"), get("float"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, AsFloat(out))

	_, err = r.Convert(cty.StringVal("x"), get("string"), get("float"))
	assert.Error(t, err)
}

func TestShaderValues(t *testing.T) {
	c := &Closure{Kind: "principled"}
	v := Shader(c)
	got, ok := AsClosure(v)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = AsClosure(cty.NullVal(ShaderType))
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Color ")
	require.NoError(t, err)
	assert.Equal(t, KindColor, k)
	assert.Equal(t, "color", k.String())

	_, err = ParseKind("matrix")
	assert.Error(t, err)
}
