package shader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/scheduler"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

func floats(kv ...any) map[string]cty.Value {
	out := make(map[string]cty.Value, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out[kv[i].(string)] = sockettype.Float(kv[i+1].(float64))
	}
	return out
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	ctx := context.Background()
	r := registry.New(sockettype.NewDefault())
	r.RegisterModules(ctx, &Module{})
	require.NoError(t, r.LoadCatalogs(ctx, "../../catalogs/shader"))
	require.NoError(t, r.Validate(ctx))
	r.Seal()
	return r
}

func TestUpdateMath(t *testing.T) {
	testCases := []struct {
		op    string
		a, b  float64
		clamp bool
		want  float64
	}{
		{op: "ADD", a: 1, b: 2, want: 3},
		{op: "SUBTRACT", a: 1, b: 2, want: -1},
		{op: "MULTIPLY", a: 3, b: 4, want: 12},
		{op: "DIVIDE", a: 1, b: 4, want: 0.25},
		{op: "DIVIDE", a: 1, b: 0, want: 0},
		{op: "POWER", a: 2, b: 3, want: 8},
		{op: "MODULO", a: 7, b: 3, want: 1},
		{op: "MODULO", a: 7, b: 0, want: 0},
		{op: "GREATER_THAN", a: 2, b: 1, want: 1},
		{op: "LESS_THAN", a: 2, b: 1, want: 0},
		{op: "SQRT", a: -4, want: 0},
		{op: "ADD", a: 1, b: 2, clamp: true, want: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.op, func(t *testing.T) {
			in := &registry.UpdateInput{
				Params: registry.Params{"operation": cty.StringVal(tc.op), "use_clamp": cty.BoolVal(tc.clamp)},
				Inputs: floats("Value", tc.a, "Value_001", tc.b),
			}
			out, err := UpdateMath(context.Background(), in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, sockettype.AsFloat(out["Value"]), 1e-9)
		})
	}

	t.Run("unknown operation", func(t *testing.T) {
		in := &registry.UpdateInput{Params: registry.Params{"operation": cty.StringVal("ARCTAN3")}}
		_, err := UpdateMath(context.Background(), in)
		assert.ErrorContains(t, err, "ARCTAN3")
	})
}

func TestDescribeMath(t *testing.T) {
	assert.Equal(t, "Add", describeMath(registry.Params{}))
	assert.Equal(t, "Greater Than", describeMath(registry.Params{"operation": cty.StringVal("GREATER_THAN")}))
}

func TestUpdateVectorMath(t *testing.T) {
	in := func(op string) *registry.UpdateInput {
		return &registry.UpdateInput{
			Params: registry.Params{"operation": cty.StringVal(op)},
			Inputs: map[string]cty.Value{
				"Vector":     sockettype.Vector(1, 0, 0),
				"Vector_001": sockettype.Vector(0, 1, 0),
				"Scale":      sockettype.Float(2),
			},
		}
	}
	ctx := context.Background()

	out, err := UpdateVectorMath(ctx, in("CROSS_PRODUCT"))
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0, 0, 1}, sockettype.AsVector(out["Vector"]))

	out, err = UpdateVectorMath(ctx, in("SCALE"))
	require.NoError(t, err)
	assert.Equal(t, [3]float64{2, 0, 0}, sockettype.AsVector(out["Vector"]))

	out, err = UpdateVectorMath(ctx, in("DOT_PRODUCT"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, sockettype.AsFloat(out["Value"]))

	_, err = UpdateVectorMath(ctx, in("REFLECT_TWICE"))
	assert.Error(t, err)
}

func TestUpdateMix(t *testing.T) {
	in := &registry.UpdateInput{
		Params: registry.Params{"blend_type": cty.StringVal("MIX")},
		Inputs: map[string]cty.Value{
			"Factor": sockettype.Float(0.25),
			"A":      sockettype.Color(0, 0, 0, 1),
			"B":      sockettype.Color(1, 1, 1, 0),
		},
	}
	out, err := UpdateMix(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, [4]float64{0.25, 0.25, 0.25, 1}, sockettype.AsColor(out["Result"]))

	in.Params["blend_type"] = cty.StringVal("SCREEN_DOOR")
	_, err = UpdateMix(context.Background(), in)
	assert.Error(t, err)
}

func TestUpdateClampAndMapRange(t *testing.T) {
	ctx := context.Background()

	out, err := UpdateClamp(ctx, &registry.UpdateInput{Inputs: floats("Value", 5.0, "Min", 0.0, "Max", 2.0)})
	require.NoError(t, err)
	assert.Equal(t, 2.0, sockettype.AsFloat(out["Result"]))

	rng := &registry.UpdateInput{
		Params: registry.Params{"clamp_type": cty.StringVal("RANGE")},
		Inputs: floats("Value", 5.0, "Min", 3.0, "Max", 1.0),
	}
	out, err = UpdateClamp(ctx, rng)
	require.NoError(t, err)
	assert.Equal(t, 3.0, sockettype.AsFloat(out["Result"]))

	mr := &registry.UpdateInput{
		Params: registry.Params{"clamp": cty.False},
		Inputs: floats("Value", 15.0, "From_Min", 0.0, "From_Max", 10.0, "To_Min", 0.0, "To_Max", 100.0),
	}
	out, err = UpdateMapRange(ctx, mr)
	require.NoError(t, err)
	assert.Equal(t, 150.0, sockettype.AsFloat(out["Result"]))

	mr.Params["clamp"] = cty.True
	out, err = UpdateMapRange(ctx, mr)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sockettype.AsFloat(out["Result"]))
}

func TestCatalogNodeTypes(t *testing.T) {
	reg := newRegistry(t)

	nt, ok := reg.NodeType("ShaderNodeClamp")
	require.True(t, ok)
	assert.Equal(t, "Clamp", nt.Describe(registry.Params{}))
	assert.Contains(t, nt.Source, "clamp.hcl")

	_, ok = reg.NodeType("ShaderNodeMapRange")
	require.True(t, ok)
}

func TestMaterialTree(t *testing.T) {
	reg := newRegistry(t)
	tr := graph.NewTree(context.Background(), reg, "Material", TreeKind)

	add := func(typeID string) graph.NodeHandle {
		h, err := tr.AddNode(typeID)
		require.NoError(t, err)
		return h
	}
	link := func(from graph.NodeHandle, fromID string, to graph.NodeHandle, toID string) {
		fs, ok := tr.SocketByIdentifier(from, graph.Output, fromID)
		require.True(t, ok)
		ts, ok := tr.SocketByIdentifier(to, graph.Input, toID)
		require.True(t, ok)
		_, err := tr.AddLink(fs, ts)
		require.NoError(t, err)
	}

	val := add("ShaderNodeValue")
	require.NoError(t, tr.SetParam(val, "value", sockettype.Float(4)))
	clamp := add("ShaderNodeClamp")
	bsdf := add("ShaderNodeBsdfPrincipled")
	out := add("ShaderNodeOutputMaterial")
	link(val, "Value", clamp, "Value")
	link(clamp, "Result", bsdf, "Roughness")
	link(bsdf, "BSDF", out, "Surface")

	_, err := scheduler.New(tr, scheduler.WithWorkers(2)).Run(context.Background())
	require.NoError(t, err)

	d, ok := tr.Derived(clamp)
	require.True(t, ok)
	assert.Equal(t, 1.0, sockettype.AsFloat(d["Result"]))

	d, ok = tr.Derived(out)
	require.True(t, ok)
	c, ok := sockettype.AsClosure(d["Surface"])
	require.True(t, ok)
	assert.Equal(t, "principled_bsdf", c.Kind)
	assert.Equal(t, 1.0, sockettype.AsFloat(c.Params["Roughness"]))

	p, ok := tr.Param(clamp, "clamp_type")
	require.True(t, ok)
	assert.Equal(t, "MINMAX", p.AsString())
}
