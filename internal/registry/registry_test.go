package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

const clampCatalog = `
socket_type "percentage" {
  kind    = "float"
  default = 50
}

node_type "ShaderNodeClamp" {
  label       = "Clamp"
  description = "Clamps a value between a minimum and a maximum."
  tree_kinds  = ["shader"]

  input "Value" {
    type = "float"
  }
  input "Min" {
    type    = "float"
    default = 0
  }
  input "Max" {
    type    = "float"
    default = 1
    min     = 0
  }
  output "Result" {
    type = "float"
  }

  lifecycle {
    on_update = "clamp"
    describe  = "clamp"
  }
}
`

func newTestRegistry() *Registry {
	return New(sockettype.NewDefault())
}

func TestRegisterNodeType(t *testing.T) {
	r := newTestRegistry()

	require.NoError(t, r.RegisterNodeType(&NodeType{ID: "TestNode"}))

	nt, ok := r.NodeType("TestNode")
	require.True(t, ok)
	assert.Equal(t, "go", nt.Source)

	err := r.RegisterNodeType(&NodeType{ID: "TestNode"})
	assert.ErrorIs(t, err, ErrDuplicateNodeType)

	assert.Error(t, r.RegisterNodeType(&NodeType{}))

	r.Seal()
	err = r.RegisterNodeType(&NodeType{ID: "Late"})
	assert.ErrorIs(t, err, ErrSealed)
	_, err = r.Sockets.Register("late", sockettype.KindFloat, cty.NilVal)
	assert.ErrorIs(t, err, sockettype.ErrSealed)
}

func TestRegisterHooks_PanicsOnDuplicate(t *testing.T) {
	r := newTestRegistry()
	r.RegisterHooks("noop", Hooks{})
	assert.Panics(t, func() { r.RegisterHooks("noop", Hooks{}) })
}

func TestNodeTypesKeepsRegistrationOrder(t *testing.T) {
	r := newTestRegistry()
	for _, id := range []string{"C", "A", "B"} {
		r.MustRegisterNodeType(&NodeType{ID: id})
	}
	var ids []string
	for _, nt := range r.NodeTypes() {
		ids = append(ids, nt.ID)
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)
}

func TestPolls(t *testing.T) {
	nt := &NodeType{ID: "X", TreeKinds: []string{"shader"}}
	assert.True(t, nt.Polls("shader"))
	assert.False(t, nt.Polls("compositor"))
	assert.True(t, (&NodeType{ID: "Y"}).Polls("anything"))
}

func TestEffectiveHooks(t *testing.T) {
	nt := &NodeType{ID: "X"}
	h := nt.Effective()
	require.NotNil(t, h.Update)
	require.NotNil(t, h.ValidateLink)
	require.NotNil(t, h.Copy)
	assert.Nil(t, h.Init)

	src := Params{"k": cty.NumberIntVal(1)}
	dup := h.Copy(src)
	dup["k"] = cty.NumberIntVal(2)
	assert.True(t, src["k"].RawEquals(cty.NumberIntVal(1)))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "X", (&NodeType{ID: "X"}).Describe(nil))
	assert.Equal(t, "Ex", (&NodeType{ID: "X", Label: "Ex"}).Describe(nil))

	nt := &NodeType{ID: "X", Hooks: Hooks{Describe: func(p Params) string {
		return "op " + p["op"].AsString()
	}}}
	assert.Equal(t, "op add", nt.Describe(Params{"op": cty.StringVal("add")}))
}

func TestLoadCatalog(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	r.RegisterHooks("clamp", Hooks{
		Update:   DefaultUpdate,
		Describe: func(Params) string { return "Clamp!" },
	})

	require.NoError(t, r.LoadCatalog(ctx, "clamp.hcl", []byte(clampCatalog)))

	st, ok := r.Sockets.Lookup("percentage")
	require.True(t, ok)
	assert.Equal(t, sockettype.KindFloat, st.Kind())
	assert.Equal(t, 50.0, sockettype.AsFloat(st.Default()))

	nt, ok := r.NodeType("ShaderNodeClamp")
	require.True(t, ok)
	assert.Equal(t, "clamp.hcl", nt.Source)
	assert.Equal(t, []string{"shader"}, nt.TreeKinds)
	require.Len(t, nt.Inputs, 3)
	require.Len(t, nt.Outputs, 1)
	assert.Equal(t, "Max", nt.Inputs[2].Identifier)
	require.NotNil(t, nt.Inputs[2].Min)
	assert.Equal(t, 0.0, *nt.Inputs[2].Min)
	assert.True(t, sockettype.IsNil(nt.Inputs[0].Default))
	assert.NotNil(t, nt.Hooks.Update)
	assert.Equal(t, "Clamp!", nt.Describe(nil))

	require.NoError(t, r.Validate(ctx))
}

func TestLoadCatalog_ParseError(t *testing.T) {
	r := newTestRegistry()
	err := r.LoadCatalog(context.Background(), "broken.hcl", []byte(`node_type "X" {`))
	assert.Error(t, err)
}

func TestLoadCatalogs_Discovery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	nested := filepath.Join(dir, "shader", "extra")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "clamp.hcl"), []byte(clampCatalog), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	r := newTestRegistry()
	r.RegisterHooks("clamp", Hooks{Update: DefaultUpdate, Describe: func(Params) string { return "" }})
	require.NoError(t, r.LoadCatalogs(ctx, dir))

	_, ok := r.NodeType("ShaderNodeClamp")
	assert.True(t, ok)

	t.Run("missing root is skipped", func(t *testing.T) {
		assert.NoError(t, newTestRegistry().LoadCatalogs(ctx, filepath.Join(dir, "nope")))
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("unbound hook set", func(t *testing.T) {
		r := newTestRegistry()
		require.NoError(t, r.LoadCatalog(ctx, "clamp.hcl", []byte(clampCatalog)))
		err := r.Validate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown hook set 'clamp'")
	})

	t.Run("hook set missing event", func(t *testing.T) {
		r := newTestRegistry()
		r.RegisterHooks("clamp", Hooks{Update: DefaultUpdate})
		require.NoError(t, r.LoadCatalog(ctx, "clamp.hcl", []byte(clampCatalog)))
		err := r.Validate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not implement describe")
	})

	t.Run("template problems", func(t *testing.T) {
		lo, hi := 2.0, 1.0
		r := newTestRegistry()
		r.MustRegisterNodeType(&NodeType{
			ID: "Broken",
			Inputs: []SocketTemplate{
				{Identifier: "A", Type: "float"},
				{Identifier: "A", Type: "float"},
				{Identifier: "B", Type: "no_such_type"},
				{Identifier: "C", Type: "float", Default: cty.StringVal("not a number")},
				{Identifier: "D", Type: "float", Min: &lo, Max: &hi},
			},
		})
		err := r.Validate(ctx)
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "duplicate input socket identifier 'A'")
		assert.Contains(t, msg, "unknown socket type 'no_such_type'")
		assert.Contains(t, msg, "input 'C'")
		assert.Contains(t, msg, "min 2 exceeds max 1")
	})
}
