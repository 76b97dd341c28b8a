package texture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

func TestUpdateChecker(t *testing.T) {
	red, white := sockettype.Color(1, 0, 0, 1), sockettype.Color(1, 1, 1, 1)
	testCases := []struct {
		name string
		at   cty.Value
		want cty.Value
	}{
		{"origin", sockettype.Vector(0, 0, 0), red},
		{"one cell over", sockettype.Vector(0.6, 0, 0), white},
		{"diagonal", sockettype.Vector(0.6, 0.6, 0), red},
		{"negative", sockettype.Vector(-0.1, 0, 0), white},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := &registry.UpdateInput{Inputs: map[string]cty.Value{
				"Vector": tc.at,
				"Color1": red,
				"Color2": white,
				"Size":   sockettype.Float(0.5),
			}}
			out, err := UpdateChecker(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, sockettype.AsColor(tc.want), sockettype.AsColor(out["Color"]))
		})
	}
}

func TestRegister(t *testing.T) {
	reg := registry.New(sockettype.NewDefault())
	reg.RegisterModules(context.Background(), &Module{})
	require.NoError(t, reg.Validate(context.Background()))

	nt, ok := reg.NodeType("TextureNodeChecker")
	require.True(t, ok)
	assert.True(t, nt.Polls(TreeKind))
	assert.False(t, nt.Polls("shader"))
}
