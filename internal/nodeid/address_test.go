package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    *Address
		expectError bool
	}{
		{
			name:     "node",
			input:    "Material/Group",
			expected: &Address{Tree: "Material", Node: "Group"},
		},
		{
			name:     "socket with dotted node name",
			input:    "Material/Math.001/Value",
			expected: &Address{Tree: "Material", Node: "Math.001", Socket: "Value"},
		},
		{
			name:     "spaces are kept",
			input:    "My Material/Group Output/Result",
			expected: &Address{Tree: "My Material", Node: "Group Output", Socket: "Result"},
		},
		{name: "empty", input: "", expectError: true},
		{name: "tree only", input: "Material", expectError: true},
		{name: "too deep", input: "a/b/c/d", expectError: true},
		{name: "empty segment", input: "Material//Value", expectError: true},
		{name: "trailing slash", input: "Material/Group/", expectError: true},
		{name: "dot segment", input: "Material/..", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := Parse(tc.input)
			if tc.expectError {
				require.Error(t, err)
				assert.Nil(t, addr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, addr)
			assert.Equal(t, tc.input, addr.String(), "canonical form round-trips")
		})
	}
}

func TestAddress_Equal(t *testing.T) {
	a := &Address{Tree: "T", Node: "N", Socket: "S"}
	assert.True(t, a.Equal(&Address{Tree: "T", Node: "N", Socket: "S"}))
	assert.False(t, a.Equal(&Address{Tree: "T", Node: "N"}))
	assert.False(t, a.Equal(nil))

	var none *Address
	assert.True(t, none.Equal(nil))
	assert.Equal(t, "", none.String())
}
