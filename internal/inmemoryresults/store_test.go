package inmemoryresults

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/resultstore"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// testNodes returns n live node handles from a throwaway tree.
func testNodes(t *testing.T, n int) []graph.NodeHandle {
	t.Helper()
	reg := registry.New(sockettype.NewDefault())
	reg.MustRegisterNodeType(&registry.NodeType{ID: "Value"})
	reg.Seal()
	tr := graph.NewTree(context.Background(), reg, "T", "shader")
	out := make([]graph.NodeHandle, n)
	for i := range out {
		h, err := tr.AddNode("Value")
		require.NoError(t, err)
		out[i] = h
	}
	return out
}

func TestSetAndGetStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	h := testNodes(t, 1)[0]

	status, err := s.GetStatus(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, resultstore.StatusPending, status)

	require.NoError(t, s.SetStatus(ctx, h, resultstore.StatusRunning))
	status, err = s.GetStatus(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, resultstore.StatusRunning, status)
	assert.Equal(t, "running", status.String())
}

func TestSetAndGetOutput(t *testing.T) {
	s := New()
	ctx := context.Background()
	h := testNodes(t, 1)[0]

	out, err := s.GetOutput(ctx, h)
	require.NoError(t, err)
	assert.Nil(t, out)

	want := registry.Derived{"Value": cty.NumberIntVal(4)}
	require.NoError(t, s.SetOutput(ctx, h, want))
	out, err = s.GetOutput(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestSetAndGetError(t *testing.T) {
	s := New()
	ctx := context.Background()
	h := testNodes(t, 1)[0]

	got, err := s.GetError(ctx, h)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := errors.New("division by zero")
	require.NoError(t, s.SetError(ctx, h, want))
	got, err = s.GetError(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCompleted(t *testing.T) {
	s := New()
	ctx := context.Background()
	hs := testNodes(t, 3)

	require.NoError(t, s.SetStatus(ctx, hs[0], resultstore.StatusCompleted))
	require.NoError(t, s.SetOutput(ctx, hs[0], registry.Derived{}))
	require.NoError(t, s.SetStatus(ctx, hs[1], resultstore.StatusFailed))
	require.NoError(t, s.SetOutput(ctx, hs[1], registry.Derived{}))
	require.NoError(t, s.SetStatus(ctx, hs[2], resultstore.StatusRunning))

	done, err := s.Completed(ctx)
	require.NoError(t, err)
	assert.Len(t, done, 1)
	assert.Contains(t, done, hs[0])
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	hs := testNodes(t, 50)

	var wg sync.WaitGroup
	for i, h := range hs {
		wg.Add(1)
		go func(i int, h graph.NodeHandle) {
			defer wg.Done()
			_ = s.SetStatus(ctx, h, resultstore.StatusRunning)
			_ = s.SetOutput(ctx, h, registry.Derived{"Value": cty.NumberIntVal(int64(i))})
			if i%2 == 0 {
				_ = s.SetError(ctx, h, fmt.Errorf("node %d", i))
				_ = s.SetStatus(ctx, h, resultstore.StatusFailed)
			} else {
				_ = s.SetStatus(ctx, h, resultstore.StatusCompleted)
			}
		}(i, h)
	}
	wg.Wait()

	done, err := s.Completed(ctx)
	require.NoError(t, err)
	assert.Len(t, done, 25)
	for i, h := range hs {
		status, _ := s.GetStatus(ctx, h)
		if i%2 == 0 {
			assert.Equal(t, resultstore.StatusFailed, status)
		} else {
			assert.Equal(t, resultstore.StatusCompleted, status)
		}
	}
}
