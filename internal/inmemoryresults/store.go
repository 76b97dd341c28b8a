// Package inmemoryresults provides an ephemeral, thread-safe, in-memory
// implementation of the resultstore.Store interface.
//
// # Concurrency Model
//
// The store uses sync.Map rather than a mutex-guarded map:
//   - **Write-Heavy Workload:** Workers constantly record statuses and outputs
//   - **Independent Keys:** Each node's state is independent of every other node's
//   - **Stable Key Space:** All nodes of a pass are known when it starts
package inmemoryresults

import (
	"context"
	"sync"

	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/resultstore"
)

// Store is an in-memory resultstore.Store. The zero value is ready to use.
type Store struct {
	states  sync.Map // graph.NodeHandle -> resultstore.Status
	outputs sync.Map // graph.NodeHandle -> registry.Derived
	errors  sync.Map // graph.NodeHandle -> error
}

// New creates an empty store.
func New() resultstore.Store {
	return &Store{}
}

// SetStatus records a node's pass status.
func (s *Store) SetStatus(ctx context.Context, h graph.NodeHandle, status resultstore.Status) error {
	s.states.Store(h, status)
	return nil
}

// GetStatus returns StatusPending if no status has been set.
func (s *Store) GetStatus(ctx context.Context, h graph.NodeHandle) (resultstore.Status, error) {
	status, ok := s.states.Load(h)
	if !ok {
		return resultstore.StatusPending, nil
	}
	return status.(resultstore.Status), nil
}

// SetOutput records the derived state of a completed node.
func (s *Store) SetOutput(ctx context.Context, h graph.NodeHandle, out registry.Derived) error {
	s.outputs.Store(h, out)
	return nil
}

// GetOutput returns nil if the node has no recorded output.
func (s *Store) GetOutput(ctx context.Context, h graph.NodeHandle) (registry.Derived, error) {
	out, ok := s.outputs.Load(h)
	if !ok {
		return nil, nil
	}
	return out.(registry.Derived), nil
}

// SetError records the failure of a node.
func (s *Store) SetError(ctx context.Context, h graph.NodeHandle, nodeErr error) error {
	s.errors.Store(h, nodeErr)
	return nil
}

// GetError returns the recorded failure of a node.
func (s *Store) GetError(ctx context.Context, h graph.NodeHandle) (error, error) {
	err, ok := s.errors.Load(h)
	if !ok {
		return nil, nil
	}
	return err.(error), nil
}

// Completed returns the outputs of every node whose status is Completed.
func (s *Store) Completed(ctx context.Context) (map[graph.NodeHandle]registry.Derived, error) {
	out := make(map[graph.NodeHandle]registry.Derived)
	s.states.Range(func(k, v any) bool {
		if v.(resultstore.Status) != resultstore.StatusCompleted {
			return true
		}
		h := k.(graph.NodeHandle)
		if d, ok := s.outputs.Load(h); ok {
			out[h] = d.(registry.Derived)
		}
		return true
	})
	return out, nil
}
