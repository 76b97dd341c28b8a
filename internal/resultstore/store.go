// Package resultstore defines the interface for storing and retrieving the
// per-pass derived state of nodes while an evaluation pass runs.
//
// # Why Result Store Exists
//
// The result store separates the **mutable state of one evaluation pass**
// (status, outputs, errors) from the **immutable snapshot** the pass
// evaluates. The snapshot is a frozen copy of a tree; the store is the
// scratch space workers write into while they walk it.
//
// This separation provides several benefits:
//   - **Isolation:** A pass never writes into the live tree. Results reach the
//     tree only through graph.Tree.Commit once the pass finished.
//   - **Concurrency:** Workers finishing different nodes write concurrently
//     without contending on the tree lock.
//   - **Discardability:** A cancelled pass drops its store and nothing leaks.
//
// # Lifecycle and Usage
//
// A store is:
//  1. **Created** fresh for every pass (and for every nested group evaluation)
//  2. **Seeded** with the last committed outputs of Clean nodes
//  3. **Mutated** by workers as nodes run
//  4. **Queried** by workers resolving the inputs of downstream nodes
//  5. **Drained** into a commit map, then discarded
//
// # State Transitions
//
// Nodes follow this lifecycle within a pass:
//
//	Pending → Running → Completed (with outputs) OR Failed (with error)
//	Pending → Skipped (an upstream node failed)
package resultstore

import (
	"context"

	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
)

// Status is a node's position within a single evaluation pass.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Store holds the derived state produced during one evaluation pass.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent reads and writes: workers
// record results for finished nodes while other workers read upstream
// outputs.
//
// See internal/inmemoryresults for the in-memory implementation.
type Store interface {
	// SetStatus records a node's pass status.
	SetStatus(ctx context.Context, h graph.NodeHandle, status Status) error

	// GetStatus returns StatusPending for nodes never touched.
	GetStatus(ctx context.Context, h graph.NodeHandle) (Status, error)

	// SetOutput records the derived state of a completed node.
	SetOutput(ctx context.Context, h graph.NodeHandle, out registry.Derived) error

	// GetOutput returns the derived state of a completed node, or nil when
	// the node has not completed.
	GetOutput(ctx context.Context, h graph.NodeHandle) (registry.Derived, error)

	// SetError records why a node failed or was skipped.
	SetError(ctx context.Context, h graph.NodeHandle, nodeErr error) error

	// GetError returns nil for nodes that did not fail.
	GetError(ctx context.Context, h graph.NodeHandle) (error, error)

	// Completed returns the outputs of every completed node.
	Completed(ctx context.Context) (map[graph.NodeHandle]registry.Derived, error)
}
