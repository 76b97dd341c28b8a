// Package scheduler evaluates node trees: it decides which nodes must be
// recomputed, runs their Update hooks in dependency order on a worker pool,
// and commits the results back to the tree.
//
// # Why Scheduler Exists
//
// A tree only records that nodes are Dirty. Something has to turn that into
// derived state without ever letting a node read an input whose producer
// has not finished. The scheduler owns that job:
//   - **Dependency Safety:** A node's Update runs only after every upstream
//     node finished in the same pass.
//   - **Parallelism:** Independent nodes run concurrently on a bounded pool.
//   - **Isolation:** A pass works on a graph.Snapshot. Edits made while it
//     runs leave their nodes Dirty for the next pass instead of racing it.
//
// # How a Pass Works
//
//  1. graph.Tree.Snapshot captures the tree and moves Dirty nodes to Evaluating.
//  2. Clean nodes seed a fresh resultstore.Store with their committed outputs.
//  3. Every Evaluating node gets an atomic counter of unfinished upstream
//     nodes. Nodes at zero go onto the ready queue.
//  4. Workers take nodes off the queue, resolve their inputs (links, socket
//     defaults, implicit conversions) and call Update. A finished node
//     decrements its dependents and queues those reaching zero.
//  5. A failed node records its error and every node downstream of it is
//     skipped. Independent branches keep running.
//  6. graph.Tree.Commit stores the results. Cancelling the context makes the
//     pass call graph.Tree.Abort instead.
//
// With a single worker the pass runs sequentially in TopologicalOrder, which
// makes evaluation order reproducible.
//
// # Groups
//
// A group node's snapshot carries a capture of the tree it wraps. Its
// Update hook calls UpdateInput.Subgraph, which runs a nested pass over that
// capture: the group node's input values feed the Group Input node, and the
// inputs of the first Group Output node become the group node's outputs.
// Nested passes evaluate every node and never commit.
package scheduler
