// Package graph implements node trees: typed nodes, their sockets, the links
// between them, the tree's own interface and the nesting of trees inside
// group nodes.
//
// # Why Graph Exists
//
// Every authoring surface of the application (shading, compositing,
// procedural textures) is a directed graph of typed sockets. The rules that
// keep such a graph sound are the same for all of them, so they live here
// once:
//   - **Link validity:** both endpoints belong to the same tree, the socket
//     types are compatible, no cycle is formed and every input has at most
//     one incoming link.
//   - **Ownership:** a node owns its sockets; removing a node removes its
//     sockets and every incident link.
//   - **Group sync:** a group node's sockets mirror the interface of the
//     tree it wraps, in order, type and name.
//   - **Dirty tracking:** edits mark the edited node and everything
//     downstream Dirty so the scheduler knows what to recompute.
//
// # Storage
//
// Nodes, sockets, links and interface sockets are stored in generational
// arenas. Callers hold handles (NodeHandle, SocketHandle, LinkHandle,
// InterfaceHandle) that embed the owning tree's id, a slot index and a
// generation. Removing an element bumps its slot's generation, so a handle
// kept after removal is detected as stale by a single comparison rather than
// by chasing pointers. Handles carrying another tree's id are rejected with
// ErrCrossTreeEndpoint.
//
// # Concurrency
//
// A Tree is edited from one goroutine at a time. Its state is guarded by a
// mutex so that the evaluation side (Snapshot, Commit, Abort and the read
// accessors) can run on worker goroutines. A tree never holds its own lock
// while calling into another tree: cross-tree work (resyncing group nodes in
// outer trees, dirtying their users) is queued during an edit and flushed
// after the lock is released.
//
// # Node Types
//
// The graph never switches on concrete node kinds. Behaviour that differs
// per node type is looked up in the registry by type identifier and invoked
// through registry.Hooks. The only structural roles the graph knows about
// are group, group input, group output, frame and reroute.
//
// # Unknown Node Types
//
// Documents written by a newer version may reference node types this process
// never registered. They load through AddUnknownNode as placeholder nodes
// that keep their raw sockets and parameters, keep their persisted links and
// reject every new link. Re-exporting such a tree reproduces the original
// fields.
package graph
