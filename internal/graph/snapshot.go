package graph

import (
	"errors"
	"strconv"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// markDirtyLocked marks start and every node reachable from it Dirty and
// stamps them with the version the current edit will produce.
func (t *Tree) markDirtyLocked(start NodeHandle) {
	ver := t.version + 1
	seen := make(map[NodeHandle]bool)
	stack := []NodeHandle{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		n, ok := t.nodes.get(cur.handle)
		if !ok {
			continue
		}
		n.state = StateDirty
		n.version = ver
		for _, sh := range n.outputs {
			for _, lh := range t.mustSocket(sh).links {
				if l, ok := t.links.get(lh.handle); ok {
					stack = append(stack, l.toNode)
				}
			}
		}
	}
	t.pend.dirty = true
}

// markNodeDirty dirties a node from outside an edit, used when a tree
// wrapped by the node changed.
func (t *Tree) markNodeDirty(h NodeHandle) {
	_ = t.edit(func() error {
		if _, err := t.lookupNode(h); err != nil {
			return errNoChange
		}
		t.markDirtyLocked(h)
		return nil
	})
}

// TagForUpdate marks every node Dirty.
func (t *Tree) TagForUpdate() {
	_ = t.edit(func() error {
		for _, h := range t.nodeOrder {
			t.markDirtyLocked(h)
		}
		t.emitLocked(EventTagged, "", "")
		return nil
	})
}

// DirtyNodes returns the nodes that are not Clean, in insertion order.
func (t *Tree) DirtyNodes() []NodeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []NodeHandle
	for _, h := range t.nodeOrder {
		if t.mustNode(h).state != StateClean {
			out = append(out, h)
		}
	}
	return out
}

// Snapshot is an immutable capture of a tree's topology, parameters and
// socket values taken at the start of an evaluation pass. Later edits to
// the live tree do not affect it.
type Snapshot struct {
	TreeID  TreeID
	Name    string
	Kind    string
	Version uint64
	// Nodes are in insertion order.
	Nodes   []SnapshotNode
	Links   []SnapshotLink
	Inputs  []InterfaceSocket
	Outputs []InterfaceSocket
	Sockets *sockettype.Registry

	index map[NodeHandle]int
}

// SnapshotNode is a node as captured by a Snapshot.
type SnapshotNode struct {
	Handle  NodeHandle
	Name    string
	TypeID  string
	Role    registry.Role
	Update  registry.UpdateFunc
	Params  registry.Params
	Inputs  []SnapshotSocket
	Outputs []SnapshotSocket
	Unknown bool
	// Dirty nodes must be evaluated by the pass; the rest carry the
	// Derived state of their last committed evaluation.
	Dirty   bool
	Version uint64
	Derived registry.Derived
	// Group is the capture of the wrapped tree for group nodes.
	Group *Snapshot
}

// SnapshotSocket is a socket as captured by a Snapshot.
type SnapshotSocket struct {
	Handle     SocketHandle
	Identifier string
	Name       string
	Type       *sockettype.Type
	Default    cty.Value
	Enabled    bool
	Extension  bool
	// Link indexes Snapshot.Links for linked inputs, -1 otherwise.
	Link int
}

// SnapshotLink is a link as captured by a Snapshot.
type SnapshotLink struct {
	Handle     LinkHandle
	FromNode   NodeHandle
	FromSocket string
	FromType   *sockettype.Type
	ToNode     NodeHandle
	ToSocket   string
	ToType     *sockettype.Type
}

// Node returns the captured node for h.
func (s *Snapshot) Node(h NodeHandle) (*SnapshotNode, bool) {
	i, ok := s.index[h]
	if !ok {
		return nil, false
	}
	return &s.Nodes[i], true
}

// Upstream returns the distinct nodes feeding h, in input order.
func (s *Snapshot) Upstream(h NodeHandle) []NodeHandle {
	n, ok := s.Node(h)
	if !ok {
		return nil
	}
	var out []NodeHandle
	seen := map[NodeHandle]bool{}
	for _, in := range n.Inputs {
		if in.Link < 0 {
			continue
		}
		from := s.Links[in.Link].FromNode
		if !seen[from] {
			seen[from] = true
			out = append(out, from)
		}
	}
	return out
}

// Snapshot captures the tree for an evaluation pass. Dirty nodes move to
// Evaluating. Group nodes carry a capture of the tree they wrap; nested
// captures do not change the nested trees' states.
func (t *Tree) Snapshot() *Snapshot {
	return t.capture(true)
}

func (t *Tree) capture(mark bool) *Snapshot {
	type nested struct {
		idx   int
		inner *Tree
	}
	var groups []nested

	t.mu.Lock()
	s := &Snapshot{
		TreeID:  t.id,
		Name:    t.name,
		Kind:    t.kind,
		Version: t.version,
		Sockets: t.reg.Sockets,
		index:   make(map[NodeHandle]int, len(t.nodeOrder)),
	}
	c := t.interfaceCopyLocked()
	s.Inputs, s.Outputs = c.inputs, c.outputs

	linkIndex := make(map[LinkHandle]int, len(t.linkOrder))
	for _, lh := range t.linkOrder {
		l, _ := t.links.get(lh.handle)
		fs, ts := t.mustSocket(l.from), t.mustSocket(l.to)
		linkIndex[lh] = len(s.Links)
		s.Links = append(s.Links, SnapshotLink{
			Handle:     lh,
			FromNode:   l.fromNode,
			FromSocket: fs.identifier,
			FromType:   fs.typ,
			ToNode:     l.toNode,
			ToSocket:   ts.identifier,
			ToType:     ts.typ,
		})
	}

	for _, h := range t.nodeOrder {
		n := t.mustNode(h)
		sn := SnapshotNode{
			Handle:  h,
			Name:    n.name,
			TypeID:  n.typeID,
			Role:    n.role,
			Update:  n.hooks.Update,
			Params:  n.params.Clone(),
			Unknown: n.unknown,
			Dirty:   n.state != StateClean,
			Version: n.version,
			Derived: n.derived,
		}
		for _, dir := range []Direction{Input, Output} {
			for _, sh := range n.sockets(dir) {
				so := t.mustSocket(sh)
				ss := SnapshotSocket{
					Handle:     sh,
					Identifier: so.identifier,
					Name:       so.name,
					Type:       so.typ,
					Default:    so.def,
					Enabled:    so.enabled,
					Extension:  so.extension,
					Link:       -1,
				}
				if dir == Input && len(so.links) > 0 {
					ss.Link = linkIndex[so.links[0]]
				}
				if dir == Input {
					sn.Inputs = append(sn.Inputs, ss)
				} else {
					sn.Outputs = append(sn.Outputs, ss)
				}
			}
		}
		if mark && sn.Dirty {
			n.state = StateEvaluating
		}
		if n.group != nil {
			groups = append(groups, nested{idx: len(s.Nodes), inner: n.group})
		}
		s.index[h] = len(s.Nodes)
		s.Nodes = append(s.Nodes, sn)
	}
	t.mu.Unlock()

	for _, g := range groups {
		s.Nodes[g.idx].Group = g.inner.capture(false)
	}
	return s
}

// Commit stores the results of a finished pass. A node captured Dirty
// becomes Clean only if it was not edited since the capture and the pass
// produced a result for it; otherwise it stays Dirty for the next pass.
// Commit returns the number of nodes that became Clean.
func (t *Tree) Commit(s *Snapshot, results map[NodeHandle]registry.Derived) (int, error) {
	if s == nil || s.TreeID != t.id {
		return 0, errors.New("snapshot does not belong to this tree")
	}
	t.mu.Lock()
	cleaned := 0
	for i := range s.Nodes {
		sn := &s.Nodes[i]
		if !sn.Dirty {
			continue
		}
		n, ok := t.nodes.get(sn.Handle.handle)
		if !ok || n.state != StateEvaluating || n.version != sn.Version {
			continue
		}
		d, ok := results[sn.Handle]
		if !ok {
			n.state = StateDirty
			continue
		}
		n.derived = d
		n.state = StateClean
		cleaned++
	}
	ev := Event{Kind: EventCommitted, Tree: t.name, TreeID: t.id, Detail: strconv.Itoa(cleaned)}
	t.mu.Unlock()

	t.notify(ev)
	return cleaned, nil
}

// Abort discards a pass. Nodes it captured return to Dirty.
func (t *Tree) Abort(s *Snapshot) {
	if s == nil || s.TreeID != t.id {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range s.Nodes {
		sn := &s.Nodes[i]
		if !sn.Dirty {
			continue
		}
		if n, ok := t.nodes.get(sn.Handle.handle); ok && n.state == StateEvaluating {
			n.state = StateDirty
		}
	}
}
