package graph

import (
	"fmt"
	"slices"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
)

// LinkInfo is a read-only copy of a link's fields.
type LinkInfo struct {
	Handle   LinkHandle
	From     SocketHandle
	To       SocketHandle
	FromNode NodeHandle
	ToNode   NodeHandle
}

type linkOptions struct {
	noReplace bool
	restore   bool
}

// LinkOption adjusts AddLink.
type LinkOption func(*linkOptions)

// NoReplace makes AddLink fail with ErrInputOccupied instead of replacing
// the destination's existing link.
func NoReplace() LinkOption {
	return func(o *linkOptions) { o.noReplace = true }
}

// Restore re-creates a persisted link. Type compatibility and node
// ValidateLink hooks are not consulted; structural checks still apply.
func Restore() LinkOption {
	return func(o *linkOptions) { o.restore = true }
}

// AddLink connects an output socket to an input socket. The two sockets may
// be given in either order. On failure the tree is unchanged.
//
// Checks run in this order: both sockets belong to this tree, both are
// live, one is an output and the other an input, they are on different
// nodes, types are compatible (after virtual coercion on group input and
// output nodes), both nodes accept the link, the link closes no cycle and
// the destination input is free or may be replaced.
func (t *Tree) AddLink(from, to SocketHandle, opts ...LinkOption) (LinkHandle, error) {
	var o linkOptions
	for _, opt := range opts {
		opt(&o)
	}
	var lh LinkHandle
	err := t.edit(func() error {
		var err error
		lh, err = t.addLinkLocked(from, to, o)
		return err
	})
	if err != nil {
		name := t.Name()
		t.logger.Debug("Link rejected.", "tree", name, "from", from.String(), "to", to.String(), "error", err)
		t.notify(Event{Kind: EventLinkRejected, Tree: name, TreeID: t.id, Detail: reasonOf(err)})
		return LinkHandle{}, err
	}
	return lh, nil
}

func (t *Tree) addLinkLocked(from, to SocketHandle, o linkOptions) (LinkHandle, error) {
	if from.tree != t.id || to.tree != t.id {
		return LinkHandle{}, ErrCrossTreeEndpoint
	}
	fs, err := t.lookupSocket(from)
	if err != nil {
		return LinkHandle{}, fmt.Errorf("link source: %w", err)
	}
	ts, err := t.lookupSocket(to)
	if err != nil {
		return LinkHandle{}, fmt.Errorf("link destination: %w", err)
	}
	if fs.dir == Input && ts.dir == Output {
		fs, ts = ts, fs
	}
	if fs.dir != Output || ts.dir != Input {
		return LinkHandle{}, ErrDirection
	}
	fn, tn := t.mustNode(fs.node), t.mustNode(ts.node)
	if fn == tn {
		return LinkHandle{}, fmt.Errorf("%w: %s links to itself", ErrCycleDetected, fn.name)
	}
	for _, lh := range ts.links {
		if l, ok := t.links.get(lh.handle); ok && l.from == fs.handle {
			return l.handle, nil
		}
	}

	fromType, toType := fs.typ, ts.typ
	switch {
	case fs.extension && ts.extension:
		return LinkHandle{}, fmt.Errorf("%w: both ends are virtual", ErrIncompatibleTypes)
	case ts.extension:
		if !concrete(fs.typ) {
			return LinkHandle{}, fmt.Errorf("%w: cannot expose a virtual socket", ErrIncompatibleTypes)
		}
		toType = fs.typ
	case fs.extension:
		if !concrete(ts.typ) {
			return LinkHandle{}, fmt.Errorf("%w: cannot expose a virtual socket", ErrIncompatibleTypes)
		}
		fromType = ts.typ
	}

	if !o.restore {
		if !t.reg.Sockets.IsCompatible(fromType, toType) {
			return LinkHandle{}, fmt.Errorf("%w: %s.%s (%s) -> %s.%s (%s)", ErrIncompatibleTypes,
				fn.name, fs.identifier, fs.typeID, tn.name, ts.identifier, ts.typeID)
		}
		cand := registry.LinkCandidate{
			From:    t.candidateInfo(fn, fs, fromType),
			To:      t.candidateInfo(tn, ts, toType),
			Sockets: t.reg.Sockets,
		}
		if fn.hooks.ValidateLink != nil && !fn.hooks.ValidateLink(cand) {
			return LinkHandle{}, fmt.Errorf("%w: %s refused outgoing link", ErrLinkRejected, fn.name)
		}
		cand.Incoming = true
		if tn.hooks.ValidateLink != nil && !tn.hooks.ValidateLink(cand) {
			return LinkHandle{}, fmt.Errorf("%w: %s refused incoming link", ErrLinkRejected, tn.name)
		}
	}

	if t.reachableLocked(tn.handle, fn.handle) {
		return LinkHandle{}, fmt.Errorf("%w: %s already depends on %s", ErrCycleDetected, fn.name, tn.name)
	}
	if len(ts.links) > 0 && o.noReplace && !ts.extension {
		return LinkHandle{}, fmt.Errorf("%w: %s.%s", ErrInputOccupied, tn.name, ts.identifier)
	}

	// Checks passed; mutate from here on.
	switch {
	case ts.extension:
		iface := t.addInterfaceLocked(Output, fs.typ, fs.name)
		ts = t.mirrorSocketLocked(tn, Input, iface.identifier)
	case fs.extension:
		iface := t.addInterfaceLocked(Input, ts.typ, ts.name)
		fs = t.mirrorSocketLocked(fn, Output, iface.identifier)
	}
	for _, lh := range slices.Clone(ts.links) {
		if old, ok := t.links.get(lh.handle); ok {
			t.removeLinkLocked(old)
		}
	}

	l := &link{from: fs.handle, to: ts.handle, fromNode: fn.handle, toNode: tn.handle}
	l.handle = LinkHandle{t.links.insert(t.id, l)}
	fs.links = append(fs.links, l.handle)
	ts.links = append(ts.links, l.handle)
	t.linkOrder = append(t.linkOrder, l.handle)
	t.markDirtyLocked(tn.handle)
	t.emitLocked(EventLinkAdded, tn.name, t.linkLabelLocked(l))
	return l.handle, nil
}

func concrete(st *sockettype.Type) bool {
	return st != nil && st.Kind() != sockettype.KindVirtual
}

func (t *Tree) candidateInfo(n *node, s *socket, st *sockettype.Type) registry.SocketInfo {
	return registry.SocketInfo{
		Node:       n.name,
		NodeType:   n.typeID,
		Identifier: s.identifier,
		Name:       s.name,
		Type:       st,
		Output:     s.dir == Output,
	}
}

// reachableLocked reports whether target can be reached from start by
// following links downstream. It is a depth-first search over the live
// links.
func (t *Tree) reachableLocked(start, target NodeHandle) bool {
	visited := make(map[NodeHandle]bool)
	stack := []NodeHandle{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, sh := range t.mustNode(cur).outputs {
			for _, lh := range t.mustSocket(sh).links {
				if l, ok := t.links.get(lh.handle); ok && !visited[l.toNode] {
					stack = append(stack, l.toNode)
				}
			}
		}
	}
	return false
}

// RemoveLink removes a link. Stale handles are ignored.
func (t *Tree) RemoveLink(h LinkHandle) {
	_ = t.edit(func() error {
		if h.tree != t.id {
			return ErrCrossTreeEndpoint
		}
		l, ok := t.links.get(h.handle)
		if !ok {
			return ErrStaleHandle
		}
		t.removeLinkLocked(l)
		return nil
	})
}

// ClearLinks removes every link of the tree.
func (t *Tree) ClearLinks() {
	_ = t.edit(func() error {
		for _, lh := range slices.Clone(t.linkOrder) {
			if l, ok := t.links.get(lh.handle); ok {
				t.removeLinkLocked(l)
			}
		}
		return nil
	})
}

func (t *Tree) removeLinkLocked(l *link) {
	label := t.linkLabelLocked(l)
	without := func(list []LinkHandle) []LinkHandle {
		return slices.DeleteFunc(slices.Clone(list), func(x LinkHandle) bool { return x == l.handle })
	}
	if fs, ok := t.sockets.get(l.from.handle); ok {
		fs.links = without(fs.links)
	}
	if ts, ok := t.sockets.get(l.to.handle); ok {
		ts.links = without(ts.links)
	}
	t.linkOrder = without(t.linkOrder)
	t.links.remove(l.handle.handle)
	t.markDirtyLocked(l.toNode)
	t.emitLocked(EventLinkRemoved, t.mustNode(l.toNode).name, label)
}

func (t *Tree) linkLabelLocked(l *link) string {
	fs, ts := t.mustSocket(l.from), t.mustSocket(l.to)
	return fmt.Sprintf("%s.%s -> %s.%s", t.mustNode(l.fromNode).name, fs.identifier, t.mustNode(l.toNode).name, ts.identifier)
}

// Links returns every link in creation order.
func (t *Tree) Links() []LinkInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]LinkInfo, 0, len(t.linkOrder))
	for _, lh := range t.linkOrder {
		l, _ := t.links.get(lh.handle)
		out = append(out, l.info())
	}
	return out
}

// Link returns a copy of a link's fields.
func (t *Tree) Link(h LinkHandle) (LinkInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h.tree != t.id {
		return LinkInfo{}, false
	}
	l, ok := t.links.get(h.handle)
	if !ok {
		return LinkInfo{}, false
	}
	return l.info(), true
}

func (l *link) info() LinkInfo {
	return LinkInfo{Handle: l.handle, From: l.from, To: l.to, FromNode: l.fromNode, ToNode: l.toNode}
}
