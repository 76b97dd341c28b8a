package graph

import (
	"fmt"
	"slices"

	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// SocketInfo is a read-only copy of a socket's fields.
type SocketInfo struct {
	Handle     SocketHandle
	Node       NodeHandle
	Direction  Direction
	Identifier string
	Name       string
	// TypeID is the persisted type identifier. Type is nil when it does not
	// name a registered socket type (placeholder nodes only).
	TypeID  string
	Type    *sockettype.Type
	Default cty.Value
	Min     *float64
	Max     *float64
	Hidden  bool
	Enabled bool
	// Extension marks the trailing virtual socket of group input and
	// group output nodes.
	Extension bool
	Links     []LinkHandle
}

// Linked reports whether any link touches the socket.
func (s SocketInfo) Linked() bool { return len(s.Links) > 0 }

// AddInputSocket appends an input socket to a node.
func (t *Tree) AddInputSocket(h NodeHandle, name, typeID string) (SocketHandle, error) {
	return t.addSocket(h, Input, name, typeID)
}

// AddOutputSocket appends an output socket to a node.
func (t *Tree) AddOutputSocket(h NodeHandle, name, typeID string) (SocketHandle, error) {
	return t.addSocket(h, Output, name, typeID)
}

func (t *Tree) addSocket(h NodeHandle, dir Direction, name, typeID string) (SocketHandle, error) {
	st, err := t.reg.Sockets.Resolve(typeID)
	if err != nil {
		return SocketHandle{}, fmt.Errorf("%w: %q", ErrUnknownSocketType, typeID)
	}
	var sh SocketHandle
	err = t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		s := t.newSocketLocked(n, dir, socketSpec{identifier: name, name: name, typeID: st.ID(), typ: st})
		t.markDirtyLocked(n.handle)
		t.emitLocked(EventSocketChanged, n.name, "added "+dir.String()+" "+s.identifier)
		sh = s.handle
		return nil
	})
	return sh, err
}

// RemoveSocket removes a socket and its links. Stale handles are ignored.
func (t *Tree) RemoveSocket(h SocketHandle) {
	_ = t.edit(func() error {
		s, err := t.lookupSocket(h)
		if err != nil {
			return err
		}
		n := t.mustNode(s.node)
		t.markDirtyLocked(n.handle)
		t.removeSocketLocked(s)
		t.emitLocked(EventSocketChanged, n.name, "removed "+s.dir.String()+" "+s.identifier)
		return nil
	})
}

func (t *Tree) removeSocketLocked(s *socket) {
	for _, lh := range slices.Clone(s.links) {
		if l, ok := t.links.get(lh.handle); ok {
			t.removeLinkLocked(l)
		}
	}
	n := t.mustNode(s.node)
	n.setSockets(s.dir, slices.DeleteFunc(slices.Clone(n.sockets(s.dir)), func(x SocketHandle) bool { return x == s.handle }))
	t.sockets.remove(s.handle.handle)
}

// MoveSocket moves the socket at position from to position to within one
// direction of a node.
func (t *Tree) MoveSocket(h NodeHandle, dir Direction, from, to int) error {
	return t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		list := n.sockets(dir)
		if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
			return fmt.Errorf("%w: move %d to %d of %d %s sockets", ErrOutOfRange, from, to, len(list), dir)
		}
		n.setSockets(dir, moveItem(list, from, to))
		t.emitLocked(EventSocketChanged, n.name, "moved")
		return nil
	})
}

func moveItem[T any](list []T, from, to int) []T {
	out := slices.Clone(list)
	item := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, item)
}

// Socket returns a copy of a socket's fields.
func (t *Tree) Socket(h SocketHandle) (SocketInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookupSocket(h)
	if err != nil {
		return SocketInfo{}, false
	}
	return s.info(), true
}

func (s *socket) info() SocketInfo {
	return SocketInfo{
		Handle:     s.handle,
		Node:       s.node,
		Direction:  s.dir,
		Identifier: s.identifier,
		Name:       s.name,
		TypeID:     s.typeID,
		Type:       s.typ,
		Default:    s.def,
		Min:        s.min,
		Max:        s.max,
		Hidden:     s.hidden,
		Enabled:    s.enabled,
		Extension:  s.extension,
		Links:      slices.Clone(s.links),
	}
}

// Sockets returns copies of a node's sockets in one direction, in order.
func (t *Tree) Sockets(h NodeHandle, dir Direction) []SocketInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupNode(h)
	if err != nil {
		return nil
	}
	out := make([]SocketInfo, 0, len(n.sockets(dir)))
	for _, sh := range n.sockets(dir) {
		out = append(out, t.mustSocket(sh).info())
	}
	return out
}

// SocketByIdentifier finds a node's socket by its stable identifier.
func (t *Tree) SocketByIdentifier(h NodeHandle, dir Direction, identifier string) (SocketHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupNode(h)
	if err != nil {
		return SocketHandle{}, false
	}
	for _, sh := range n.sockets(dir) {
		if t.mustSocket(sh).identifier == identifier {
			return sh, true
		}
	}
	return SocketHandle{}, false
}

// SetSocketDefault sets the literal used while an input is unconnected. The
// value is coerced into the socket type's domain and clamped to its range.
func (t *Tree) SetSocketDefault(h SocketHandle, value cty.Value) error {
	return t.edit(func() error {
		s, err := t.lookupSocket(h)
		if err != nil {
			return err
		}
		v := value
		if s.typ != nil {
			if v, err = sockettype.Coerce(s.typ.Kind(), value); err != nil {
				return fmt.Errorf("socket %s: %w", s.identifier, err)
			}
			if s.typ.Kind().Numeric() {
				v = clamp(v, s.min, s.max)
			}
		}
		s.def = v
		n := t.mustNode(s.node)
		t.markDirtyLocked(n.handle)
		t.emitLocked(EventSocketChanged, n.name, "default "+s.identifier)
		return nil
	})
}

// SetSocketName sets a socket's display name. The identifier is unchanged.
func (t *Tree) SetSocketName(h SocketHandle, name string) error {
	return t.edit(func() error {
		s, err := t.lookupSocket(h)
		if err != nil {
			return err
		}
		s.name = name
		t.emitLocked(EventSocketChanged, t.mustNode(s.node).name, "renamed "+s.identifier)
		return nil
	})
}

// SetSocketHidden hides or shows a socket in the editor.
func (t *Tree) SetSocketHidden(h SocketHandle, hidden bool) error {
	return t.edit(func() error {
		s, err := t.lookupSocket(h)
		if err != nil {
			return err
		}
		s.hidden = hidden
		t.emitLocked(EventSocketChanged, t.mustNode(s.node).name, "hidden "+s.identifier)
		return nil
	})
}

// SetSocketEnabled enables or disables a socket. Disabled inputs read their
// default even when linked.
func (t *Tree) SetSocketEnabled(h SocketHandle, enabled bool) error {
	return t.edit(func() error {
		s, err := t.lookupSocket(h)
		if err != nil {
			return err
		}
		s.enabled = enabled
		n := t.mustNode(s.node)
		t.markDirtyLocked(n.handle)
		t.emitLocked(EventSocketChanged, n.name, "enabled "+s.identifier)
		return nil
	})
}

func clamp(v cty.Value, lo, hi *float64) cty.Value {
	if lo == nil && hi == nil {
		return v
	}
	f := sockettype.AsFloat(v)
	if lo != nil && f < *lo {
		return sockettype.Float(*lo)
	}
	if hi != nil && f > *hi {
		return sockettype.Float(*hi)
	}
	return v
}
