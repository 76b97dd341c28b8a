package graph

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// InterfaceSocket is a read-only copy of one of the tree's own sockets.
type InterfaceSocket struct {
	Handle     InterfaceHandle
	Direction  Direction
	Identifier string
	Name       string
	Type       *sockettype.Type
	Default    cty.Value
	Min        *float64
	Max        *float64
}

type interfaceCopy struct {
	inputs  []InterfaceSocket
	outputs []InterfaceSocket
}

func (c interfaceCopy) list(dir Direction) []InterfaceSocket {
	if dir == Output {
		return c.outputs
	}
	return c.inputs
}

func (s *ifaceSocket) info() InterfaceSocket {
	return InterfaceSocket{
		Handle:     s.handle,
		Direction:  s.dir,
		Identifier: s.identifier,
		Name:       s.name,
		Type:       s.typ,
		Default:    s.def,
		Min:        s.min,
		Max:        s.max,
	}
}

func (t *Tree) ifaceList(dir Direction) []InterfaceHandle {
	if dir == Output {
		return t.ifaceOut
	}
	return t.ifaceIn
}

func (t *Tree) setIfaceList(dir Direction, list []InterfaceHandle) {
	if dir == Output {
		t.ifaceOut = list
	} else {
		t.ifaceIn = list
	}
}

func (t *Tree) interfaceCopyLocked() interfaceCopy {
	var c interfaceCopy
	for _, h := range t.ifaceIn {
		s, _ := t.ifaces.get(h.handle)
		c.inputs = append(c.inputs, s.info())
	}
	for _, h := range t.ifaceOut {
		s, _ := t.ifaces.get(h.handle)
		c.outputs = append(c.outputs, s.info())
	}
	return c
}

// Interface returns the tree's interface sockets of one direction in order.
func (t *Tree) Interface(dir Direction) []InterfaceSocket {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interfaceCopyLocked().list(dir)
}

// AddInterfaceSocket appends a socket to the tree's interface and
// resynchronises every node mirroring it.
func (t *Tree) AddInterfaceSocket(dir Direction, typeID, name string) (InterfaceHandle, error) {
	st, err := t.reg.Sockets.Resolve(typeID)
	if err != nil {
		return InterfaceHandle{}, fmt.Errorf("%w: %q", ErrUnknownSocketType, typeID)
	}
	if !concrete(st) {
		return InterfaceHandle{}, fmt.Errorf("%w: interface sockets need a concrete type", ErrIncompatibleTypes)
	}
	var h InterfaceHandle
	err = t.edit(func() error {
		h = t.addInterfaceLocked(dir, st, name).handle
		return nil
	})
	return h, err
}

// AddInterfaceSocketWithIdentifier is AddInterfaceSocket for loading
// persisted trees, where the identifier must be preserved.
func (t *Tree) AddInterfaceSocketWithIdentifier(dir Direction, typeID, name, identifier string) (InterfaceHandle, error) {
	st, err := t.reg.Sockets.Resolve(typeID)
	if err != nil {
		return InterfaceHandle{}, fmt.Errorf("%w: %q", ErrUnknownSocketType, typeID)
	}
	var h InterfaceHandle
	err = t.edit(func() error {
		for _, existing := range t.ifaceList(dir) {
			s, _ := t.ifaces.get(existing.handle)
			if s.identifier == identifier {
				return fmt.Errorf("%w: %s %q", ErrIdentifierTaken, dir, identifier)
			}
		}
		s := t.newInterfaceLocked(dir, st, name, identifier)
		t.interfaceChangedLocked("added " + s.identifier)
		h = s.handle
		return nil
	})
	return h, err
}

func (t *Tree) addInterfaceLocked(dir Direction, st *sockettype.Type, name string) *ifaceSocket {
	var identifier string
	for {
		identifier = "Socket_" + strconv.Itoa(t.ifaceSeq)
		t.ifaceSeq++
		if !t.ifaceIdentifierTakenLocked(identifier) {
			break
		}
	}
	s := t.newInterfaceLocked(dir, st, name, identifier)
	t.interfaceChangedLocked("added " + s.identifier)
	return s
}

func (t *Tree) ifaceIdentifierTakenLocked(identifier string) bool {
	for _, list := range [][]InterfaceHandle{t.ifaceIn, t.ifaceOut} {
		for _, h := range list {
			if s, _ := t.ifaces.get(h.handle); s.identifier == identifier {
				return true
			}
		}
	}
	return false
}

func (t *Tree) newInterfaceLocked(dir Direction, st *sockettype.Type, name, identifier string) *ifaceSocket {
	if name == "" {
		name = st.ID()
	}
	s := &ifaceSocket{dir: dir, identifier: identifier, name: name, typ: st, def: st.Default()}
	s.handle = InterfaceHandle{t.ifaces.insert(t.id, s)}
	t.setIfaceList(dir, append(t.ifaceList(dir), s.handle))
	return s
}

// RemoveInterfaceSocket removes an interface socket. Mirrored sockets and
// their links are removed from every group node and from the tree's own
// group input and output nodes. Stale handles are ignored.
func (t *Tree) RemoveInterfaceSocket(h InterfaceHandle) {
	_ = t.edit(func() error {
		s, err := t.lookupIface(h)
		if err != nil {
			return err
		}
		t.setIfaceList(s.dir, slices.DeleteFunc(slices.Clone(t.ifaceList(s.dir)), func(x InterfaceHandle) bool { return x == h }))
		t.ifaces.remove(h.handle)
		t.interfaceChangedLocked("removed " + s.identifier)
		return nil
	})
}

// MoveInterfaceSocket moves an interface socket to a new position within
// its direction.
func (t *Tree) MoveInterfaceSocket(h InterfaceHandle, index int) error {
	return t.edit(func() error {
		s, err := t.lookupIface(h)
		if err != nil {
			return err
		}
		list := t.ifaceList(s.dir)
		from := slices.Index(list, h)
		if index < 0 || index >= len(list) {
			return fmt.Errorf("%w: move interface socket to %d of %d", ErrOutOfRange, index, len(list))
		}
		t.setIfaceList(s.dir, moveItem(list, from, index))
		t.interfaceChangedLocked("moved " + s.identifier)
		return nil
	})
}

// SetInterfaceName renames an interface socket.
func (t *Tree) SetInterfaceName(h InterfaceHandle, name string) error {
	return t.edit(func() error {
		s, err := t.lookupIface(h)
		if err != nil {
			return err
		}
		s.name = name
		t.interfaceChangedLocked("renamed " + s.identifier)
		return nil
	})
}

// SetInterfaceDefault sets the value an interface input takes when the
// group node's socket is unconnected.
func (t *Tree) SetInterfaceDefault(h InterfaceHandle, value cty.Value) error {
	return t.edit(func() error {
		s, err := t.lookupIface(h)
		if err != nil {
			return err
		}
		v, err := sockettype.Coerce(s.typ.Kind(), value)
		if err != nil {
			return fmt.Errorf("interface socket %s: %w", s.identifier, err)
		}
		s.def = clamp(v, s.min, s.max)
		t.interfaceChangedLocked("default " + s.identifier)
		return nil
	})
}

// SetInterfaceRange sets the numeric bounds of an interface socket. Nil
// leaves a side unbounded.
func (t *Tree) SetInterfaceRange(h InterfaceHandle, lo, hi *float64) error {
	return t.edit(func() error {
		s, err := t.lookupIface(h)
		if err != nil {
			return err
		}
		if !s.typ.Kind().Numeric() {
			return fmt.Errorf("interface socket %s: %s sockets have no range", s.identifier, s.typ.Kind())
		}
		if lo != nil && hi != nil && *lo > *hi {
			return fmt.Errorf("interface socket %s: min %g exceeds max %g", s.identifier, *lo, *hi)
		}
		s.min, s.max = lo, hi
		s.def = clamp(s.def, lo, hi)
		t.interfaceChangedLocked("range " + s.identifier)
		return nil
	})
}

// interfaceChangedLocked is the interface_update notification: the tree's
// own group input and output nodes are resynchronised now, group nodes in
// other trees once the edit releases the lock.
func (t *Tree) interfaceChangedLocked(detail string) {
	for _, h := range t.nodeOrder {
		n := t.mustNode(h)
		if n.role == registry.RoleGroupInput || n.role == registry.RoleGroupOutput {
			t.syncIONodeLocked(n)
		}
	}
	t.pend.iface = true
	t.pend.dirty = true
	t.emitLocked(EventInterfaceChanged, "", detail)
}

// syncIONodeLocked mirrors the interface onto a group input node (outputs)
// or a group output node (inputs).
func (t *Tree) syncIONodeLocked(n *node) {
	c := t.interfaceCopyLocked()
	switch n.role {
	case registry.RoleGroupInput:
		t.mirrorLocked(n, Output, c.inputs, true)
	case registry.RoleGroupOutput:
		t.mirrorLocked(n, Input, c.outputs, true)
	}
}

// mirrorLocked makes the node's sockets of one direction match desired in
// order, identifier, name and type. Sockets are matched by identifier so
// that links survive reordering and renaming; links that no longer type
// check after a retype are dropped. io selects the group input/output
// flavour, which also mirrors defaults and keeps a trailing virtual socket.
func (t *Tree) mirrorLocked(n *node, dir Direction, desired []InterfaceSocket, io bool) {
	before := slices.Clone(n.sockets(dir))
	existing := make(map[string]*socket, len(before))
	for _, sh := range before {
		s := t.mustSocket(sh)
		existing[s.identifier] = s
	}

	list := make([]SocketHandle, 0, len(desired)+1)
	for _, d := range desired {
		s, ok := existing[d.Identifier]
		if ok && !s.extension {
			delete(existing, d.Identifier)
			s.name = d.Name
			s.min, s.max = d.Min, d.Max
			if s.typ != d.Type {
				s.typ = d.Type
				s.typeID = d.Type.ID()
				s.def = d.Default
				t.dropInvalidLinksLocked(s)
			} else if io {
				s.def = d.Default
			}
		} else {
			s = t.newSocketLocked(n, dir, socketSpec{
				identifier: d.Identifier,
				name:       d.Name,
				typeID:     d.Type.ID(),
				typ:        d.Type,
				def:        d.Default,
				min:        d.Min,
				max:        d.Max,
			})
		}
		list = append(list, s.handle)
	}
	if io {
		ext, ok := existing[extensionID]
		if ok && ext.extension {
			delete(existing, extensionID)
		} else {
			vt, _ := t.reg.Sockets.Lookup(sockettype.KindVirtual.String())
			ext = t.newSocketLocked(n, dir, socketSpec{
				identifier: extensionID,
				typeID:     sockettype.KindVirtual.String(),
				typ:        vt,
				extension:  true,
			})
		}
		list = append(list, ext.handle)
	}
	for _, sh := range before {
		if s := t.mustSocket(sh); existing[s.identifier] == s {
			t.removeSocketLocked(s)
		}
	}
	n.setSockets(dir, list)
	t.markDirtyLocked(n.handle)
}

func (t *Tree) dropInvalidLinksLocked(s *socket) {
	for _, lh := range slices.Clone(s.links) {
		l, ok := t.links.get(lh.handle)
		if !ok {
			continue
		}
		fs, ts := t.mustSocket(l.from), t.mustSocket(l.to)
		if !t.reg.Sockets.IsCompatible(fs.typ, ts.typ) {
			t.removeLinkLocked(l)
		}
	}
}

// mirrorSocketLocked returns the socket mirroring an interface identifier.
func (t *Tree) mirrorSocketLocked(n *node, dir Direction, identifier string) *socket {
	for _, sh := range n.sockets(dir) {
		if s := t.mustSocket(sh); s.identifier == identifier {
			return s
		}
	}
	return nil
}
