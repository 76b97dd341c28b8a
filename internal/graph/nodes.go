package graph

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"

	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

const defaultNodeWidth = 140

// NodeInfo is a read-only copy of a node's fields.
type NodeInfo struct {
	Handle   NodeHandle
	Name     string
	TypeID   string
	Label    string
	Role     registry.Role
	Inputs   []SocketHandle
	Outputs  []SocketHandle
	Params   registry.Params
	Location [2]float64
	Width    float64
	Parent   NodeHandle
	Group    *Tree
	Unknown  bool
	State    State
}

// UnknownNode holds the raw fields of a node whose type is not registered.
type UnknownNode struct {
	TypeID   string
	Name     string
	Inputs   []RawSocket
	Outputs  []RawSocket
	Params   registry.Params
	Location [2]float64
	Width    float64
}

// RawSocket is a persisted socket as read from a document.
type RawSocket struct {
	Identifier string
	Name       string
	Type       string
	Default    cty.Value
	Hidden     bool
}

// socketSpec is a resolved description of a socket about to be created.
type socketSpec struct {
	identifier string
	name       string
	typeID     string
	typ        *sockettype.Type
	def        cty.Value
	min, max   *float64
	hidden     bool
	extension  bool
}

func (t *Tree) resolveTemplates(templates []registry.SocketTemplate) ([]socketSpec, error) {
	out := make([]socketSpec, 0, len(templates))
	for _, tmpl := range templates {
		st, err := t.reg.Sockets.Resolve(tmpl.Type)
		if err != nil {
			return nil, fmt.Errorf("socket %q: %w: %q", tmpl.ID(), ErrUnknownSocketType, tmpl.Type)
		}
		def := st.Default()
		if !sockettype.IsNil(tmpl.Default) {
			if def, err = sockettype.Coerce(st.Kind(), tmpl.Default); err != nil {
				return nil, fmt.Errorf("socket %q: %w", tmpl.ID(), err)
			}
		}
		name := tmpl.Name
		if name == "" {
			name = tmpl.ID()
		}
		out = append(out, socketSpec{
			identifier: tmpl.ID(),
			name:       name,
			typeID:     st.ID(),
			typ:        st,
			def:        def,
			min:        tmpl.Min,
			max:        tmpl.Max,
			hidden:     tmpl.Hidden,
		})
	}
	return out, nil
}

// AddNode adds a node of a registered type, instantiating its socket
// templates and running its Init hook.
func (t *Tree) AddNode(typeID string) (NodeHandle, error) {
	nt, ok := t.reg.NodeType(typeID)
	if !ok {
		return NodeHandle{}, fmt.Errorf("%w: %q", ErrUnknownNodeType, typeID)
	}
	if !nt.Polls(t.kind) {
		return NodeHandle{}, fmt.Errorf("%w: %s in %q tree", ErrPollFailed, typeID, t.kind)
	}
	ins, err := t.resolveTemplates(nt.Inputs)
	if err != nil {
		return NodeHandle{}, fmt.Errorf("node type %s: %w", typeID, err)
	}
	outs, err := t.resolveTemplates(nt.Outputs)
	if err != nil {
		return NodeHandle{}, fmt.Errorf("node type %s: %w", typeID, err)
	}

	var h NodeHandle
	err = t.edit(func() error {
		base := nt.Label
		if base == "" {
			base = nt.ID
		}
		n := t.insertNodeLocked(nt.ID, base)
		n.nodeType = nt
		n.role = nt.Role
		n.hooks = nt.Effective()
		for _, spec := range ins {
			t.newSocketLocked(n, Input, spec)
		}
		for _, spec := range outs {
			t.newSocketLocked(n, Output, spec)
		}
		if n.hooks.Init != nil {
			n.hooks.Init(n.params)
		}
		if n.role == registry.RoleGroupInput || n.role == registry.RoleGroupOutput {
			t.syncIONodeLocked(n)
		}
		t.markDirtyLocked(n.handle)
		t.emitLocked(EventNodeAdded, n.name, n.typeID)
		h = n.handle
		return nil
	})
	if err != nil {
		return NodeHandle{}, err
	}
	t.logger.Debug("Node added.", "tree", t.Name(), "type", typeID, "handle", h.String())
	return h, nil
}

// AddUnknownNode adds a placeholder for a node whose type is not
// registered. The placeholder keeps its raw fields and rejects new links.
func (t *Tree) AddUnknownNode(u UnknownNode) (NodeHandle, error) {
	var h NodeHandle
	err := t.edit(func() error {
		base := u.Name
		if base == "" {
			base = u.TypeID
		}
		n := t.insertNodeLocked(u.TypeID, base)
		n.unknown = true
		n.hooks = registry.Hooks{
			ValidateLink: func(registry.LinkCandidate) bool { return false },
			Update:       registry.DefaultUpdate,
			Copy:         func(p registry.Params) registry.Params { return p.Clone() },
		}
		if u.Params != nil {
			n.params = u.Params.Clone()
		}
		n.location = u.Location
		if u.Width > 0 {
			n.width = u.Width
		}
		for dir, raws := range [][]RawSocket{u.Inputs, u.Outputs} {
			for _, raw := range raws {
				st, _ := t.reg.Sockets.Lookup(raw.Type)
				name := raw.Name
				if name == "" {
					name = raw.Identifier
				}
				t.newSocketLocked(n, Direction(dir), socketSpec{
					identifier: raw.Identifier,
					name:       name,
					typeID:     raw.Type,
					typ:        st,
					def:        raw.Default,
					hidden:     raw.Hidden,
				})
			}
		}
		t.markDirtyLocked(n.handle)
		t.emitLocked(EventNodeAdded, n.name, n.typeID)
		h = n.handle
		return nil
	})
	if err != nil {
		return NodeHandle{}, err
	}
	t.logger.Warn("Node type is not registered, added placeholder node.", "tree", t.Name(), "type", u.TypeID, "name", u.Name)
	return h, nil
}

// CopyNode duplicates a node with its sockets and socket defaults. The
// parameter block goes through the type's Copy hook. Links are not copied.
func (t *Tree) CopyNode(src NodeHandle) (NodeHandle, error) {
	var h NodeHandle
	err := t.edit(func() error {
		orig, err := t.lookupNode(src)
		if err != nil {
			return err
		}
		n := t.insertNodeLocked(orig.typeID, baseName(orig.name))
		n.nodeType = orig.nodeType
		n.role = orig.role
		n.hooks = orig.hooks
		n.unknown = orig.unknown
		n.params = orig.hooks.Copy(orig.params)
		if n.params == nil {
			n.params = registry.Params{}
		}
		n.location = orig.location
		n.width = orig.width
		n.parent = orig.parent
		for _, dir := range []Direction{Input, Output} {
			for _, sh := range orig.sockets(dir) {
				s := t.mustSocket(sh)
				ns := t.newSocketLocked(n, dir, socketSpec{
					identifier: s.identifier,
					name:       s.name,
					typeID:     s.typeID,
					typ:        s.typ,
					def:        s.def,
					min:        s.min,
					max:        s.max,
					hidden:     s.hidden,
					extension:  s.extension,
				})
				ns.enabled = s.enabled
			}
		}
		if orig.group != nil {
			n.group = orig.group
			t.pend.acquire = append(t.pend.acquire, groupUser{tree: orig.group, node: n.handle})
		}
		t.markDirtyLocked(n.handle)
		t.emitLocked(EventNodeAdded, n.name, n.typeID)
		h = n.handle
		return nil
	})
	return h, err
}

// RemoveNode removes a node, its sockets and every incident link. Stale
// handles are ignored.
func (t *Tree) RemoveNode(h NodeHandle) {
	_ = t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		t.removeNodeLocked(n)
		return nil
	})
}

func (t *Tree) removeNodeLocked(n *node) {
	for _, dir := range []Direction{Input, Output} {
		for _, sh := range slices.Clone(n.sockets(dir)) {
			t.removeSocketLocked(t.mustSocket(sh))
		}
	}
	if n.hooks.Free != nil {
		n.hooks.Free(n.params)
	}
	if n.group != nil {
		t.pend.release = append(t.pend.release, groupUser{tree: n.group, node: n.handle})
	}
	for _, other := range t.nodeOrder {
		if c := t.mustNode(other); c.parent == n.handle {
			c.parent = NodeHandle{}
		}
	}
	if t.active == n.handle {
		t.active = NodeHandle{}
	}
	t.nodeOrder = slices.DeleteFunc(t.nodeOrder, func(x NodeHandle) bool { return x == n.handle })
	t.nodes.remove(n.handle.handle)
	t.pend.dirty = true
	t.emitLocked(EventNodeRemoved, n.name, n.typeID)
}

func (t *Tree) insertNodeLocked(typeID, base string) *node {
	n := &node{
		typeID: typeID,
		name:   t.uniqueNameLocked(base),
		params: registry.Params{},
		width:  defaultNodeWidth,
		state:  StateDirty,
	}
	n.handle = NodeHandle{t.nodes.insert(t.id, n)}
	t.nodeOrder = append(t.nodeOrder, n.handle)
	return n
}

func (t *Tree) newSocketLocked(n *node, dir Direction, spec socketSpec) *socket {
	def := spec.def
	if sockettype.IsNil(def) && spec.typ != nil {
		def = spec.typ.Default()
	}
	s := &socket{
		node:       n.handle,
		dir:        dir,
		identifier: t.uniqueIdentifierLocked(n, dir, spec.identifier),
		name:       spec.name,
		typeID:     spec.typeID,
		typ:        spec.typ,
		def:        def,
		min:        spec.min,
		max:        spec.max,
		hidden:     spec.hidden,
		enabled:    true,
		extension:  spec.extension,
	}
	s.handle = SocketHandle{t.sockets.insert(t.id, s)}
	n.setSockets(dir, append(n.sockets(dir), s.handle))
	return s
}

var nameSuffix = regexp.MustCompile(`^(.*)\.(\d{3,})$`)

func baseName(name string) string {
	if m := nameSuffix.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

func (t *Tree) nameTakenLocked(name string, except NodeHandle) bool {
	for _, h := range t.nodeOrder {
		if h != except && t.mustNode(h).name == name {
			return true
		}
	}
	return false
}

// uniqueNameLocked returns base, or base with the lowest free ".NNN" suffix.
func (t *Tree) uniqueNameLocked(base string) string {
	if !t.nameTakenLocked(base, NodeHandle{}) {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "." + fmt.Sprintf("%03d", i)
		if !t.nameTakenLocked(candidate, NodeHandle{}) {
			return candidate
		}
	}
}

func (t *Tree) uniqueIdentifierLocked(n *node, dir Direction, want string) string {
	taken := func(id string) bool {
		for _, sh := range n.sockets(dir) {
			if t.mustSocket(sh).identifier == id {
				return true
			}
		}
		return false
	}
	if !taken(want) {
		return want
	}
	for i := 1; ; i++ {
		candidate := want + "_" + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// Nodes returns the node handles in insertion order.
func (t *Tree) Nodes() []NodeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.nodeOrder)
}

// Node returns a copy of a node's fields.
func (t *Tree) Node(h NodeHandle) (NodeInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupNode(h)
	if err != nil {
		return NodeInfo{}, false
	}
	label := n.typeID
	if n.nodeType != nil {
		label = n.nodeType.Describe(n.params)
	}
	return NodeInfo{
		Handle:   n.handle,
		Name:     n.name,
		TypeID:   n.typeID,
		Label:    label,
		Role:     n.role,
		Inputs:   slices.Clone(n.inputs),
		Outputs:  slices.Clone(n.outputs),
		Params:   n.params.Clone(),
		Location: n.location,
		Width:    n.width,
		Parent:   n.parent,
		Group:    n.group,
		Unknown:  n.unknown,
		State:    n.state,
	}, true
}

// NodeByName finds a node by its unique name.
func (t *Tree) NodeByName(name string) (NodeHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range t.nodeOrder {
		if t.mustNode(h).name == name {
			return h, true
		}
	}
	return NodeHandle{}, false
}

// State returns a node's update state.
func (t *Tree) State(h NodeHandle) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupNode(h)
	if err != nil {
		return StateClean, err
	}
	return n.state, nil
}

// Derived returns the derived state committed by the last evaluation pass
// that finished the node.
func (t *Tree) Derived(h NodeHandle) (registry.Derived, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupNode(h)
	if err != nil || n.derived == nil {
		return nil, false
	}
	out := make(registry.Derived, len(n.derived))
	for k, v := range n.derived {
		out[k] = v
	}
	return out, true
}

// Active returns the active node, if any.
func (t *Tree) Active() (NodeHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active, t.active.valid()
}

// SetActive marks a node as the tree's active node.
func (t *Tree) SetActive(h NodeHandle) error {
	return t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		t.active = n.handle
		t.emitLocked(EventNodeChanged, n.name, "active")
		return nil
	})
}

// SetName renames a node. Names are unique within a tree.
func (t *Tree) SetName(h NodeHandle, name string) error {
	return t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrNameTaken)
		}
		if t.nameTakenLocked(name, h) {
			return fmt.Errorf("%w: %q", ErrNameTaken, name)
		}
		old := n.name
		n.name = name
		t.emitLocked(EventNodeChanged, name, "renamed from "+old)
		return nil
	})
}

// SetLocation moves a node in the editor plane.
func (t *Tree) SetLocation(h NodeHandle, x, y float64) error {
	return t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		n.location = [2]float64{x, y}
		t.emitLocked(EventNodeChanged, n.name, "location")
		return nil
	})
}

// SetWidth sets a node's display width. It must be positive.
func (t *Tree) SetWidth(h NodeHandle, width float64) error {
	return t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		if !(width > 0) || math.IsInf(width, 0) {
			return fmt.Errorf("%w: width %g", ErrOutOfRange, width)
		}
		n.width = width
		t.emitLocked(EventNodeChanged, n.name, "width")
		return nil
	})
}

// SetParent places a node inside a frame. The zero handle clears the parent.
func (t *Tree) SetParent(h, parent NodeHandle) error {
	return t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		if parent.IsZero() {
			n.parent = NodeHandle{}
			t.emitLocked(EventNodeChanged, n.name, "parent")
			return nil
		}
		p, err := t.lookupNode(parent)
		if err != nil {
			return err
		}
		if p.role != registry.RoleFrame {
			return fmt.Errorf("%w: %s is not a frame", ErrInvalidParent, p.name)
		}
		for cur := p; cur != nil; {
			if cur.handle == n.handle {
				return fmt.Errorf("%w: %s would contain itself", ErrInvalidParent, n.name)
			}
			if cur.parent.IsZero() {
				break
			}
			cur = t.mustNode(cur.parent)
		}
		n.parent = p.handle
		t.emitLocked(EventNodeChanged, n.name, "parent")
		return nil
	})
}

// SetParam sets one parameter and marks the node and its dependents Dirty.
func (t *Tree) SetParam(h NodeHandle, key string, value cty.Value) error {
	return t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		n.params[key] = value
		t.markDirtyLocked(n.handle)
		t.emitLocked(EventParamChanged, n.name, key)
		return nil
	})
}

// Param reads one parameter.
func (t *Tree) Param(h NodeHandle, key string) (cty.Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupNode(h)
	if err != nil {
		return cty.NilVal, false
	}
	v, ok := n.params[key]
	return v, ok
}
