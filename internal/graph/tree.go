package graph

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/zclconf/go-cty/cty"
)

// Direction is the side of a node a socket sits on.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// State is a node's position in the update cycle.
type State int32

const (
	// StateClean nodes hold derived state matching their inputs.
	StateClean State = iota
	// StateDirty nodes must be recomputed by the next evaluation pass.
	StateDirty
	// StateEvaluating nodes are captured by an in-flight evaluation pass.
	StateEvaluating
)

func (s State) String() string {
	switch s {
	case StateDirty:
		return "dirty"
	case StateEvaluating:
		return "evaluating"
	default:
		return "clean"
	}
}

// extensionID is the identifier of the trailing virtual socket on group
// input and group output nodes.
const extensionID = "__extend__"

type node struct {
	handle   NodeHandle
	name     string
	typeID   string
	nodeType *registry.NodeType
	role     registry.Role
	hooks    registry.Hooks
	inputs   []SocketHandle
	outputs  []SocketHandle
	params   registry.Params

	location [2]float64
	width    float64
	parent   NodeHandle
	group    *Tree
	unknown  bool

	state   State
	version uint64
	derived registry.Derived
}

func (n *node) sockets(dir Direction) []SocketHandle {
	if dir == Output {
		return n.outputs
	}
	return n.inputs
}

func (n *node) setSockets(dir Direction, list []SocketHandle) {
	if dir == Output {
		n.outputs = list
	} else {
		n.inputs = list
	}
}

type socket struct {
	handle     SocketHandle
	node       NodeHandle
	dir        Direction
	identifier string
	name       string
	typeID     string
	typ        *sockettype.Type
	def        cty.Value
	min, max   *float64
	hidden     bool
	enabled    bool
	extension  bool
	links      []LinkHandle
}

type link struct {
	handle   LinkHandle
	from, to SocketHandle
	fromNode NodeHandle
	toNode   NodeHandle
}

type ifaceSocket struct {
	handle     InterfaceHandle
	dir        Direction
	identifier string
	name       string
	typ        *sockettype.Type
	def        cty.Value
	min, max   *float64
}

// groupUser is a group node in some tree that wraps this tree.
type groupUser struct {
	tree *Tree
	node NodeHandle
}

// Tree is a node graph. Create trees with NewTree.
type Tree struct {
	mu     sync.Mutex
	id     TreeID
	name   string
	kind   string
	reg    *registry.Registry
	logger *slog.Logger

	nodes   arena[*node]
	sockets arena[*socket]
	links   arena[*link]
	ifaces  arena[*ifaceSocket]

	nodeOrder []NodeHandle
	linkOrder []LinkHandle
	ifaceIn   []InterfaceHandle
	ifaceOut  []InterfaceHandle
	ifaceSeq  int
	active    NodeHandle
	users     map[groupUser]struct{}
	observers map[int]Observer
	obsSeq    int
	version   uint64

	pend pending
}

// NewTree creates an empty tree. The tree logs to the logger found in ctx.
func NewTree(ctx context.Context, reg *registry.Registry, name, kind string) *Tree {
	id := nextTreeID()
	return &Tree{
		id:        id,
		name:      name,
		kind:      kind,
		reg:       reg,
		logger:    ctxlog.FromContext(ctx),
		users:     make(map[groupUser]struct{}),
		observers: make(map[int]Observer),
	}
}

// ID returns the process-unique tree id.
func (t *Tree) ID() TreeID { return t.id }

// Kind returns the tree kind used to poll node types.
func (t *Tree) Kind() string { return t.kind }

// Registry returns the node type registry the tree was created with.
func (t *Tree) Registry() *registry.Registry { return t.reg }

// Name returns the tree name.
func (t *Tree) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// Rename changes the tree name.
func (t *Tree) Rename(name string) {
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()
}

// Version is incremented by every edit.
func (t *Tree) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// NodeCount returns the number of live nodes.
func (t *Tree) NodeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodes.len()
}

// LinkCount returns the number of live links.
func (t *Tree) LinkCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.links.len()
}

// SocketCount returns the number of live sockets across all nodes.
func (t *Tree) SocketCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sockets.len()
}

// pending collects the work an edit defers until the tree lock is released.
type pending struct {
	events  []Event
	dirty   bool
	iface   bool
	release []groupUser
	acquire []groupUser
}

// edit runs fn under the tree lock. fn must either fail before mutating
// anything or succeed; deferred notifications are discarded on failure.
func (t *Tree) edit(fn func() error) error {
	t.mu.Lock()
	t.pend = pending{}
	err := fn()
	p := t.pend
	t.pend = pending{}
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.version++

	var users []groupUser
	if p.dirty || p.iface {
		users = t.userListLocked()
	}
	var iface interfaceCopy
	if p.iface {
		iface = t.interfaceCopyLocked()
	}
	observers := t.observerListLocked()
	t.mu.Unlock()

	for _, r := range p.release {
		r.tree.removeUser(groupUser{tree: t, node: r.node})
	}
	for _, a := range p.acquire {
		a.tree.addUser(groupUser{tree: t, node: a.node})
	}
	for _, u := range users {
		if p.iface {
			u.tree.syncGroupNode(u.node, t, iface)
		}
		if p.dirty {
			u.tree.markNodeDirty(u.node)
		}
	}
	for _, ev := range p.events {
		for _, o := range observers {
			o.Observe(ev)
		}
	}
	return nil
}

func (t *Tree) emitLocked(kind EventKind, nodeName, detail string) {
	t.pend.events = append(t.pend.events, Event{
		Kind:   kind,
		Tree:   t.name,
		TreeID: t.id,
		Node:   nodeName,
		Detail: detail,
	})
}

func (t *Tree) userListLocked() []groupUser {
	out := make([]groupUser, 0, len(t.users))
	for u := range t.users {
		out = append(out, u)
	}
	// Map order is random; keep resync order deterministic.
	slices.SortFunc(out, func(a, b groupUser) int {
		if a.tree.id != b.tree.id {
			return int(a.tree.id) - int(b.tree.id)
		}
		return int(a.node.index) - int(b.node.index)
	})
	return out
}

func (t *Tree) addUser(u groupUser) {
	t.mu.Lock()
	t.users[u] = struct{}{}
	t.mu.Unlock()
}

func (t *Tree) removeUser(u groupUser) {
	t.mu.Lock()
	delete(t.users, u)
	t.mu.Unlock()
}

// lookupNode resolves a node handle of this tree.
func (t *Tree) lookupNode(h NodeHandle) (*node, error) {
	if h.tree != t.id {
		return nil, ErrCrossTreeEndpoint
	}
	n, ok := t.nodes.get(h.handle)
	if !ok {
		return nil, ErrStaleHandle
	}
	return n, nil
}

func (t *Tree) lookupSocket(h SocketHandle) (*socket, error) {
	if h.tree != t.id {
		return nil, ErrCrossTreeEndpoint
	}
	s, ok := t.sockets.get(h.handle)
	if !ok {
		return nil, ErrStaleHandle
	}
	return s, nil
}

func (t *Tree) lookupIface(h InterfaceHandle) (*ifaceSocket, error) {
	if h.tree != t.id {
		return nil, ErrCrossTreeEndpoint
	}
	s, ok := t.ifaces.get(h.handle)
	if !ok {
		return nil, ErrStaleHandle
	}
	return s, nil
}

func (t *Tree) mustNode(h NodeHandle) *node {
	n, _ := t.nodes.get(h.handle)
	return n
}

func (t *Tree) mustSocket(h SocketHandle) *socket {
	s, _ := t.sockets.get(h.handle)
	return s
}
