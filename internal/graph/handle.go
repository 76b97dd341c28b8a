package graph

import (
	"fmt"
	"sync/atomic"
)

// TreeID identifies a tree within the process.
type TreeID uint64

var lastTreeID atomic.Uint64

func nextTreeID() TreeID {
	return TreeID(lastTreeID.Add(1))
}

// handle is the common shape of every arena handle. The zero value never
// refers to a live element because generations start at 1.
type handle struct {
	tree  TreeID
	index uint32
	gen   uint32
}

func (h handle) valid() bool { return h.gen != 0 }

func (h handle) String() string {
	if !h.valid() {
		return "<nil>"
	}
	return fmt.Sprintf("%d:%d@%d", h.tree, h.index, h.gen)
}

// NodeHandle refers to a node of one tree.
type NodeHandle struct{ handle }

// SocketHandle refers to a socket of one tree.
type SocketHandle struct{ handle }

// LinkHandle refers to a link of one tree.
type LinkHandle struct{ handle }

// InterfaceHandle refers to an interface socket of one tree.
type InterfaceHandle struct{ handle }

// IsZero reports whether h is the zero handle.
func (h NodeHandle) IsZero() bool { return !h.valid() }

// Tree returns the id of the owning tree.
func (h NodeHandle) Tree() TreeID { return h.tree }

// IsZero reports whether h is the zero handle.
func (h SocketHandle) IsZero() bool { return !h.valid() }

// Tree returns the id of the owning tree.
func (h SocketHandle) Tree() TreeID { return h.tree }

// IsZero reports whether h is the zero handle.
func (h LinkHandle) IsZero() bool { return !h.valid() }

// IsZero reports whether h is the zero handle.
func (h InterfaceHandle) IsZero() bool { return !h.valid() }

type slot[T any] struct {
	gen  uint32
	live bool
	val  T
}

// arena stores values in reusable slots. Removing a value bumps the slot's
// generation so earlier handles to it stop resolving.
type arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func (a *arena[T]) insert(tree TreeID, v T) handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		idx = uint32(len(a.slots) - 1)
	}
	s := &a.slots[idx]
	s.gen++
	s.live = true
	s.val = v
	a.count++
	return handle{tree: tree, index: idx, gen: s.gen}
}

func (a *arena[T]) get(h handle) (T, bool) {
	var zero T
	if !h.valid() || int(h.index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.index]
	if !s.live || s.gen != h.gen {
		return zero, false
	}
	return s.val, true
}

func (a *arena[T]) remove(h handle) bool {
	if _, ok := a.get(h); !ok {
		return false
	}
	s := &a.slots[h.index]
	var zero T
	s.val = zero
	s.live = false
	a.free = append(a.free, h.index)
	a.count--
	return true
}

func (a *arena[T]) len() int { return a.count }
