package graph

import (
	"errors"
	"fmt"

	"github.com/vk/nodeweave/internal/registry"
)

// errNoChange aborts an edit that turned out to have nothing to do.
var errNoChange = errors.New("no change")

// GroupUser is a group node in another tree that wraps this tree.
type GroupUser struct {
	Tree *Tree
	Node NodeHandle
}

// Users returns the group nodes currently wrapping the tree.
func (t *Tree) Users() []GroupUser {
	t.mu.Lock()
	list := t.userListLocked()
	t.mu.Unlock()
	out := make([]GroupUser, 0, len(list))
	for _, u := range list {
		out = append(out, GroupUser{Tree: u.tree, Node: u.node})
	}
	return out
}

// GroupTree returns the tree wrapped by a group node.
func (t *Tree) GroupTree(h NodeHandle) (*Tree, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupNode(h)
	if err != nil || n.group == nil {
		return nil, false
	}
	return n.group, true
}

// SetGroupTree makes a group node wrap inner, replacing its sockets with a
// mirror of inner's interface. A nil inner clears the group node. Nesting a
// tree inside itself, directly or through other groups, fails with
// ErrCycleDetected.
func (t *Tree) SetGroupTree(h NodeHandle, inner *Tree) error {
	if inner != nil {
		if inner == t || inner.containsTree(t) {
			return fmt.Errorf("%w: tree %q cannot contain itself", ErrCycleDetected, t.Name())
		}
		if inner.kind != t.kind {
			return fmt.Errorf("%w: %s group in %s tree", ErrPollFailed, inner.kind, t.kind)
		}
	}
	var iface interfaceCopy
	detail := "group cleared"
	if inner != nil {
		inner.mu.Lock()
		iface = inner.interfaceCopyLocked()
		detail = "group " + inner.name
		inner.mu.Unlock()
	}

	err := t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil {
			return err
		}
		if n.role != registry.RoleGroup {
			return fmt.Errorf("%w: %s", ErrNotGroup, n.name)
		}
		if n.group == inner {
			return errNoChange
		}
		if n.group != nil {
			t.pend.release = append(t.pend.release, groupUser{tree: n.group, node: n.handle})
		}
		if inner != nil {
			t.pend.acquire = append(t.pend.acquire, groupUser{tree: inner, node: n.handle})
		}
		n.group = inner
		t.mirrorLocked(n, Input, iface.inputs, false)
		t.mirrorLocked(n, Output, iface.outputs, false)
		t.emitLocked(EventNodeChanged, n.name, detail)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

// containsTree reports whether target is nested anywhere below t.
func (t *Tree) containsTree(target *Tree) bool {
	seen := map[*Tree]bool{}
	stack := []*Tree{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for _, g := range cur.groupTrees() {
			if g == target {
				return true
			}
			stack = append(stack, g)
		}
	}
	return false
}

func (t *Tree) groupTrees() []*Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Tree
	for _, h := range t.nodeOrder {
		if n := t.mustNode(h); n.group != nil {
			out = append(out, n.group)
		}
	}
	return out
}

// Detach clears every group node wrapping the tree. It is called when the
// tree is removed from its library.
func (t *Tree) Detach() {
	for _, u := range t.Users() {
		if err := u.Tree.SetGroupTree(u.Node, nil); err != nil && !errors.Is(err, ErrStaleHandle) {
			t.logger.Warn("Failed to detach group user.", "tree", t.Name(), "user", u.Tree.Name(), "error", err)
		}
	}
}

// syncGroupNode re-derives a group node's sockets from inner's interface.
func (t *Tree) syncGroupNode(h NodeHandle, inner *Tree, iface interfaceCopy) {
	_ = t.edit(func() error {
		n, err := t.lookupNode(h)
		if err != nil || n.group != inner {
			return errNoChange
		}
		t.mirrorLocked(n, Input, iface.inputs, false)
		t.mirrorLocked(n, Output, iface.outputs, false)
		t.emitLocked(EventNodeChanged, n.name, "group sync")
		return nil
	})
}
