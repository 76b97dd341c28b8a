package graph

import "sort"

// EventKind names a change published by a tree.
type EventKind string

const (
	EventNodeAdded        EventKind = "node_added"
	EventNodeRemoved      EventKind = "node_removed"
	EventNodeChanged      EventKind = "node_changed"
	EventParamChanged     EventKind = "param_changed"
	EventSocketChanged    EventKind = "socket_changed"
	EventLinkAdded        EventKind = "link_added"
	EventLinkRemoved      EventKind = "link_removed"
	EventLinkRejected     EventKind = "link_rejected"
	EventInterfaceChanged EventKind = "interface_changed"
	EventTagged           EventKind = "tagged"
	EventCommitted        EventKind = "committed"
)

// Event describes one change to a tree. Node is the node name when the
// change concerns a single node.
type Event struct {
	Kind   EventKind `json:"kind"`
	Tree   string    `json:"tree"`
	TreeID TreeID    `json:"tree_id"`
	Node   string    `json:"node,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Observer receives tree events. Observe is called after the tree lock is
// released, on the goroutine that made the change.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) { f(e) }

// Subscribe registers an observer and returns a function removing it.
func (t *Tree) Subscribe(o Observer) (cancel func()) {
	t.mu.Lock()
	t.obsSeq++
	id := t.obsSeq
	t.observers[id] = o
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.observers, id)
		t.mu.Unlock()
	}
}

func (t *Tree) observerListLocked() []Observer {
	if len(t.observers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(t.observers))
	for id := range t.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.observers[id])
	}
	return out
}

// notify publishes events outside of an edit.
func (t *Tree) notify(events ...Event) {
	t.mu.Lock()
	observers := t.observerListLocked()
	t.mu.Unlock()
	for _, ev := range events {
		for _, o := range observers {
			o.Observe(ev)
		}
	}
}
