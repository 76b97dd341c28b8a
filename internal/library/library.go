// Package library holds the named node trees of a project. It is the data
// block container trees are created in, removed from and persisted through.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/document"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/registry"
)

var (
	// ErrNotFound is returned for names that are not in the library.
	ErrNotFound = errors.New("tree not found")
	// ErrNameTaken is returned when an imported tree collides with an
	// existing one.
	ErrNameTaken = errors.New("tree name already in use")
)

// Entry is a tree stored in the library.
type Entry struct {
	ID   string
	Tree *graph.Tree
}

// Library is a set of uniquely named trees. It is safe for concurrent use.
type Library struct {
	ctx context.Context
	reg *registry.Registry

	mu      sync.RWMutex
	entries []*Entry
	tagged  map[string]bool
}

// New creates an empty library. Trees it creates log through ctx's logger.
func New(ctx context.Context, reg *registry.Registry) *Library {
	return &Library{ctx: ctx, reg: reg, tagged: map[string]bool{}}
}

// Registry returns the registry trees of the library are built against.
func (l *Library) Registry() *registry.Registry { return l.reg }

// New creates an empty tree. The name is made unique with a ".NNN" suffix.
func (l *Library) New(name, kind string) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	name = l.uniqueNameLocked(name)
	e := &Entry{ID: uuid.New().String(), Tree: graph.NewTree(l.ctx, l.reg, name, kind)}
	l.entries = append(l.entries, e)
	ctxlog.FromContext(l.ctx).Debug("Tree created.", "tree", name, "kind", kind, "id", e.ID)
	return e
}

func (l *Library) uniqueNameLocked(base string) string {
	if l.indexLocked(base) < 0 {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", base, i)
		if l.indexLocked(candidate) < 0 {
			return candidate
		}
	}
}

func (l *Library) indexLocked(name string) int {
	return slices.IndexFunc(l.entries, func(e *Entry) bool { return e.Tree.Name() == name })
}

// Get finds a tree by name.
func (l *Library) Get(name string) (*Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexLocked(name); i >= 0 {
		return l.entries[i], true
	}
	return nil, false
}

// ByID finds a tree by id.
func (l *Library) ByID(id string) (*Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Entries returns the trees in creation order.
func (l *Library) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Rename renames a tree. Group nodes refer to trees by pointer, so users
// keep working and are written with the new name on the next export.
func (l *Library) Rename(name, newName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if name == newName {
		return nil
	}
	if l.indexLocked(newName) >= 0 {
		return fmt.Errorf("%w: %q", ErrNameTaken, newName)
	}
	l.entries[i].Tree.Rename(newName)
	if l.tagged[name] {
		delete(l.tagged, name)
		l.tagged[newName] = true
	}
	return nil
}

// Remove deletes a tree. Group nodes in other trees that wrap it are
// cleared, and its own group nodes stop using the trees they wrap.
func (l *Library) Remove(name string) error {
	l.mu.Lock()
	i := l.indexLocked(name)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	e := l.entries[i]
	l.entries = slices.Delete(l.entries, i, i+1)
	delete(l.tagged, name)
	l.mu.Unlock()

	users := len(e.Tree.Users())
	e.Tree.Detach()
	releaseGroups(e.Tree)
	ctxlog.FromContext(l.ctx).Info("Tree removed.", "tree", name, "id", e.ID, "detached_users", users)
	return nil
}

// Tag marks every node of a tree for update and records the tree so the
// next Tagged call reports it.
func (l *Library) Tag(name string) error {
	e, ok := l.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	e.Tree.TagForUpdate()
	l.mu.Lock()
	l.tagged[name] = true
	l.mu.Unlock()
	return nil
}

// TagAll tags every tree.
func (l *Library) TagAll() {
	for _, e := range l.Entries() {
		_ = l.Tag(e.Tree.Name())
	}
}

// Tagged returns the trees tagged since the last ClearTags, in creation order.
func (l *Library) Tagged() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Entry
	for _, e := range l.entries {
		if l.tagged[e.Tree.Name()] {
			out = append(out, e)
		}
	}
	return out
}

// ClearTags forgets every tag.
func (l *Library) ClearTags() {
	l.mu.Lock()
	clear(l.tagged)
	l.mu.Unlock()
}

// Import decodes a document into the library. Group nodes may refer to
// trees already in the library. Trees whose names are taken are rejected
// and nothing is imported.
func (l *Library) Import(ctx context.Context, filename string, src []byte) ([]*Entry, error) {
	return l.importDocument(ctx, filename, src, "")
}

// Restore imports a document holding a single tree under a known id. The
// block store uses it to bring saved trees back with their identity.
func (l *Library) Restore(ctx context.Context, id, filename string, src []byte) (*Entry, error) {
	entries, err := l.importDocument(ctx, filename, src, id)
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

func (l *Library) importDocument(ctx context.Context, filename string, src []byte, id string) ([]*Entry, error) {
	trees, err := document.Decode(ctx, l.reg, filename, src, document.WithResolver(func(name string) (*graph.Tree, bool) {
		if e, ok := l.Get(name); ok {
			return e.Tree, true
		}
		return nil, false
	}))
	if err != nil {
		return nil, err
	}
	if id != "" && len(trees) != 1 {
		for _, t := range trees {
			releaseGroups(t)
		}
		return nil, fmt.Errorf("document %s holds %d trees, want 1", filename, len(trees))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tr := range trees {
		if l.indexLocked(tr.Name()) >= 0 {
			for _, t := range trees {
				releaseGroups(t)
			}
			return nil, fmt.Errorf("%w: %q", ErrNameTaken, tr.Name())
		}
	}
	out := make([]*Entry, 0, len(trees))
	for _, tr := range trees {
		e := &Entry{ID: id, Tree: tr}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		l.entries = append(l.entries, e)
		out = append(out, e)
	}
	ctxlog.FromContext(ctx).Info("Document imported.", "document", filename, "trees", len(out))
	return out, nil
}

// ImportFile reads a document from disk and imports it.
func (l *Library) ImportFile(ctx context.Context, path string) ([]*Entry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return l.Import(ctx, path, src)
}

// Export encodes the named trees, or every tree when no name is given,
// together with the trees their group nodes wrap. Wrapped trees are written
// before their users.
func (l *Library) Export(names ...string) ([]byte, error) {
	trees, err := l.Closure(names...)
	if err != nil {
		return nil, err
	}
	return document.Encode(trees...), nil
}

// Closure returns the named trees and every tree they instance, with
// wrapped trees ordered before their users.
func (l *Library) Closure(names ...string) ([]*graph.Tree, error) {
	var roots []*graph.Tree
	if len(names) == 0 {
		for _, e := range l.Entries() {
			roots = append(roots, e.Tree)
		}
	}
	for _, name := range names {
		e, ok := l.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		roots = append(roots, e.Tree)
	}

	var out []*graph.Tree
	seen := map[*graph.Tree]bool{}
	var visit func(*graph.Tree)
	visit = func(tr *graph.Tree) {
		if seen[tr] {
			return
		}
		seen[tr] = true
		for _, h := range tr.Nodes() {
			if inner, ok := tr.GroupTree(h); ok {
				visit(inner)
			}
		}
		out = append(out, tr)
	}
	for _, tr := range roots {
		visit(tr)
	}
	return out, nil
}

func releaseGroups(tr *graph.Tree) {
	for _, h := range tr.Nodes() {
		if _, ok := tr.GroupTree(h); ok {
			_ = tr.SetGroupTree(h, nil)
		}
	}
}
