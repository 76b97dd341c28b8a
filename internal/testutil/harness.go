// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/sockettype"
	"github.com/vk/nodeweave/modules/compositor"
	"github.com/vk/nodeweave/modules/core"
	"github.com/vk/nodeweave/modules/shader"
	"github.com/vk/nodeweave/modules/texture"
)

// WriteFiles writes files, keyed by slash separated path, below a new
// temporary directory and returns the directory.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// NewRegistry returns a sealed registry holding the given modules, or every
// built-in module when none is given. Catalogs below catalogDir are loaded
// when it is not empty, and the result must validate.
func NewRegistry(t *testing.T, catalogDir string, modules ...registry.Module) *registry.Registry {
	t.Helper()
	ctx := context.Background()
	if len(modules) == 0 {
		modules = []registry.Module{&core.Module{}, &shader.Module{}, &compositor.Module{}, &texture.Module{}}
	}
	r := registry.New(sockettype.NewDefault())
	r.RegisterModules(ctx, modules...)
	require.NoError(t, r.LoadCatalogs(ctx, catalogDir))
	require.NoError(t, r.Validate(ctx))
	r.Seal()
	return r
}
