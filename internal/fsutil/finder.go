// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// FindFilesByExtension returns the files below root whose names end with
// extension, in lexical order. A root that is a regular file is returned
// as is, whatever its extension.
func FindFilesByExtension(root string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	files, err := doublestar.FilepathGlob(filepath.Join(root, "**", "*"+extension), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
