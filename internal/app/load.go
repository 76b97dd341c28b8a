package app

import (
	"errors"
	"fmt"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/document"
	"github.com/vk/nodeweave/internal/fsutil"
	"github.com/vk/nodeweave/internal/library"
)

// LoadDocuments imports documents into the library. Directories are searched
// recursively for .hcl files. Documents may instance trees declared in
// other documents of the same call regardless of order.
func (a *App) LoadDocuments(paths ...string) ([]*library.Entry, error) {
	logger := ctxlog.FromContext(a.ctx)

	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loading documents...", "files", len(files))

	var loaded []*library.Entry
	pending := files
	for len(pending) > 0 {
		var retry []string
		var unresolved []error
		for _, file := range pending {
			entries, err := a.library.ImportFile(a.ctx, file)
			switch {
			case errors.Is(err, document.ErrUnresolvedGroup):
				retry = append(retry, file)
				unresolved = append(unresolved, err)
			case err != nil:
				return loaded, err
			default:
				loaded = append(loaded, entries...)
			}
		}
		if len(retry) == len(pending) {
			return loaded, errors.Join(unresolved...)
		}
		pending = retry
	}
	logger.Info("Documents loaded successfully.", "files", len(files), "trees", len(loaded))
	return loaded, nil
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("error accessing document path %s: %w", p, err)
		}
		files = append(files, found...)
	}
	return files, nil
}
