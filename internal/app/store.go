package app

import (
	"context"
	"errors"

	"github.com/vk/nodeweave/internal/blockstore"
)

// ErrNoDatabase is returned by store operations when no database path is configured.
var ErrNoDatabase = errors.New("no database configured")

func (a *App) openStore() (*blockstore.Store, error) {
	if a.config.DBPath == "" {
		return nil, ErrNoDatabase
	}
	return blockstore.Open(a.config.DBPath)
}

// SaveStore writes every tree of the library to the block store.
func (a *App) SaveStore(ctx context.Context) (blockstore.SaveStats, error) {
	st, err := a.openStore()
	if err != nil {
		return blockstore.SaveStats{}, err
	}
	defer st.Close()
	stats, err := st.Save(ctx, a.library)
	if err != nil {
		return stats, err
	}
	a.logger.Info("Library saved.", "db", a.config.DBPath,
		"written", stats.Written, "unchanged", stats.Unchanged, "deleted", stats.Deleted)
	return stats, nil
}

// LoadStore brings every tree of the block store into the library.
func (a *App) LoadStore(ctx context.Context) (int, error) {
	st, err := a.openStore()
	if err != nil {
		return 0, err
	}
	defer st.Close()
	n, err := st.Load(ctx, a.library)
	if err != nil {
		return n, err
	}
	a.logger.Info("Library loaded from store.", "db", a.config.DBPath, "trees", n)
	return n, nil
}
