package app

import (
	"context"

	"github.com/bep/debounce"
	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/editorlink"
	"github.com/vk/nodeweave/internal/graph"
)

// Serve keeps the library evaluated until ctx is cancelled. Every edit to a
// loaded tree schedules a pass once edits have settled for the configured
// debounce interval. The health check server and the editor connection
// live as long as Serve.
func (a *App) Serve(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.startHealthcheckServer()
	defer a.closeHealthcheckServer()

	if a.config.EditorURL != "" {
		link, err := editorlink.Dial(ctx, editorlink.Config{URL: a.config.EditorURL, OnTag: a.tagTree})
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.editor = link
		a.mu.Unlock()
		defer func() {
			a.mu.Lock()
			a.editor = nil
			a.mu.Unlock()
			link.Close()
		}()
	}

	trigger := make(chan struct{}, 1)
	fire := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	debounced := debounce.New(a.config.Debounce)
	edited := graph.ObserverFunc(func(ev graph.Event) {
		switch ev.Kind {
		case graph.EventCommitted, graph.EventLinkRejected:
			return
		}
		debounced(fire)
	})

	entries := a.library.Entries()
	for _, e := range entries {
		defer a.metrics.Watch(e.Tree)()
		defer e.Tree.Subscribe(edited)()
		if link := a.editorLink(); link != nil {
			link.Watch(e.Tree)
		}
	}
	a.logger.Info("Serving.", "trees", len(entries), "debounce", a.config.Debounce)

	fire()
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Serve stopped.")
			return nil
		case <-trigger:
			if _, err := a.Evaluate(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Warn("Evaluation finished with errors.", "error", err)
			}
		}
	}
}

func (a *App) tagTree(name string) {
	if err := a.library.Tag(name); err != nil {
		a.logger.Warn("Editor tagged an unknown tree.", "tree", name)
	}
}
