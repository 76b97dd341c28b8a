package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/editorlink"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/library"
	"github.com/vk/nodeweave/internal/metrics"
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/internal/scheduler"
	"github.com/vk/nodeweave/internal/sockettype"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx      context.Context
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	library  *library.Library
	metrics  *metrics.Registry

	mu         sync.Mutex
	evaluators map[graph.TreeID]*scheduler.Evaluator
	editor     *editorlink.Link
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It builds an isolated
// logger writing to logW, registers the node modules (the built-in set when
// none are given), loads the catalogs below ModulesPath and seals the
// registry. A catalog that does not validate is a startup error.
func NewApp(logW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New(sockettype.NewDefault())
	if len(modules) == 0 {
		modules = coreModules
	}
	reg.RegisterModules(ctx, modules...)
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.LoadCatalogs(ctx, cfg.ModulesPath); err != nil {
		return nil, fmt.Errorf("failed to load catalogs: %w", err)
	}
	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}
	reg.Seal()
	logger.Debug("Registry validation passed.", "node_types", len(reg.NodeTypes()))

	return &App{
		ctx:        ctx,
		logger:     logger,
		config:     cfg,
		registry:   reg,
		library:    library.New(ctx, reg),
		metrics:    metrics.NewRegistry(),
		evaluators: map[graph.TreeID]*scheduler.Evaluator{},
	}, nil
}

// Context returns the application context carrying its logger.
func (a *App) Context() context.Context { return a.ctx }

// Registry returns the application's node type registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Library returns the trees loaded into the application.
func (a *App) Library() *library.Library { return a.library }

// Metrics returns the application's metrics registry.
func (a *App) Metrics() *metrics.Registry { return a.metrics }
