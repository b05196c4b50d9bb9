// Package app turns a validated Config into a running process: Wire builds
// the backing services and the selected mode decides which loops run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/arbwatch/internal/config"
)

type modeFunc func(*App, context.Context, *Dependencies) error

// modes maps the mode setting onto its entry point.
var modes = map[string]modeFunc{
	"detect":   (*App).DetectMode,
	"ingest":   (*App).IngestMode,
	"backfill": (*App).BackfillMode,
	"archive":  (*App).ArchiveMode,
	"full":     (*App).FullMode,
}

type App struct {
	cfg    *config.Config
	logger *slog.Logger

	closeOnce sync.Once
	cleanup   func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and blocks in the configured mode until ctx is
// cancelled. Backfill returns once its single pass is done.
func (a *App) Run(ctx context.Context) error {
	a.cfg.Mode = strings.ToLower(strings.TrimSpace(a.cfg.Mode))
	run, ok := modes[a.cfg.Mode]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.logger.InfoContext(ctx, "starting", slog.String("mode", a.cfg.Mode))
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	a.cleanup = cleanup

	return run(a, ctx, deps)
}

// Close releases everything Wire opened. Repeated calls do nothing.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.cleanup == nil {
			return
		}
		a.logger.Info("releasing resources")
		a.cleanup()
	})
}
