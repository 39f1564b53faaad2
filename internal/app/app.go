// Package app wires the stores, providers and services shared by the
// smartquote commands and the requisition listener.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"smartquote/internal/catalog"
	"smartquote/internal/config"
	"smartquote/internal/learning"
	"smartquote/internal/logging"
	"smartquote/internal/pipeline"
	"smartquote/internal/resolver"
	"smartquote/internal/semantic"
	"smartquote/internal/storage"
	"smartquote/internal/terminology"
)

type App struct {
	Config    config.Config
	Logger    *zap.Logger
	DB        *storage.DB
	Catalog   catalog.Provider
	Sync      *catalog.SyncService
	Learning  learning.Store
	Resolver  *resolver.Resolver
	Processor *pipeline.ProcessingService

	closers []func() error
}

// Open builds the application from cfg. The remote catalog, Redis and Gemini
// are used only when configured; the sqlite snapshot and store are always
// there.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.DBPath, err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	snapshot := catalog.NewSnapshotProvider(db)
	a.Catalog = snapshot
	if cfg.CatalogBaseURL != "" {
		remote := catalog.NewClient(cfg, logger)
		a.Sync = catalog.NewSyncService(db, remote, cfg, logger)
		a.Catalog = catalog.NewFallbackProvider(logger, remote, snapshot)
	}

	store, closeStore, err := learning.Open(cfg, db, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open learning store: %w", err)
	}
	a.Learning = store
	a.closers = append(a.closers, closeStore)

	bridge, err := a.tussBridge()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var normalizer semantic.Normalizer = semantic.Noop{}
	if cfg.GeminiAPIKey != "" {
		g, err := semantic.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		normalizer = g
	}

	deps := resolver.Deps{
		Catalog:         a.Catalog,
		Learning:        store,
		Bridge:          bridge,
		Semantic:        normalizer,
		Journal:         db,
		Thresholds:      resolver.ThresholdsFromConfig(cfg),
		SemanticTimeout: cfg.SemanticTimeout,
		Logger:          logger,
	}
	a.Resolver = resolver.New(deps)
	a.Processor = pipeline.NewProcessingService(db, cfg, a.Resolver, logger)
	return a, nil
}

// tussBridge loads the stored TUSS table, seeding it from TUSS_PATH on first
// use. Without a table the bridge still knows the curated aliases.
func (a *App) tussBridge() (*terminology.TUSSBridge, error) {
	terms, err := a.DB.ListTUSSTerms()
	if err != nil {
		return nil, fmt.Errorf("load tuss terms: %w", err)
	}
	if len(terms) == 0 && a.Config.TUSSPath != "" {
		terms, err = terminology.LoadFile(a.Config.TUSSPath)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", a.Config.TUSSPath, err)
		}
		if err := a.DB.ReplaceTUSSTerms(terms); err != nil {
			return nil, err
		}
		a.Logger.Info("tuss table seeded", zap.String("path", a.Config.TUSSPath), zap.Int("terms", len(terms)))
	}
	return terminology.NewTUSSBridge(terms), nil
}

// RefreshCatalog re-syncs unit from the remote catalog when the snapshot is
// older than CATALOG_MAX_AGE. Without a remote it does nothing.
func (a *App) RefreshCatalog(ctx context.Context, unit string) {
	if a.Sync == nil || unit == "" {
		return
	}
	if _, err := a.Sync.RefreshIfStale(ctx, unit); err != nil {
		a.Logger.Warn("catalog refresh failed, using snapshot", zap.String("unit", unit), zap.Error(err))
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
