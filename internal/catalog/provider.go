package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/logging"
	"smartquote/internal/storage"
)

var ErrEmptySnapshot = errors.New("catalog snapshot is empty")

// Provider supplies the catalog of one business unit.
type Provider interface {
	GetCatalog(ctx context.Context, unit string) ([]internal.CatalogEntry, error)
}

type UnitLister interface {
	ListUnits(ctx context.Context) ([]string, error)
}

// StaticProvider serves fixed entries regardless of the unit. Used by tests
// and by one-shot runs against an imported price list.
type StaticProvider struct {
	Entries []internal.CatalogEntry
	Err     error
}

func (p StaticProvider) GetCatalog(_ context.Context, unit string) ([]internal.CatalogEntry, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]internal.CatalogEntry, len(p.Entries))
	for i, e := range p.Entries {
		if e.Unit == "" {
			e.Unit = unit
		}
		out[i] = e
	}
	return out, nil
}

// SnapshotProvider reads the last synced snapshot from sqlite.
type SnapshotProvider struct {
	db *storage.DB
}

func NewSnapshotProvider(db *storage.DB) *SnapshotProvider {
	return &SnapshotProvider{db: db}
}

func (p *SnapshotProvider) GetCatalog(ctx context.Context, unit string) ([]internal.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := p.db.ListCatalogEntries(unit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("unit %q: %w", unit, ErrEmptySnapshot)
	}
	return entries, nil
}

func (p *SnapshotProvider) ListUnits(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.db.ListCatalogUnits()
}

// FallbackProvider asks each provider in turn and returns the first
// non-empty catalog.
type FallbackProvider struct {
	providers []Provider
	logger    *zap.Logger
}

func NewFallbackProvider(logger *zap.Logger, providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers, logger: logging.OrNop(logger)}
}

func (p *FallbackProvider) GetCatalog(ctx context.Context, unit string) ([]internal.CatalogEntry, error) {
	var errs []error
	for i, provider := range p.providers {
		entries, err := provider.GetCatalog(ctx, unit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err == nil {
			err = fmt.Errorf("provider %d: %w", i, ErrEmptySnapshot)
		}
		p.logger.Warn("catalog provider failed", zap.Int("provider", i), zap.String("unit", unit), zap.Error(err))
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, ErrEmptySnapshot
	}
	return nil, errors.Join(errs...)
}

func (p *FallbackProvider) ListUnits(ctx context.Context) ([]string, error) {
	var errs []error
	for _, provider := range p.providers {
		lister, ok := provider.(UnitLister)
		if !ok {
			continue
		}
		units, err := lister.ListUnits(ctx)
		if err == nil && len(units) > 0 {
			return units, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return nil, errors.Join(errs...)
}
