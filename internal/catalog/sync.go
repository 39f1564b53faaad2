package catalog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/config"
	"smartquote/internal/logging"
	"smartquote/internal/storage"
)

// SyncService copies unit catalogs from a remote Provider into the sqlite
// snapshot read by SnapshotProvider.
type SyncService struct {
	db     *storage.DB
	remote Provider
	cfg    config.Config
	logger *zap.Logger
}

func NewSyncService(db *storage.DB, remote Provider, cfg config.Config, logger *zap.Logger) *SyncService {
	return &SyncService{db: db, remote: remote, cfg: cfg, logger: logging.OrNop(logger)}
}

func lastSyncKey(unit string) string {
	return "catalog.last_sync." + unit
}

func (s *SyncService) SyncUnit(ctx context.Context, unit string) (int, error) {
	entries, err := s.remote.GetCatalog(ctx, unit)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, ErrEmptySnapshot
	}
	if err := s.db.ReplaceCatalog(unit, entries); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata(lastSyncKey(unit), time.Now().UTC().Format(time.RFC3339))
	s.logger.Info("catalog synced", zap.String("unit", unit), zap.Int("entries", len(entries)))
	return len(entries), nil
}

// SyncAll syncs every unit the remote lists. Failures of single units are
// collected and do not stop the others.
func (s *SyncService) SyncAll(ctx context.Context) (map[string]int, error) {
	lister, ok := s.remote.(UnitLister)
	if !ok {
		return nil, errors.New("catalog provider cannot list units")
	}
	units, err := lister.ListUnits(ctx)
	if err != nil {
		return nil, err
	}

	out := map[string]int{}
	var errs []error
	for _, unit := range units {
		n, err := s.SyncUnit(ctx, unit)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[unit] = n
	}
	return out, errors.Join(errs...)
}

// RefreshIfStale syncs the unit when its snapshot is older than
// CatalogMaxAge or missing.
func (s *SyncService) RefreshIfStale(ctx context.Context, unit string) (bool, error) {
	last, err := s.db.GetMetadata(lastSyncKey(unit))
	if err != nil {
		return false, err
	}
	if last != nil {
		if parsed, err := time.Parse(time.RFC3339, *last); err == nil {
			if time.Since(parsed) < s.cfg.CatalogMaxAge {
				return false, nil
			}
		}
	}
	if _, err := s.SyncUnit(ctx, unit); err != nil {
		return false, err
	}
	return true, nil
}

// ImportEntries stores a price list loaded outside the API, e.g. by LoadXLSX.
func (s *SyncService) ImportEntries(unit string, entries []internal.CatalogEntry) error {
	if len(entries) == 0 {
		return ErrEmptySnapshot
	}
	if err := s.db.ReplaceCatalog(unit, entries); err != nil {
		return err
	}
	return s.db.SetMetadata(lastSyncKey(unit), time.Now().UTC().Format(time.RFC3339))
}
