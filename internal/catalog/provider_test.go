package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartquote/internal"
	"smartquote/internal/config"
	"smartquote/internal/logging"
	"smartquote/internal/storage"
)

type listingProvider struct {
	StaticProvider
	units []string
	calls int
}

func (p *listingProvider) GetCatalog(ctx context.Context, unit string) ([]internal.CatalogEntry, error) {
	p.calls++
	return p.StaticProvider.GetCatalog(ctx, unit)
}

func (p *listingProvider) ListUnits(context.Context) ([]string, error) {
	return p.units, nil
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFallbackProviderUsesSnapshotWhenRemoteFails(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.ReplaceCatalog("centro", []internal.CatalogEntry{{ID: 9, DisplayName: "TSH"}}))

	remote := StaticProvider{Err: errors.New("connection refused")}
	p := NewFallbackProvider(logging.Nop(), remote, NewSnapshotProvider(db))

	entries, err := p.GetCatalog(context.Background(), "centro")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 9, entries[0].ID)

	_, err = p.GetCatalog(context.Background(), "norte")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestStaticProviderStampsUnit(t *testing.T) {
	entries, err := StaticProvider{Entries: []internal.CatalogEntry{{ID: 1, DisplayName: "Ureia"}}}.GetCatalog(context.Background(), "sul")
	require.NoError(t, err)
	assert.Equal(t, "sul", entries[0].Unit)
}

func TestSyncServiceRefreshIfStale(t *testing.T) {
	db := openDB(t)
	cfg := config.Config{CatalogMaxAge: time.Hour}
	remote := &listingProvider{
		StaticProvider: StaticProvider{Entries: []internal.CatalogEntry{{ID: 1, DisplayName: "Glicose"}, {ID: 2, DisplayName: "Ureia"}}},
		units:          []string{"centro", "norte"},
	}
	svc := NewSyncService(db, remote, cfg, logging.Nop())

	refreshed, err := svc.RefreshIfStale(context.Background(), "centro")
	require.NoError(t, err)
	assert.True(t, refreshed)

	refreshed, err = svc.RefreshIfStale(context.Background(), "centro")
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 1, remote.calls)

	counts, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"centro": 2, "norte": 2}, counts)

	units, err := NewSnapshotProvider(db).ListUnits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"centro", "norte"}, units)
}
