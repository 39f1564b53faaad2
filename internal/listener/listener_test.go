package listener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartquote/internal"
	"smartquote/internal/catalog"
	"smartquote/internal/config"
	"smartquote/internal/connectors"
	"smartquote/internal/pipeline"
	"smartquote/internal/resolver"
	"smartquote/internal/storage"
)

type staticConnector struct {
	messages []internal.FetchedMailMessage
}

func (c staticConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return c.messages, nil
}

func newService(t *testing.T, conn connectors.MailConnector) (*Service, *storage.DB, config.Config) {
	t.Helper()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.ReplaceCatalog("centro", []internal.CatalogEntry{
		{ID: 1, DisplayName: "Hemograma Completo", Price: 12.5},
		{ID: 2, DisplayName: "Glicose em Jejum", Price: 8},
		{ID: 3, DisplayName: "TSH", Price: 30},
		{ID: 5, DisplayName: "Creatinina", Price: 9},
	}))

	cfg := config.Config{
		DefaultUnit:              "centro",
		RawMailDir:               filepath.Join(tmp, "raw"),
		OutputDir:                filepath.Join(tmp, "out"),
		MailListenerProvider:     "imap",
		MailListenerLabel:        "INBOX",
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
		MailListenerAutoExport:   true,
	}
	res := resolver.New(resolver.Deps{Catalog: catalog.NewSnapshotProvider(db), Journal: db})
	proc := pipeline.NewProcessingService(db, cfg, res, nil)
	svc := NewService(db, cfg, proc, nil).WithConnectorFactory(func(context.Context, string) (connectors.MailConnector, error) {
		return conn, nil
	})
	return svc, db, cfg
}

func TestRunOnceProcessesAndExports(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "pipeline", "testdata", "sample_requisition.eml"))
	require.NoError(t, err)
	conn := staticConnector{messages: []internal.FetchedMailMessage{{
		Provider:   "imap",
		MessageID:  "<req-0001@clinicavida.com.br>",
		Subject:    "Pedido de exames - orcamento",
		From:       "recepcao@clinicavida.com.br",
		ReceivedAt: "2026-03-09T13:15:00Z",
		Raw:        raw,
	}}}
	svc, db, cfg := newService(t, conn)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleResult{Fetched: 1, New: 1, Processed: 1, Exported: 1}, res)

	email, err := db.MustEmailByProviderMessageID("imap", "<req-0001@clinicavida.com.br>")
	require.NoError(t, err)
	assert.Equal(t, pipeline.EmailStatusExported, email.Status)

	_, err = os.Stat(ExportPath(cfg.OutputDir, email.ID, email.MessageID))
	require.NoError(t, err)

	res, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 0, res.Exported)
}

func TestRunOnceConnectorError(t *testing.T) {
	svc, _, _ := newService(t, nil)
	boom := errors.New("no credentials")
	svc.WithConnectorFactory(func(context.Context, string) (connectors.MailConnector, error) { return nil, boom })

	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _, _ := newService(t, staticConnector{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx))
}

func TestSanitizeMessageID(t *testing.T) {
	assert.Equal(t, "_req-1_clinica.com.br_", sanitizeMessageID("<req-1@clinica.com.br>"))
}

func TestMetricsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	metricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	metricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
