package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartquote/internal"
	"smartquote/internal/config"
	"smartquote/internal/storage"
)

type staticConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (c staticConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return c.messages, c.err
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFetchAndStoreKeepsStatusOfKnownMessages(t *testing.T) {
	db := openDB(t)
	rawDir := filepath.Join(t.TempDir(), "raw")
	msg := internal.FetchedMailMessage{
		Provider:   ProviderIMAP,
		MessageID:  "<req-1@clinica.com.br>",
		Subject:    "Pedido de exames",
		From:       "recepcao@clinica.com.br",
		ReceivedAt: "2026-03-09T13:15:00Z",
		Raw:        []byte("Subject: Pedido de exames\r\n\r\nHemograma\r\n"),
	}
	svc := NewFetchService(db, rawDir, staticConnector{messages: []internal.FetchedMailMessage{msg}}, nil)

	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 1, Stored: 1, New: 1}, res)

	row, err := db.MustEmailByProviderMessageID(ProviderIMAP, msg.MessageID)
	require.NoError(t, err)
	require.NoError(t, db.UpdateEmailStatus(row.ID, "processed"))

	res, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.New)

	row, err = db.MustEmailByProviderMessageID(ProviderIMAP, msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "processed", row.Status)

	blob, err := os.ReadFile(row.RawRef)
	require.NoError(t, err)
	assert.Equal(t, msg.Raw, blob)
}

func TestFetchAndStorePropagatesConnectorError(t *testing.T) {
	boom := errors.New("mailbox down")
	svc := NewFetchService(openDB(t), t.TempDir(), staticConnector{err: boom}, nil)
	_, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	assert.ErrorIs(t, err, boom)
}

func TestStoreRejectsEmptyMessage(t *testing.T) {
	store := NewMailStoreService(openDB(t), t.TempDir())
	_, _, err := store.Store(internal.FetchedMailMessage{Provider: ProviderGmail, MessageID: "x"})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, "pop3", nil)
	assert.Error(t, err)

	_, err = New(context.Background(), config.Config{}, "imap", nil)
	assert.ErrorContains(t, err, "IMAP_HOST")
}
