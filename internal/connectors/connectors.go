// Package connectors pulls requisition e-mails from a mailbox and keeps the
// raw message on disk next to an emails row.
package connectors

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/config"
	"smartquote/internal/connectors/gmail"
	"smartquote/internal/connectors/imap"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// New builds the connector named by provider ("gmail" or "imap").
func New(ctx context.Context, cfg config.Config, provider string, logger *zap.Logger) (MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderGmail:
		return gmail.NewConnector(ctx, cfg, logger)
	case ProviderIMAP:
		return imap.NewConnector(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown mail provider %q (want gmail or imap)", provider)
	}
}
