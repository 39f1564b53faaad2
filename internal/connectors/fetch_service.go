package connectors

import (
	"context"

	"go.uber.org/zap"

	"smartquote/internal/logging"
	"smartquote/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
	logger    *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
	New     int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, logger *zap.Logger) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		logger:    logging.OrNop(logger),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, created, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		res.Stored++
		if created {
			res.New++
			s.logger.Debug("stored new e-mail",
				zap.Int("email_id", row.ID),
				zap.String("provider", row.Provider),
				zap.String("subject", row.Subject),
			)
		}
	}

	s.logger.Info("mailbox fetched", zap.String("label", label), zap.Int("fetched", res.Fetched), zap.Int("new", res.New))
	return res, nil
}
