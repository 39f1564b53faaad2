// Package listener polls a mailbox for requisition e-mails, resolves them and
// writes one spreadsheet per processed e-mail.
package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"smartquote/internal/config"
	"smartquote/internal/connectors"
	"smartquote/internal/logging"
	"smartquote/internal/metrics"
	"smartquote/internal/pipeline"
	"smartquote/internal/storage"
)

const exportScanLimit = 200

// ConnectorFactory opens the mailbox connector for one cycle.
type ConnectorFactory func(ctx context.Context, provider string) (connectors.MailConnector, error)

type Service struct {
	db           *storage.DB
	cfg          config.Config
	processor    *pipeline.ProcessingService
	newConnector ConnectorFactory
	logger       *zap.Logger
}

type CycleResult struct {
	Fetched   int
	New       int
	Processed int
	Exported  int
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	return &Service{
		db:        db,
		cfg:       cfg,
		processor: processor,
		logger:    logger,
		newConnector: func(ctx context.Context, provider string) (connectors.MailConnector, error) {
			return connectors.New(ctx, cfg, provider, logger)
		},
	}
}

// WithConnectorFactory replaces how the mailbox connector is built.
func (s *Service) WithConnectorFactory(f ConnectorFactory) *Service {
	s.newConnector = f
	return s
}

func (s *Service) interval() time.Duration {
	if s.cfg.MailListenerIntervalSec <= 0 {
		return time.Minute
	}
	return time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
}

// Run polls until ctx is done. A failed cycle is logged and retried on the
// next tick.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("listener started",
		zap.String("provider", s.provider()),
		zap.String("label", s.cfg.MailListenerLabel),
		zap.Duration("interval", s.interval()),
	)
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("listener stopped")
			return nil
		case <-time.After(s.interval()):
		}
	}
}

func (s *Service) provider() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
}

// RunOnce fetches, processes and optionally exports a single time.
func (s *Service) RunOnce(ctx context.Context) (CycleResult, error) {
	res, err := s.runCycle(ctx)
	switch {
	case err != nil:
		metrics.ListenerCyclesTotal.WithLabelValues(metrics.ResultError).Inc()
	case res.Processed == 0:
		metrics.ListenerCyclesTotal.WithLabelValues(metrics.ResultEmpty).Inc()
	default:
		metrics.ListenerCyclesTotal.WithLabelValues(metrics.ResultOK).Inc()
	}
	return res, err
}

func (s *Service) runCycle(ctx context.Context) (CycleResult, error) {
	provider := s.provider()
	mailConnector, err := s.newConnector(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.logger)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, fmt.Errorf("fetch: %w", err)
	}

	processedEmails, processedTerms, err := s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return CycleResult{}, fmt.Errorf("process: %w", err)
	}

	res := CycleResult{Fetched: fetchResult.Fetched, New: fetchResult.New, Processed: processedEmails}
	if s.cfg.MailListenerAutoExport {
		exported, err := s.exportProcessed(provider)
		if err != nil {
			return res, fmt.Errorf("export: %w", err)
		}
		res.Exported = exported
	}

	s.logger.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", res.Fetched),
		zap.Int("new", res.New),
		zap.Int("processed", res.Processed),
		zap.Int("terms", processedTerms),
		zap.Int("exported", res.Exported),
	)
	return res, nil
}

func (s *Service) exportProcessed(provider string) (int, error) {
	emails, err := s.db.ListEmailsByStatus(pipeline.EmailStatusProcessed, exportScanLimit)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, email := range emails {
		if email.Provider != provider {
			continue
		}
		rows, err := s.db.GetExportRows(email.ID)
		if err != nil {
			return exported, err
		}
		if len(rows) == 0 {
			continue
		}
		outputPath := ExportPath(s.cfg.OutputDir, email.ID, email.MessageID)
		if err := pipeline.ExportRowsToXLSX(rows, outputPath); err != nil {
			return exported, err
		}
		if err := s.db.UpdateEmailStatus(email.ID, pipeline.EmailStatusExported); err != nil {
			return exported, err
		}
		exported++
		s.logger.Debug("quote exported", zap.Int("email_id", email.ID), zap.String("path", outputPath))
	}
	return exported, nil
}

// ExportPath is where the spreadsheet of one e-mail is written.
func ExportPath(outputDir string, emailID int, messageID string) string {
	filename := fmt.Sprintf("%d_%s.xlsx", emailID, sanitizeMessageID(messageID))
	return filepath.Join(outputDir, "listener", filename)
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
