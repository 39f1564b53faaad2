package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/audit"
	"smartquote/internal/config"
	"smartquote/internal/filter"
	"smartquote/internal/logging"
	"smartquote/internal/metrics"
	"smartquote/internal/resolver"
	"smartquote/internal/storage"
)

const (
	EmailStatusFetched   = "fetched"
	EmailStatusProcessed = "processed"
	EmailStatusSkipped   = "skipped"
	EmailStatusFailed    = "failed"
	EmailStatusExported  = "exported"
)

var ErrNoUnit = errors.New("no business unit: set DEFAULT_UNIT or pass --unit")

// ProcessingService runs stored requisition e-mails through extraction,
// filtering, resolution and audit, and records the outcome.
type ProcessingService struct {
	db       *storage.DB
	cfg      config.Config
	resolver *resolver.Resolver
	filter   *filter.Filter
	auditor  *audit.Auditor
	logger   *zap.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, res *resolver.Resolver, logger *zap.Logger) *ProcessingService {
	f := filter.Default()
	return &ProcessingService{
		db:       db,
		cfg:      cfg,
		resolver: res,
		filter:   f,
		auditor:  audit.New(f),
		logger:   logging.OrNop(logger),
	}
}

type ProcessResult struct {
	EmailID   int
	RunID     string
	Processed int
	Skipped   bool
	Stats     internal.BatchStats
	Audit     internal.AuditReport
}

// LinesResult is the outcome of resolving one document.
type LinesResult struct {
	Batch      internal.BatchResult
	Audit      internal.AuditReport
	Candidates []internal.CandidateTerm
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(EmailStatusFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedTerms := 0
	for _, email := range pending {
		if err := ctx.Err(); err != nil {
			return processedEmails, processedTerms, err
		}
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, processedTerms, err
		}
		processedEmails++
		processedTerms += res.Processed
	}
	return processedEmails, processedTerms, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	log := s.logger.With(zap.Int("email_id", email.ID), zap.String("message_id", email.MessageID))

	unit := s.cfg.UnitOrDefault("")
	if unit == "" {
		return ProcessResult{}, ErrNoUnit
	}

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	ext, err := ExtractLinesFromEmailRaw(raw)
	if err != nil {
		_ = s.db.UpdateEmailStatus(email.ID, EmailStatusFailed)
		metrics.EmailsProcessedTotal.WithLabelValues(EmailStatusFailed).Inc()
		return ProcessResult{}, fmt.Errorf("parse email %d: %w", email.ID, err)
	}

	detect := DetectRequisition(firstNonEmpty(ext.Subject, email.Subject), ext.Text, ext.HTML, ext.Attachments)
	if err := s.db.ClearEmailProcessing(email.ID); err != nil {
		return ProcessResult{}, err
	}

	if !detect.IsRequisition {
		log.Info("not a requisition, skipping", zap.Float64("score", detect.Score))
		_ = s.db.UpdateEmailStatus(email.ID, EmailStatusSkipped)
		metrics.EmailsProcessedTotal.WithLabelValues(EmailStatusSkipped).Inc()
		_ = s.db.InsertRun(internal.RunRecord{
			RunID:   newRunID(),
			EmailID: email.ID,
			Unit:    unit,
			Counts:  map[string]int{"extracted": len(ext.Lines), "candidates": 0},
			Timings: map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		})
		return ProcessResult{EmailID: email.ID, Skipped: true}, nil
	}

	for _, line := range ext.Lines {
		if _, err := s.db.InsertExtraction(email.ID, line); err != nil {
			return ProcessResult{}, err
		}
	}

	emailID := email.ID
	out, err := s.ProcessLines(ctx, ext.Lines, unit, &emailID)
	if err != nil {
		return ProcessResult{}, err
	}

	if err := s.db.UpdateEmailStatus(email.ID, EmailStatusProcessed); err != nil {
		return ProcessResult{}, err
	}
	metrics.EmailsProcessedTotal.WithLabelValues(EmailStatusProcessed).Inc()

	log.Info("requisition processed",
		zap.String("run_id", out.Batch.RunID),
		zap.Int("lines", len(ext.Lines)),
		zap.Int("terms", len(out.Candidates)),
		zap.Float64("coverage", out.Audit.CoverageScore),
	)
	return ProcessResult{
		EmailID:   email.ID,
		RunID:     out.Batch.RunID,
		Processed: len(out.Candidates),
		Stats:     out.Batch.Stats,
		Audit:     out.Audit,
	}, nil
}

// ProcessLines resolves the lines of one document and stores the items and
// the run. emailID is nil for documents that did not come from the mailbox.
func (s *ProcessingService) ProcessLines(ctx context.Context, lines []internal.ExtractedLine, unit string, emailID *int) (LinesResult, error) {
	start := time.Now()

	candidates := BuildCandidates(lines, s.filter, unit)
	terms := candidateTexts(candidates)

	resolveStart := time.Now()
	batch, err := s.resolver.ResolveBatch(ctx, terms, unit)
	if err != nil {
		return LinesResult{}, err
	}
	resolveMs := float64(time.Since(resolveStart).Milliseconds())

	report := s.auditor.Audit(rawLineTexts(lines), batch.Items)

	if err := s.db.InsertResolutions(batch.RunID, emailID, batch.Items); err != nil {
		return LinesResult{}, err
	}

	rec := internal.RunRecord{
		RunID: batch.RunID,
		Unit:  unit,
		Counts: map[string]int{
			"extracted":  len(lines),
			"candidates": len(candidates),
			"confirmed":  batch.Stats.Confirmed,
			"pending":    batch.Stats.Pending,
			"notFound":   batch.Stats.NotFound,
			"duplicate":  batch.Stats.Duplicate,
		},
		Timings: map[string]float64{
			"resolveMs": resolveMs,
			"totalMs":   float64(time.Since(start).Milliseconds()),
		},
		CoverageScore: report.CoverageScore,
		AccuracyScore: report.AccuracyScore,
	}
	if emailID != nil {
		rec.EmailID = *emailID
	}
	if err := s.db.InsertRun(rec); err != nil {
		return LinesResult{}, err
	}

	return LinesResult{Batch: batch, Audit: report, Candidates: candidates}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func newRunID() string {
	return uuid.NewString()
}
