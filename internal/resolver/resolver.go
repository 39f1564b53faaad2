package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/catalog"
	"smartquote/internal/learning"
	"smartquote/internal/logging"
	"smartquote/internal/metrics"
	"smartquote/internal/semantic"
	"smartquote/internal/terminology"
	"smartquote/internal/util"
)

// Journal records curation data: terms the catalog lacks, fuzzy suggestions
// worth reviewing and fact/cause/action rows. storage.DB implements it.
type Journal interface {
	LogMissingTerm(unit, term string) error
	LogSuggestion(unit, term, matched string, strategy internal.Strategy) error
	LogFCA(entry internal.FCAEntry) error
}

// Deps are the collaborators of a Resolver. Only Catalog is required.
type Deps struct {
	Catalog         catalog.Provider
	Learning        learning.Store
	Synonyms        *terminology.SynonymTable
	Bridge          terminology.Bridge
	Semantic        semantic.Normalizer
	Journal         Journal
	Scorer          util.Scorer
	Thresholds      Thresholds
	SemanticTimeout time.Duration
	Logger          *zap.Logger
}

type Resolver struct {
	deps Deps
	log  *zap.Logger
}

func New(deps Deps) *Resolver {
	if deps.Synonyms == nil {
		deps.Synonyms = terminology.NewSynonymTable(nil)
	}
	if deps.Scorer == nil {
		deps.Scorer = util.Ratio
	}
	if deps.Semantic == nil {
		deps.Semantic = semantic.Noop{}
	}
	deps.Thresholds = deps.Thresholds.withDefaults()
	deps.Logger = logging.OrNop(deps.Logger)
	return &Resolver{deps: deps, log: deps.Logger}
}

type activeReporter interface {
	Active() bool
}

func (r *Resolver) semanticActive() bool {
	if a, ok := r.deps.Semantic.(activeReporter); ok {
		return a.Active()
	}
	return r.deps.Semantic != nil
}

// ResolveBatch maps every term to catalog entries of unit. It returns exactly
// one item per term, in input order. Failing collaborators degrade the
// affected items; the only error is ErrMalformedInput.
func (r *Resolver) ResolveBatch(ctx context.Context, terms []string, unit string) (internal.BatchResult, error) {
	unit = strings.TrimSpace(unit)
	if terms == nil {
		return internal.BatchResult{}, fmt.Errorf("%w: terms is nil", ErrMalformedInput)
	}
	if unit == "" {
		return internal.BatchResult{}, fmt.Errorf("%w: unit is required", ErrMalformedInput)
	}

	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	runID := uuid.NewString()
	b := &batch{
		runID: runID,
		unit:  unit,
		seen:  map[string]struct{}{},
		log:   r.log.With(zap.String("run_id", runID), zap.String("unit", unit)),
	}
	result := internal.BatchResult{RunID: runID, Unit: unit, Items: make([]internal.ResolutionItem, 0, len(terms))}

	index, err := r.snapshot(ctx, unit)
	if err != nil {
		b.log.Warn("catalog unavailable, degrading batch", zap.Error(err))
		for _, term := range terms {
			result.Items = append(result.Items, newItem(term))
		}
		result.Stats = tally(result.Items)
		result.Stats.CatalogUnavailable = true
		result.Stats.SemanticActive = r.semanticActive()
		r.record(result.Items)
		return result, nil
	}
	b.index = index

	for _, term := range terms {
		result.Items = append(result.Items, r.resolveTerm(ctx, b, term))
	}

	r.semanticPass(ctx, b, result.Items)
	r.journal(b, result.Items)
	r.record(result.Items)

	result.Stats = tally(result.Items)
	result.Stats.CatalogCount = index.Len()
	result.Stats.SemanticActive = r.semanticActive()

	b.log.Info("batch resolved",
		zap.Int("total", result.Stats.Total),
		zap.Int("confirmed", result.Stats.Confirmed),
		zap.Int("pending", result.Stats.Pending),
		zap.Int("not_found", result.Stats.NotFound),
		zap.Int("duplicate", result.Stats.Duplicate),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (r *Resolver) snapshot(ctx context.Context, unit string) (*catalog.Index, error) {
	if r.deps.Catalog == nil {
		metrics.CatalogFetchTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%w: no provider configured", ErrCatalogUnavailable)
	}
	entries, err := r.deps.Catalog.GetCatalog(ctx, unit)
	if err != nil {
		metrics.CatalogFetchTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	index := catalog.BuildIndex(entries)
	if index.Len() == 0 {
		metrics.CatalogFetchTotal.WithLabelValues(metrics.ResultEmpty).Inc()
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, catalog.ErrEmptySnapshot)
	}
	metrics.CatalogFetchTotal.WithLabelValues(metrics.ResultOK).Inc()
	return index, nil
}

func newItem(term string) internal.ResolutionItem {
	return internal.ResolutionItem{
		Term:          term,
		NormalizedKey: util.Normalize(term),
		Status:        internal.StatusNotFound,
		Matches:       []internal.CatalogEntry{},
		Strategy:      internal.StrategyNone,
	}
}

func (r *Resolver) resolveTerm(ctx context.Context, b *batch, term string) internal.ResolutionItem {
	item := newItem(term)
	key := item.NormalizedKey
	if key == "" {
		return item
	}

	if _, dup := b.seen[key]; dup {
		item.Status = internal.StatusDuplicate
		return item
	}
	b.seen[key] = struct{}{}

	learned := r.learnedStage(ctx, b, term, key)
	r.logUnavailable(b, "learned", term, learned)
	if learned.IsMatched() {
		apply(&item, learned)
		item.Status = internal.StatusConfirmed
		return item
	}

	for _, st := range r.matchStages() {
		out := st.run(ctx, b, term, key)
		if out.IsMatched() {
			apply(&item, out)
			return item
		}
		r.logUnavailable(b, st.name, term, out)
	}

	if entry, ok := manualFallback(key, b.unit); ok {
		item.Matches = []internal.CatalogEntry{entry}
		item.Strategy = internal.StrategyManualFallback
		item.Status = internal.StatusNeedsRegistration
	}
	return item
}

// apply ranks and classifies a matched outcome into item.
func apply(item *internal.ResolutionItem, out StageOutcome) {
	key := out.Key
	if key == "" {
		key = item.NormalizedKey
	}
	item.Matches = Rank(key, out.Entries)
	item.Strategy = out.Strategy
	item.Confidence = out.Confidence
	item.Status = Classify(out.Strategy, key, item.Matches)
	if out.ResolvedTerm != "" && out.ResolvedTerm != item.Term {
		item.ResolvedTerm = out.ResolvedTerm
	}
	item.SelectedMatch = util.IntPtr(0)
}

func (r *Resolver) logUnavailable(b *batch, stage, term string, out StageOutcome) {
	if out.Kind != OutcomeUnavailable {
		return
	}
	b.log.Warn("stage unavailable",
		zap.String("stage", stage),
		zap.String("term", term),
		zap.Error(out.Reason),
	)
}

func tally(items []internal.ResolutionItem) internal.BatchStats {
	stats := internal.BatchStats{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case internal.StatusConfirmed:
			stats.Confirmed++
		case internal.StatusMultiple, internal.StatusNeedsRegistration:
			stats.Pending++
		case internal.StatusDuplicate:
			stats.Duplicate++
		default:
			stats.NotFound++
		}
	}
	return stats
}

func (r *Resolver) record(items []internal.ResolutionItem) {
	for _, it := range items {
		metrics.ResolutionItemsTotal.WithLabelValues(string(it.Strategy), string(it.Status)).Inc()
	}
}

var suggestionStrategies = map[internal.Strategy]bool{
	internal.StrategySubstring:     true,
	internal.StrategyShortToken:    true,
	internal.StrategyPhaseA:        true,
	internal.StrategyPhaseB:        true,
	internal.StrategyContains:      true,
	internal.StrategySemanticFuzzy: true,
}

// journal writes the curation trail of the finished items. Failures are
// logged and never surface to the caller.
func (r *Resolver) journal(b *batch, items []internal.ResolutionItem) {
	if r.deps.Journal == nil {
		return
	}
	var errs []error
	for _, it := range items {
		if suggestionStrategies[it.Strategy] && len(it.Matches) > 0 {
			errs = append(errs, r.deps.Journal.LogSuggestion(b.unit, it.Term, it.Matches[0].DisplayName, it.Strategy))
		}

		entry := internal.FCAEntry{Term: it.Term, Unit: b.unit, Strategy: it.Strategy, Fact: string(it.Status)}
		switch {
		case it.Status == internal.StatusNotFound:
			errs = append(errs, r.deps.Journal.LogMissingTerm(b.unit, it.Term))
			entry.Cause = "no stage matched the term"
			entry.Action = "register the exam or teach a mapping"
		case it.Status == internal.StatusNeedsRegistration:
			errs = append(errs, r.deps.Journal.LogMissingTerm(b.unit, it.Term))
			entry.Cause = "code-like term absent from the catalog"
			entry.Action = "verify the exam registration"
		case it.Status == internal.StatusMultiple:
			entry.Cause = fmt.Sprintf("%d candidates via %s", len(it.Matches), it.Strategy)
			entry.Action = "pick the right entry and teach the mapping"
		case it.Strategy == internal.StrategySemanticExact || it.Strategy == internal.StrategySemanticFuzzy:
			entry.Fact = "semantic_recovery"
			entry.Cause = fmt.Sprintf("normalized to %q", it.ResolvedTerm)
			entry.Action = "teach the mapping to skip the model next time"
		default:
			continue
		}
		errs = append(errs, r.deps.Journal.LogFCA(entry))
	}
	if err := errors.Join(errs...); err != nil {
		b.log.Warn("curation journal write failed", zap.Error(err))
	}
}
