package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/metrics"
	"smartquote/internal/util"
)

func semanticCandidate(it internal.ResolutionItem) bool {
	switch it.Status {
	case internal.StatusNotFound:
		return util.RuneLen(it.Term) > semanticMinTermLen
	case internal.StatusNeedsRegistration:
		return true
	}
	return false
}

// semanticPass sends every unresolved term to the normalizer in one call and
// retries the exact and relaxed fuzzy lookups with its suggestions. Items the
// model cannot help keep their status.
func (r *Resolver) semanticPass(ctx context.Context, b *batch, items []internal.ResolutionItem) {
	if !r.semanticActive() {
		return
	}

	var terms []string
	queued := map[string]struct{}{}
	for _, it := range items {
		if !semanticCandidate(it) {
			continue
		}
		if _, ok := queued[it.Term]; ok {
			continue
		}
		queued[it.Term] = struct{}{}
		terms = append(terms, it.Term)
	}
	if len(terms) == 0 {
		return
	}

	if r.deps.SemanticTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deps.SemanticTimeout)
		defer cancel()
	}

	suggestions, err := r.deps.Semantic.NormalizeBatch(ctx, terms)
	if err != nil {
		metrics.SemanticRequestsTotal.WithLabelValues(metrics.ResultError).Inc()
		b.log.Warn("semantic fallback skipped", zap.Int("candidates", len(terms)),
			zap.Error(fmt.Errorf("%w: %v", ErrSemanticUnavailable, err)))
		return
	}
	if len(suggestions) == 0 {
		metrics.SemanticRequestsTotal.WithLabelValues(metrics.ResultEmpty).Inc()
		return
	}
	metrics.SemanticRequestsTotal.WithLabelValues(metrics.ResultOK).Inc()

	for i := range items {
		if !semanticCandidate(items[i]) {
			continue
		}
		suggestion, ok := suggestions[items[i].Term]
		if !ok {
			continue
		}
		out := r.semanticMatch(b, suggestion)
		if !out.IsMatched() {
			continue
		}
		b.log.Debug("semantic recovery",
			zap.String("term", items[i].Term),
			zap.String("suggestion", suggestion),
			zap.String("strategy", string(out.Strategy)),
		)
		apply(&items[i], out)
	}
}

func (r *Resolver) semanticMatch(b *batch, suggestion string) StageOutcome {
	key := util.Normalize(suggestion)
	if key == "" {
		return NoMatch()
	}
	if entries, ok := b.index.Lookup(key); ok {
		return Matched(entries, internal.StrategySemanticExact, confidenceSemanticExact).rewrittenTo(suggestion, key)
	}
	score, keys := r.bestKeys(b, key)
	if len(keys) > 0 && score >= r.deps.Thresholds.Semantic {
		return Matched(b.entriesFor(keys), internal.StrategySemanticFuzzy, score).rewrittenTo(suggestion, key)
	}
	return NoMatch()
}
