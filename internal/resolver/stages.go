package resolver

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/catalog"
	"smartquote/internal/util"
)

// batch is the state of one ResolveBatch call.
type batch struct {
	runID string
	unit  string
	index *catalog.Index
	seen  map[string]struct{}
	log   *zap.Logger
}

type stageFunc func(ctx context.Context, b *batch, term, key string) StageOutcome

type namedStage struct {
	name string
	run  stageFunc
}

// Deterministic stages after the learned and duplicate checks, in order.
func (r *Resolver) matchStages() []namedStage {
	return []namedStage{
		{name: "exact", run: r.exactStage},
		{name: "synonym", run: r.synonymStage},
		{name: "substring", run: r.substringStage},
		{name: "token_overlap", run: r.tokenOverlapStage},
		{name: "fuzzy", run: r.fuzzyStage},
	}
}

func (r *Resolver) learnedStage(ctx context.Context, b *batch, _ string, key string) StageOutcome {
	if r.deps.Learning == nil {
		return NoMatch()
	}
	canonical, ok, err := r.deps.Learning.Lookup(ctx, key)
	if err != nil {
		return Unavailable(fmt.Errorf("learned lookup: %w", err))
	}
	if !ok {
		return NoMatch()
	}
	target := util.Normalize(canonical)
	entries, found := b.index.Lookup(target)
	if !found {
		b.log.Debug("learned target not in catalog", zap.String("term", key), zap.String("canonical", canonical))
		return NoMatch()
	}
	return Matched(entries, internal.StrategyLearned, confidenceLearned).rewrittenTo(canonical, target)
}

func (r *Resolver) exactStage(_ context.Context, b *batch, _ string, key string) StageOutcome {
	if entries, ok := b.index.Lookup(key); ok {
		return Matched(entries, internal.StrategyExact, confidenceExact)
	}
	return NoMatch()
}

// synonymStage tries the alias table first, then the TUSS bridge.
func (r *Resolver) synonymStage(ctx context.Context, b *batch, term, key string) StageOutcome {
	for _, phrasing := range r.deps.Synonyms.Lookup(key) {
		pk := util.Normalize(phrasing)
		if entries, ok := b.index.Lookup(pk); ok {
			return Matched(entries, internal.StrategySynonym, confidenceSynonym).rewrittenTo(phrasing, pk)
		}
	}

	if r.deps.Bridge == nil {
		return NoMatch()
	}
	name, ok, err := r.deps.Bridge.Search(ctx, term)
	if err != nil {
		return Unavailable(fmt.Errorf("%w: %v", ErrBridgeUnavailable, err))
	}
	if !ok {
		return NoMatch()
	}
	tk := util.Normalize(name)
	if entries, found := b.index.Lookup(tk); found {
		return Matched(entries, internal.StrategyTUSS, confidenceTUSS).rewrittenTo(name, tk)
	}
	return NoMatch()
}

func (r *Resolver) substringStage(_ context.Context, b *batch, _ string, key string) StageOutcome {
	if util.RuneLen(key) <= substringMinLen {
		return NoMatch()
	}
	var entries []internal.CatalogEntry
	for _, k := range b.index.Keys {
		if strings.Contains(k, key) || (util.RuneLen(k) > substringMinLen && strings.Contains(key, k)) {
			entries = append(entries, b.index.ByKey[k]...)
		}
	}
	if len(entries) == 0 {
		return NoMatch()
	}
	return Matched(entries, internal.StrategySubstring, confidenceSubstring)
}

// Tokens that carry meaning despite being two characters or fewer.
var shortEssentialTokens = map[string]struct{}{
	"D": {}, "K": {}, "P": {}, "CA": {}, "FE": {}, "ZN": {}, "C3": {}, "C4": {},
}

func essentialTokens(key string) []string {
	var out []string
	for t := range util.TokenSet(key) {
		if _, short := shortEssentialTokens[t]; util.RuneLen(t) > 2 || short {
			out = append(out, t)
		}
	}
	return out
}

func (r *Resolver) tokenOverlapStage(_ context.Context, b *batch, _ string, key string) StageOutcome {
	essential := essentialTokens(key)
	if len(essential) == 0 {
		return NoMatch()
	}
	var entries []internal.CatalogEntry
	for _, k := range b.index.Keys {
		tokens := b.index.Tokens[k]
		subset := true
		for _, t := range essential {
			if _, ok := tokens[t]; !ok {
				subset = false
				break
			}
		}
		if subset {
			entries = append(entries, b.index.ByKey[k]...)
		}
	}
	if len(entries) == 0 {
		return NoMatch()
	}
	return Matched(entries, internal.StrategyTokenOverlap, confidenceTokenOverlap)
}

// bestKeys scores key against every catalog key and returns all keys tied at
// the best score.
func (r *Resolver) bestKeys(b *batch, key string) (float64, []string) {
	best := -1.0
	var keys []string
	for _, k := range b.index.Keys {
		score := r.deps.Scorer(key, k)
		switch {
		case score > best:
			best = score
			keys = []string{k}
		case score == best:
			keys = append(keys, k)
		}
	}
	return best, keys
}

func (b *batch) entriesFor(keys []string) []internal.CatalogEntry {
	var out []internal.CatalogEntry
	for _, k := range keys {
		out = append(out, b.index.ByKey[k]...)
	}
	return out
}

func (r *Resolver) fuzzyStage(_ context.Context, b *batch, _ string, key string) StageOutcome {
	if key == "" || len(b.index.Keys) == 0 {
		return NoMatch()
	}
	t := r.deps.Thresholds
	score, keys := r.bestKeys(b, key)

	if util.RuneLen(key) <= shortTokenMaxLen {
		if score >= t.ShortToken {
			return Matched(b.entriesFor(keys), internal.StrategyShortToken, score)
		}
		return NoMatch()
	}
	if score >= t.PhaseA {
		return Matched(b.entriesFor(keys), internal.StrategyPhaseA, score)
	}
	if score >= t.PhaseB {
		return Matched(b.entriesFor(keys), internal.StrategyPhaseB, score)
	}

	var contained []string
	for _, k := range b.index.Keys {
		if util.RuneLen(k) > containsMinKeyLen && strings.Contains(key, k) {
			contained = append(contained, k)
		}
	}
	if len(contained) > 0 {
		return Matched(b.entriesFor(contained), internal.StrategyContains, t.Contains)
	}
	return NoMatch()
}

// manualFallback builds the placeholder entry for code-like leftovers, or
// reports false when the key does not look like a code.
func manualFallback(key, unit string) (internal.CatalogEntry, bool) {
	tokens := strings.Fields(key)
	if len(tokens) == 0 {
		return internal.CatalogEntry{}, false
	}
	last := tokens[len(tokens)-1]
	if util.RuneLen(last) > shortTokenMaxLen && !strings.HasPrefix(last, "ANTI") {
		return internal.CatalogEntry{}, false
	}
	return internal.CatalogEntry{
		ID:          ManualFallbackID,
		DisplayName: last + manualFallbackSuffix,
		SearchKey:   last,
		Price:       0,
		Unit:        unit,
	}, true
}
