package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartquote/internal"
	"smartquote/internal/catalog"
	"smartquote/internal/learning"
)

func sampleCatalog() []internal.CatalogEntry {
	return []internal.CatalogEntry{
		{ID: 1, DisplayName: "Hemograma Completo", Price: 18},
		{ID: 2, DisplayName: "Glicose em Jejum", Price: 9.5},
		{ID: 3, DisplayName: "TSH", Price: 32},
		{ID: 4, DisplayName: "Colesterol HDL", Price: 12},
		{ID: 5, DisplayName: "Colesterol LDL", Price: 12},
		{ID: 6, DisplayName: "Transaminase Oxalacética (TGO)", Price: 11},
		{ID: 7, DisplayName: "Parasitológico de Fezes", Price: 15},
		{ID: 8, DisplayName: "Urina Rotina (EAS)", Price: 10},
		{ID: 9, DisplayName: "Creatinina", Price: 8},
		{ID: 10, DisplayName: "Creatinina", Price: 8.5},
		{ID: 11, DisplayName: "Ferritina", Price: 40},
	}
}

func newTestResolver(t *testing.T, mutate func(*Deps)) *Resolver {
	t.Helper()
	deps := Deps{Catalog: catalog.StaticProvider{Entries: sampleCatalog()}}
	if mutate != nil {
		mutate(&deps)
	}
	return New(deps)
}

func resolveOne(t *testing.T, r *Resolver, term string) internal.ResolutionItem {
	t.Helper()
	res, err := r.ResolveBatch(context.Background(), []string{term}, "centro")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	return res.Items[0]
}

func matchIDs(item internal.ResolutionItem) []int {
	ids := make([]int, 0, len(item.Matches))
	for _, m := range item.Matches {
		ids = append(ids, m.ID)
	}
	return ids
}

type bridgeFunc func(ctx context.Context, term string) (string, bool, error)

func (f bridgeFunc) Search(ctx context.Context, term string) (string, bool, error) {
	return f(ctx, term)
}

type fakeNormalizer struct {
	resp  map[string]string
	err   error
	calls [][]string
}

func (f *fakeNormalizer) NormalizeBatch(_ context.Context, terms []string) (map[string]string, error) {
	f.calls = append(f.calls, terms)
	return f.resp, f.err
}

type fakeJournal struct {
	missing     []string
	suggestions []string
	fca         []internal.FCAEntry
}

func (j *fakeJournal) LogMissingTerm(_, term string) error {
	j.missing = append(j.missing, term)
	return nil
}

func (j *fakeJournal) LogSuggestion(_, term, matched string, _ internal.Strategy) error {
	j.suggestions = append(j.suggestions, term+"->"+matched)
	return nil
}

func (j *fakeJournal) LogFCA(entry internal.FCAEntry) error {
	j.fca = append(j.fca, entry)
	return nil
}

func TestVerbatimEntriesAreConfirmed(t *testing.T) {
	r := newTestResolver(t, nil)
	for _, e := range sampleCatalog() {
		item := resolveOne(t, r, e.DisplayName)
		assert.Equal(t, internal.StatusConfirmed, item.Status, e.DisplayName)
		assert.Equal(t, internal.StrategyExact, item.Strategy, e.DisplayName)
		assert.Contains(t, matchIDs(item), e.ID, e.DisplayName)
		require.NotNil(t, item.SelectedMatch)
		assert.Equal(t, 0, *item.SelectedMatch)
	}
}

func TestStrategies(t *testing.T) {
	r := newTestResolver(t, nil)

	cases := []struct {
		term     string
		status   internal.Status
		strategy internal.Strategy
		ids      []int
	}{
		{"TSH", internal.StatusConfirmed, internal.StrategyExact, []int{3}},
		{"Hemograma", internal.StatusConfirmed, internal.StrategySynonym, []int{1}},
		{"EAS", internal.StatusConfirmed, internal.StrategySynonym, []int{8}},
		{"Creatinina", internal.StatusConfirmed, internal.StrategyExact, []int{9, 10}},
		{"Urina Rotina", internal.StatusConfirmed, internal.StrategySubstring, []int{8}},
		{"Colesterol", internal.StatusMultiple, internal.StrategySubstring, []int{4, 5}},
		{"HDL colesterol", internal.StatusConfirmed, internal.StrategyTokenOverlap, []int{4}},
		{"Ferritinna", internal.StatusConfirmed, internal.StrategyPhaseA, []int{11}},
		{"T4", internal.StatusNeedsRegistration, internal.StrategyManualFallback, []int{ManualFallbackID}},
		{"Exame de açúcar no sangue", internal.StatusNotFound, internal.StrategyNone, []int{}},
	}

	for _, tc := range cases {
		t.Run(tc.term, func(t *testing.T) {
			item := resolveOne(t, r, tc.term)
			assert.Equal(t, tc.status, item.Status)
			assert.Equal(t, tc.strategy, item.Strategy)
			assert.Equal(t, tc.ids, matchIDs(item))
		})
	}
}

func TestSynonymRecordsResolvedTerm(t *testing.T) {
	item := resolveOne(t, newTestResolver(t, nil), "hemograma")
	assert.Equal(t, "HEMOGRAMA COMPLETO", item.ResolvedTerm)
	assert.Equal(t, 100.0, item.Confidence)
}

func TestManualFallbackEntry(t *testing.T) {
	item := resolveOne(t, newTestResolver(t, nil), "T4")
	require.Len(t, item.Matches, 1)
	assert.Equal(t, "T4 (Verificar Cadastro)", item.Matches[0].DisplayName)
	assert.Equal(t, 0.0, item.Matches[0].Price)
	assert.Equal(t, "centro", item.Matches[0].Unit)
	assert.Nil(t, item.SelectedMatch)
}

func TestDuplicateWithinBatch(t *testing.T) {
	r := newTestResolver(t, nil)
	res, err := r.ResolveBatch(context.Background(), []string{"Glicose em Jejum", "GLICOSE  EM JEJUM.", "TSH"}, "centro")
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	assert.Equal(t, internal.StatusConfirmed, res.Items[0].Status)
	assert.Equal(t, internal.StatusDuplicate, res.Items[1].Status)
	assert.Empty(t, res.Items[1].Matches)
	assert.Equal(t, internal.StatusConfirmed, res.Items[2].Status)

	assert.Equal(t, 2, res.Stats.Confirmed)
	assert.Equal(t, 1, res.Stats.Duplicate)
	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 11, res.Stats.CatalogCount)
	assert.NotEmpty(t, res.RunID)
}

func TestFuzzyPhaseBBoundary(t *testing.T) {
	scorer := func(score float64) func(a, b string) float64 {
		return func(a, b string) float64 {
			if a == "GLICEMIA JEJUM" && b == "GLICOSE EM JEJUM" {
				return score
			}
			return 0
		}
	}

	r := newTestResolver(t, func(d *Deps) { d.Scorer = scorer(85) })
	item := resolveOne(t, r, "Glicemia Jejum")
	assert.Equal(t, internal.StrategyPhaseB, item.Strategy)
	assert.Equal(t, internal.StatusConfirmed, item.Status)
	assert.Equal(t, 85.0, item.Confidence)
	assert.Equal(t, []int{2}, matchIDs(item))

	r = newTestResolver(t, func(d *Deps) { d.Scorer = scorer(84) })
	item = resolveOne(t, r, "Glicemia Jejum")
	assert.Equal(t, internal.StatusNotFound, item.Status)
	assert.Empty(t, item.Matches)
}

func TestShortTokenNeedsHighScore(t *testing.T) {
	r := newTestResolver(t, func(d *Deps) {
		d.Scorer = func(a, b string) float64 {
			if a == "TSHH" && b == "TSH" {
				return 94
			}
			return 0
		}
	})
	item := resolveOne(t, r, "TSHH")
	assert.NotEqual(t, internal.StrategyShortToken, item.Strategy)

	r = newTestResolver(t, func(d *Deps) {
		d.Scorer = func(a, b string) float64 {
			if b == "TSH" {
				return 95
			}
			return 0
		}
	})
	item = resolveOne(t, r, "TSHH")
	assert.Equal(t, internal.StrategyShortToken, item.Strategy)
	assert.Equal(t, []int{3}, matchIDs(item))
}

func TestCatalogFailureDegradesToNotFound(t *testing.T) {
	journal := &fakeJournal{}
	r := newTestResolver(t, func(d *Deps) {
		d.Catalog = catalog.StaticProvider{Err: errors.New("connection refused")}
		d.Journal = journal
	})

	terms := []string{"Hemograma", "TSH", "T4", "TSH"}
	res, err := r.ResolveBatch(context.Background(), terms, "centro")
	require.NoError(t, err)
	require.Len(t, res.Items, len(terms))
	for _, it := range res.Items {
		assert.Equal(t, internal.StatusNotFound, it.Status, it.Term)
		assert.Empty(t, it.Matches)
	}
	assert.Equal(t, 0, res.Stats.CatalogCount)
	assert.True(t, res.Stats.CatalogUnavailable)
	assert.Equal(t, len(terms), res.Stats.NotFound)
	assert.Empty(t, journal.missing)
}

func TestEmptyCatalogIsUnavailable(t *testing.T) {
	r := newTestResolver(t, func(d *Deps) { d.Catalog = catalog.StaticProvider{} })
	res, err := r.ResolveBatch(context.Background(), []string{"TSH"}, "centro")
	require.NoError(t, err)
	assert.True(t, res.Stats.CatalogUnavailable)
	assert.Equal(t, internal.StatusNotFound, res.Items[0].Status)
}

func TestMalformedInput(t *testing.T) {
	r := newTestResolver(t, nil)

	_, err := r.ResolveBatch(context.Background(), nil, "centro")
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = r.ResolveBatch(context.Background(), []string{"TSH"}, "  ")
	assert.ErrorIs(t, err, ErrMalformedInput)

	res, err := r.ResolveBatch(context.Background(), []string{}, "centro")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Stats.Total)
}

func TestEmptyTermIsNotFound(t *testing.T) {
	item := resolveOne(t, newTestResolver(t, nil), " -- ")
	assert.Equal(t, internal.StatusNotFound, item.Status)
	assert.Equal(t, "", item.NormalizedKey)
}

func TestLearnedMappingWins(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	require.NoError(t, store.Learn(ctx, "TGO", "Transaminase Oxalacética (TGO)"))

	r := newTestResolver(t, func(d *Deps) { d.Learning = store })
	res, err := r.ResolveBatch(ctx, []string{"TGO", "tgo"}, "centro")
	require.NoError(t, err)

	first := res.Items[0]
	assert.Equal(t, internal.StatusConfirmed, first.Status)
	assert.Equal(t, internal.StrategyLearned, first.Strategy)
	assert.Equal(t, []int{6}, matchIDs(first))
	assert.Equal(t, "Transaminase Oxalacética (TGO)", first.ResolvedTerm)

	assert.Equal(t, internal.StatusDuplicate, res.Items[1].Status)
}

type countingStore struct {
	*learning.MemoryStore
	lookups []string
}

func (s *countingStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	s.lookups = append(s.lookups, key)
	return s.MemoryStore.Lookup(ctx, key)
}

func TestDuplicateSkipsLearnedLookup(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: learning.NewMemoryStore()}
	require.NoError(t, store.Learn(ctx, "TGO", "Transaminase Oxalacética (TGO)"))

	r := newTestResolver(t, func(d *Deps) { d.Learning = store })
	res, err := r.ResolveBatch(ctx, []string{"TGO", "tgo", "TSH", "TSH"}, "centro")
	require.NoError(t, err)

	assert.Equal(t, []string{"TGO", "TSH"}, store.lookups)
	assert.Equal(t, internal.StrategyLearned, res.Items[0].Strategy)
	assert.Equal(t, internal.StatusDuplicate, res.Items[1].Status)
	assert.Equal(t, internal.StatusDuplicate, res.Items[3].Status)
}

func TestLearnedTargetMissingFallsThrough(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	require.NoError(t, store.Learn(ctx, "TSH", "Hormônio que não existe"))

	item := resolveOne(t, newTestResolver(t, func(d *Deps) { d.Learning = store }), "TSH")
	assert.Equal(t, internal.StrategyExact, item.Strategy)
}

func TestTUSSBridge(t *testing.T) {
	bridge := bridgeFunc(func(_ context.Context, term string) (string, bool, error) {
		if term == "Protoparasitologico" {
			return "Parasitológico de Fezes", true, nil
		}
		return "", false, nil
	})
	item := resolveOne(t, newTestResolver(t, func(d *Deps) { d.Bridge = bridge }), "Protoparasitologico")
	assert.Equal(t, internal.StrategyTUSS, item.Strategy)
	assert.Equal(t, internal.StatusConfirmed, item.Status)
	assert.Equal(t, 95.0, item.Confidence)
	assert.Equal(t, []int{7}, matchIDs(item))
}

func TestBridgeFailureSkipsOnlyThatStage(t *testing.T) {
	bridge := bridgeFunc(func(context.Context, string) (string, bool, error) {
		return "", false, errors.New("tuss table offline")
	})
	r := newTestResolver(t, func(d *Deps) { d.Bridge = bridge })

	item := resolveOne(t, r, "Urina Rotina")
	assert.Equal(t, internal.StrategySubstring, item.Strategy)
	assert.Equal(t, []int{8}, matchIDs(item))

	item = resolveOne(t, r, "Hemograma")
	assert.Equal(t, internal.StrategySynonym, item.Strategy)
}

func TestSemanticRecovery(t *testing.T) {
	norm := &fakeNormalizer{resp: map[string]string{"Exame de açúcar no sangue": "Glicose em Jejum"}}
	journal := &fakeJournal{}
	r := newTestResolver(t, func(d *Deps) {
		d.Semantic = norm
		d.Journal = journal
	})

	res, err := r.ResolveBatch(context.Background(), []string{"Exame de açúcar no sangue", "T4", "TSH", "Exame de vista cansada"}, "centro")
	require.NoError(t, err)
	require.Len(t, norm.calls, 1)
	assert.ElementsMatch(t, []string{"Exame de açúcar no sangue", "T4", "Exame de vista cansada"}, norm.calls[0])

	recovered := res.Items[0]
	assert.Equal(t, internal.StrategySemanticExact, recovered.Strategy)
	assert.Equal(t, internal.StatusConfirmed, recovered.Status)
	assert.Equal(t, 90.0, recovered.Confidence)
	assert.Equal(t, "Glicose em Jejum", recovered.ResolvedTerm)

	assert.Equal(t, internal.StatusNeedsRegistration, res.Items[1].Status)
	assert.Equal(t, internal.StatusNotFound, res.Items[3].Status)
	assert.True(t, res.Stats.SemanticActive)
	assert.Equal(t, 1, res.Stats.Pending)

	facts := map[string]bool{}
	for _, e := range journal.fca {
		facts[e.Fact] = true
	}
	assert.True(t, facts["semantic_recovery"])
	assert.True(t, facts[string(internal.StatusNeedsRegistration)])
	assert.Contains(t, journal.missing, "Exame de vista cansada")
	assert.Equal(t, 2, res.Stats.Confirmed)
}

func TestSemanticFuzzy(t *testing.T) {
	norm := &fakeNormalizer{resp: map[string]string{"Exame de açúcar no sangue": "Glicose jejum"}}
	r := newTestResolver(t, func(d *Deps) { d.Semantic = norm })

	item := resolveOne(t, r, "Exame de açúcar no sangue")
	assert.Equal(t, internal.StrategySemanticFuzzy, item.Strategy)
	assert.Equal(t, []int{2}, matchIDs(item))
	assert.GreaterOrEqual(t, item.Confidence, DefaultSemantic)
}

func TestSemanticFailureKeepsStatus(t *testing.T) {
	norm := &fakeNormalizer{err: errors.New("quota exceeded")}
	r := newTestResolver(t, func(d *Deps) { d.Semantic = norm })

	res, err := r.ResolveBatch(context.Background(), []string{"Exame de açúcar no sangue", "T4"}, "centro")
	require.NoError(t, err)
	assert.Equal(t, internal.StatusNotFound, res.Items[0].Status)
	assert.Equal(t, internal.StatusNeedsRegistration, res.Items[1].Status)
}

func TestJournalSuggestions(t *testing.T) {
	journal := &fakeJournal{}
	r := newTestResolver(t, func(d *Deps) { d.Journal = journal })

	_, err := r.ResolveBatch(context.Background(), []string{"Ferritinna", "Colesterol", "TSH"}, "centro")
	require.NoError(t, err)
	assert.Contains(t, journal.suggestions, "Ferritinna->Ferritina")
	assert.Len(t, journal.suggestions, 2)

	require.Len(t, journal.fca, 1)
	assert.Equal(t, string(internal.StatusMultiple), journal.fca[0].Fact)
}

func TestResolveBatchIsDeterministic(t *testing.T) {
	r := newTestResolver(t, nil)
	terms := []string{"Colesterol", "HDL colesterol", "Ferritinna", "T4", "Hemograma", "Creatinina"}

	a, err := r.ResolveBatch(context.Background(), terms, "centro")
	require.NoError(t, err)
	b, err := r.ResolveBatch(context.Background(), terms, "centro")
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Items, b.Items)
	assert.Equal(t, a.Stats, b.Stats)
}
