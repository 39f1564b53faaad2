package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smartquote/internal"
)

func entry(id int, key string) internal.CatalogEntry {
	return internal.CatalogEntry{ID: id, DisplayName: key, SearchKey: key}
}

func ids(entries []internal.CatalogEntry) []int {
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestRankOrdering(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		entries []internal.CatalogEntry
		want    []int
	}{
		{
			name:    "token overlap first",
			key:     "CULTURA URINA",
			entries: []internal.CatalogEntry{entry(1, "CULTURA DE ESCARRO"), entry(2, "CULTURA DE URINA")},
			want:    []int{2, 1},
		},
		{
			name: "material boost",
			key:  "CULTURA URINARIO",
			entries: []internal.CatalogEntry{
				entry(1, "CULTURA DE ESCARRO"),
				entry(2, "CULTURA DE FEZES"),
				entry(3, "CULTURA DE URINA"),
			},
			want: []int{3, 2, 1},
		},
		{
			name:    "exact before contained",
			key:     "GLICOSE",
			entries: []internal.CatalogEntry{entry(1, "GLICOSE POS PRANDIAL"), entry(2, "GLICOSE")},
			want:    []int{2, 1},
		},
		{
			name:    "contained before closer length",
			key:     "FERRO",
			entries: []internal.CatalogEntry{entry(1, "FERRITINA"), entry(2, "FERROPENIA SERICA")},
			want:    []int{2, 1},
		},
		{
			name:    "alphabetical tie break",
			key:     "X",
			entries: []internal.CatalogEntry{entry(1, "AB"), entry(2, "AA")},
			want:    []int{2, 1},
		},
		{
			name:    "dedupe by id",
			key:     "TSH",
			entries: []internal.CatalogEntry{entry(1, "TSH"), entry(1, "TSH"), entry(2, "TSH ULTRA")},
			want:    []int{1, 2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Rank(tc.key, tc.entries)))
		})
	}
}

func TestRankEmpty(t *testing.T) {
	out := Rank("TSH", nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestClassify(t *testing.T) {
	two := []internal.CatalogEntry{entry(1, "COLESTEROL HDL"), entry(2, "COLESTEROL LDL")}

	assert.Equal(t, internal.StatusNotFound, Classify(internal.StrategySubstring, "COLESTEROL", nil))
	assert.Equal(t, internal.StatusConfirmed, Classify(internal.StrategyPhaseB, "X", two[:1]))
	assert.Equal(t, internal.StatusMultiple, Classify(internal.StrategySubstring, "COLESTEROL", two))
	assert.Equal(t, internal.StatusConfirmed, Classify(internal.StrategySubstring, "COLESTEROL HDL", two))
	assert.Equal(t, internal.StatusConfirmed, Classify(internal.StrategySynonym, "COLESTEROL", two))
	assert.Equal(t, internal.StatusConfirmed, Classify(internal.StrategyTUSS, "COLESTEROL", two))
}

func TestManualFallback(t *testing.T) {
	e, ok := manualFallback("ANTICORPO ANTI TPO", "centro")
	assert.True(t, ok)
	assert.Equal(t, "TPO (Verificar Cadastro)", e.DisplayName)

	e, ok = manualFallback("ANTICARDIOLIPINA", "centro")
	assert.True(t, ok)
	assert.Equal(t, ManualFallbackID, e.ID)

	_, ok = manualFallback("GLICEMIA JEJUM", "centro")
	assert.False(t, ok)

	_, ok = manualFallback("", "centro")
	assert.False(t, ok)
}

func TestThresholdDefaults(t *testing.T) {
	assert.Equal(t, DefaultThresholds(), Thresholds{}.withDefaults())
	custom := Thresholds{PhaseB: 80}.withDefaults()
	assert.Equal(t, 80.0, custom.PhaseB)
	assert.Equal(t, DefaultPhaseA, custom.PhaseA)
}
