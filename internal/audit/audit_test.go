package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartquote/internal"
	"smartquote/internal/util"
)

func confirmed(term, entry string, confidence float64) internal.ResolutionItem {
	return internal.ResolutionItem{
		Term:          term,
		NormalizedKey: util.Normalize(term),
		Status:        internal.StatusConfirmed,
		Matches:       []internal.CatalogEntry{{ID: 1, DisplayName: entry}},
		Confidence:    confidence,
	}
}

func TestPerfectBatch(t *testing.T) {
	raw := []string{"Hemograma completo", "Glicose em jejum", "Dr. Paulo Mendes CRM 12345", "12/03/2024"}
	items := []internal.ResolutionItem{
		confirmed("Hemograma completo", "Hemograma Completo", 100),
		confirmed("Glicose em jejum", "Glicose em Jejum", 100),
	}

	report := Audit(raw, items)
	assert.Equal(t, 100.0, report.CoverageScore)
	assert.Equal(t, 100.0, report.AccuracyScore)
	assert.Empty(t, report.MissedCandidates)
	assert.Empty(t, report.NoiseLeaked)
	assert.Empty(t, report.Recommendations)
}

func TestMissedCandidates(t *testing.T) {
	raw := []string{"Hemograma", "Ferritina", "Vitamina B12", "Rua das Palmeiras 45"}
	items := []internal.ResolutionItem{confirmed("Hemograma", "Hemograma Completo", 100)}

	report := Audit(raw, items)
	assert.Equal(t, []string{"Ferritina", "Vitamina B12"}, report.MissedCandidates)
	assert.InDelta(t, 33.3, report.CoverageScore, 0.01)
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "Ferritina")
}

func TestMissedCandidatesAreCapped(t *testing.T) {
	raw := []string{"Ureia", "Creatinina", "Sodio", "Potassio", "Calcio", "Magnesio", "Fosforo"}
	report := Audit(raw, nil)
	assert.Len(t, report.MissedCandidates, 5)
	assert.Equal(t, 0.0, report.CoverageScore)
	assert.Equal(t, 0.0, report.AccuracyScore)
}

func TestCompoundLineIsCovered(t *testing.T) {
	raw := []string{"TGO / TGP"}
	items := []internal.ResolutionItem{
		confirmed("TGO", "Transaminase Oxalacetica (TGO)", 100),
		confirmed("TGP", "Transaminase Piruvica (TGP)", 100),
	}
	report := Audit(raw, items)
	assert.Empty(t, report.MissedCandidates)
}

func TestNoiseLeaked(t *testing.T) {
	items := []internal.ResolutionItem{
		confirmed("TSH", "TSH", 100),
		{
			Term:       "Av. Goiás, Goiânia",
			Status:     internal.StatusNeedsRegistration,
			Matches:    []internal.CatalogEntry{{ID: 99999, DisplayName: "AV GOIAS GOIANIA (Verificar Cadastro)"}},
			Confidence: 80,
		},
		{Term: "Pagina 2", Status: internal.StatusNotFound, Matches: []internal.CatalogEntry{}},
	}
	report := Audit(nil, items)
	assert.Equal(t, []string{"AV GOIAS GOIANIA (Verificar Cadastro)"}, report.NoiseLeaked)
	assert.InDelta(t, 45.0, report.AccuracyScore, 0.01)
	assert.Equal(t, 100.0, report.CoverageScore)
	assert.Len(t, report.Recommendations, 2)
}

func TestNoiseJudgedOnCorrectedText(t *testing.T) {
	selected := 1
	items := []internal.ResolutionItem{
		confirmed("Hemograma Rua X", "Hemograma Completo", 100),
		{
			Term:         "Dr. TSH",
			ResolvedTerm: "TSH",
			Status:       internal.StatusConfirmed,
			Matches:      []internal.CatalogEntry{{ID: 7, DisplayName: "TSH"}},
			Confidence:   90,
		},
		{
			Term:          "Glicose Quadra 4",
			Status:        internal.StatusConfirmed,
			Matches:       []internal.CatalogEntry{{ID: 2, DisplayName: "Glicose Quadra"}, {ID: 3, DisplayName: "Glicose em Jejum"}},
			SelectedMatch: &selected,
			Confidence:    100,
		},
	}
	report := Audit(nil, items)
	assert.Empty(t, report.NoiseLeaked)
	assert.InDelta(t, 96.7, report.AccuracyScore, 0.01)
}

func TestLooksLikeExam(t *testing.T) {
	a := New(nil)
	cases := map[string]bool{
		"Hemograma":                    true,
		"TSH":                          true,
		"ab":                           false,
		"Data da coleta":               false,
		"Telefone (62) 3333-4444":      false,
		"Endereço: Setor Bueno":        false,
		"Solicito os exames abaixo":    false,
		"Hemograma completo com contagem de plaquetas e reticulócitos": false,
	}
	for line, want := range cases {
		assert.Equal(t, want, a.LooksLikeExam(line), line)
	}
}

func TestIsNoise(t *testing.T) {
	assert.True(t, IsNoise("CPF 123.456.789-00"))
	assert.True(t, IsNoise("Impresso em 10/10/2024"))
	assert.True(t, IsNoise("Dra. Ana"))
	assert.False(t, IsNoise("Dosagem de Ferritina"))
	assert.False(t, IsNoise("Ureia"))
}
