package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func splitAll(s *Splitter, lines []string) []string {
	var out []string
	for _, line := range lines {
		for _, part := range s.SplitLine(line) {
			out = append(out, ExpandAntibodies(part)...)
		}
	}
	return out
}

func TestSplitLineCompound(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"TGO/TGP", []string{"TGO", "TGP"}},
		{"Ureia \\ Creatinina", []string{"Ureia", "Creatinina"}},
		{"Hemograma + Glicose", []string{"Hemograma", "Glicose"}},
		{"Sodio e Potassio", []string{"Sodio", "Potassio"}},
		{"Ferritina, Ferro serico", []string{"Ferritina", "Ferro serico"}},
		{"HDL and LDL", []string{"HDL", "LDL"}},
		{"Colesterol total e fracoes", []string{"Colesterol total E fracoes"}},
		{"Vitamina D 2,5 OH", []string{"Vitamina D 25 OH"}},
		{"03 - Tsh", []string{"TSH"}},
		{"• Hemograma (2x)", []string{"Hemograma"}},
		{"Anti gliadina Valparaiso", []string{"Anti gliadina"}},
		{"Glicose - Taguatinga Sul", []string{"Glicose"}},
		{"T4 Livre / A", []string{"T4 Livre"}},
		{"Na / K", []string{"Na", "K"}},
		{"", nil},
	}
	for _, tc := range cases {
		got := NewSplitter().SplitLine(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestSplitLineLocalContext(t *testing.T) {
	s := NewSplitter()
	assert.Equal(t, []string{"Complemento C3", "Complemento C4"}, s.SplitLine("Complemento C3, C4"))
	assert.Equal(t, []string{"Anti HBs", "Anti HCV"}, NewSplitter().SplitLine("Anti HBs, HCV"))
}

func TestSplitterOrphanIg(t *testing.T) {
	s := NewSplitter()
	got := splitAll(s, []string{
		"Sorologia para toxoplasmose IgG",
		"- IgM.",
		"Hemograma",
		"IgA",
	})
	assert.Equal(t, []string{
		"Sorologia para toxoplasmose IgG",
		"Sorologia para toxoplasmose IGM",
		"Hemograma",
		"IgA",
	}, got)
}

func TestSplitterHeaderContext(t *testing.T) {
	s := NewSplitter()
	got := splitAll(s, []string{
		"Dosagem de complemento:",
		"C3, C4",
	})
	assert.Equal(t, []string{
		"Dosagem de complemento",
		"Dosagem de complemento C3",
		"Dosagem de complemento C4",
	}, got)
}

func TestExpandAntibodies(t *testing.T) {
	assert.Equal(t, []string{"Dengue IGG", "Dengue IGM"}, ExpandAntibodies("Dengue IgG IgM"))
	assert.Equal(t, []string{"Dosagens de imunoglobulinas IGA", "Dosagens de imunoglobulinas IGG", "Dosagens de imunoglobulinas IGM"},
		splitAll(NewSplitter(), []string{"Dosagens de imunoglobulinas IgA, IgG e IgM"}))
	assert.Equal(t, []string{"Rubeola IgG"}, ExpandAntibodies("Rubeola IgG"))
	assert.Equal(t, []string{"Citomegalovirus IgG IgG"}, ExpandAntibodies("Citomegalovirus IgG IgG"))
}

func TestApplyOCRCorrections(t *testing.T) {
	cases := map[string]string{
		"T5H":        "TSH",
		"4 754":      "TSH",
		"T6O":        "TGO",
		"tgp":        "TGP",
		"Homgrama":   "Hemograma",
		"Urreia":     "Ureia",
		"Criatenina": "Creatinina",
		"TSH livre":  "TSH livre",
	}
	for in, want := range cases {
		assert.Equal(t, want, ApplyOCRCorrections(in), in)
	}
}
