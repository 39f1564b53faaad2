package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Hemograma completo":                  "HEMOGRAMA COMPLETO",
		"  Glicose   em jejum ":               "GLICOSE EM JEJUM",
		"Ácido Úrico":                         "ACIDO URICO",
		"T4-livre":                            "T4 LIVRE",
		"Vitamina D (25-OH)":                  "VITAMINA D 25 OH",
		"Urina tipo I - exames laboratoriais": "URINA TIPO I",
		"Coagulograma exames":                 "COAGULOGRAMA",
		"Exames":                              "EXAMES",
		"":                                    "",
		"***":                                 "",
		"Proteína C-reativa (PCR)":            "PROTEINA C REATIVA PCR",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Hemograma completo",
		"Colesterol total e frações exames exames",
		"HEMOGRAMA EXAMES.",
		"ΐ Greek with marks",
		"Straße ß",
		"ǅemal",
		"Anti-HBs / Anti HCV",
		"25-OH Vitamina D²",
		"exame laboratorial exames laboratoriais",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	f.Add("Hemograma completo")
	f.Add("Glicose - exames")
	f.Add("Ácido fólico")
	f.Fuzz(func(t *testing.T, in string) {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	})
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 2, TokenOverlap("GLICOSE JEJUM", "GLICOSE EM JEJUM"))
	assert.Equal(t, 0, TokenOverlap("TSH", "T4 LIVRE"))
}

func TestSignificantChars(t *testing.T) {
	assert.Equal(t, "T3", SignificantChars(" t-3 "))
	assert.Equal(t, "", SignificantChars("--"))
}
