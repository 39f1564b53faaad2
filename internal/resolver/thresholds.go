package resolver

import "smartquote/internal/config"

const (
	DefaultShortToken = 95.0
	DefaultPhaseA     = 92.0
	DefaultPhaseB     = 85.0
	DefaultContains   = 80.0
	DefaultSemantic   = 70.0

	// Keys up to this many runes only accept a short-token fuzzy hit.
	shortTokenMaxLen = 4
	// Substring matching needs keys strictly longer than this.
	substringMinLen = 3
	// contains_fallback only trusts catalog keys strictly longer than this.
	containsMinKeyLen = 4
	// Semantic candidates need raw terms strictly longer than this.
	semanticMinTermLen = 3
)

// Fixed confidences of the deterministic stages. Fuzzy stages report the
// similarity score itself.
const (
	confidenceLearned       = 100.0
	confidenceExact         = 100.0
	confidenceSynonym       = 100.0
	confidenceTUSS          = 95.0
	confidenceSubstring     = 80.0
	confidenceTokenOverlap  = 75.0
	confidenceSemanticExact = 90.0
)

const (
	ManualFallbackID     = 99999
	manualFallbackSuffix = " (Verificar Cadastro)"
)

// Thresholds are the similarity cut-offs of the fuzzy stages, on a 0-100
// scale.
type Thresholds struct {
	ShortToken float64
	PhaseA     float64
	PhaseB     float64
	Contains   float64
	Semantic   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ShortToken: DefaultShortToken,
		PhaseA:     DefaultPhaseA,
		PhaseB:     DefaultPhaseB,
		Contains:   DefaultContains,
		Semantic:   DefaultSemantic,
	}
}

func ThresholdsFromConfig(cfg config.Config) Thresholds {
	return Thresholds{
		ShortToken: cfg.FuzzyShortToken,
		PhaseA:     cfg.FuzzyPhaseA,
		PhaseB:     cfg.FuzzyPhaseB,
		Contains:   cfg.FuzzyContains,
		Semantic:   cfg.FuzzySemantic,
	}.withDefaults()
}

// withDefaults fills unset fields so a zero Thresholds behaves like
// DefaultThresholds.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.ShortToken <= 0 {
		t.ShortToken = d.ShortToken
	}
	if t.PhaseA <= 0 {
		t.PhaseA = d.PhaseA
	}
	if t.PhaseB <= 0 {
		t.PhaseB = d.PhaseB
	}
	if t.Contains <= 0 {
		t.Contains = d.Contains
	}
	if t.Semantic <= 0 {
		t.Semantic = d.Semantic
	}
	return t
}
