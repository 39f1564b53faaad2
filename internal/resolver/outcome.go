package resolver

import "smartquote/internal"

type OutcomeKind int

const (
	OutcomeNoMatch OutcomeKind = iota
	OutcomeMatched
	OutcomeUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMatched:
		return "matched"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "no_match"
	}
}

// StageOutcome is what one pipeline stage reports for a candidate: a match,
// no match, or a stage that could not run.
type StageOutcome struct {
	Kind       OutcomeKind
	Entries    []internal.CatalogEntry
	Strategy   internal.Strategy
	Confidence float64
	// Key the matches are ranked against. Stages that rewrite the term
	// (learned, synonym, tuss, semantic) set it to the rewritten key.
	Key          string
	ResolvedTerm string
	Reason       error
}

func Matched(entries []internal.CatalogEntry, strategy internal.Strategy, confidence float64) StageOutcome {
	return StageOutcome{Kind: OutcomeMatched, Entries: entries, Strategy: strategy, Confidence: confidence}
}

func NoMatch() StageOutcome {
	return StageOutcome{Kind: OutcomeNoMatch}
}

func Unavailable(reason error) StageOutcome {
	return StageOutcome{Kind: OutcomeUnavailable, Reason: reason}
}

func (o StageOutcome) IsMatched() bool {
	return o.Kind == OutcomeMatched && len(o.Entries) > 0
}

func (o StageOutcome) rewrittenTo(term, key string) StageOutcome {
	o.ResolvedTerm = term
	o.Key = key
	return o
}
