// Package audit scores an extraction after resolution: how many plausible
// exam lines never reached the resolver and how much form noise did.
package audit

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"smartquote/internal"
	"smartquote/internal/filter"
	"smartquote/internal/util"
)

const (
	minExamLen = 3
	maxExamLen = 40
	maxMissed  = 5

	lowCoverage = 80.0
	lowAccuracy = 70.0
)

// Words that disqualify a raw line from looking like an exam.
var nonExamWords = []string{"CRM", "DATA", "TELEFONE", "ENDERECO", "RUA"}

// Form furniture that should never be a resolved term. Matched on upper-case,
// accent-free text.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bRUA\b`),
	regexp.MustCompile(`\bAV\b\.?`),
	regexp.MustCompile(`\bAVENIDA\b`),
	regexp.MustCompile(`\bQUADRA\b`),
	regexp.MustCompile(`\bLOTE\b`),
	regexp.MustCompile(`\bBAIRRO\b`),
	regexp.MustCompile(`\bDRA?\b\.?`),
	regexp.MustCompile(`\bDOUTORA?\b`),
	regexp.MustCompile(`\bCRM\b`),
	regexp.MustCompile(`\bCPF\b`),
	regexp.MustCompile(`\bCNPJ\b`),
	regexp.MustCompile(`\bRG\b`),
	regexp.MustCompile(`\bTEL\b`),
	regexp.MustCompile(`\bFONE\b`),
	regexp.MustCompile(`\bCEP\b`),
	regexp.MustCompile(`\bPAGINA\b`),
	regexp.MustCompile(`\bFOLHA\b`),
	regexp.MustCompile(`\bIMPRESSO EM\b`),
	regexp.MustCompile(`GOIANIA|BRASILIA|APARECIDA|VALPARAISO|TAGUATINGA|OCIDENTAL|LUZIANIA|SENADOR CANEDO|TRINDADE|AGUAS LINDAS`),
}

type Auditor struct {
	filter *filter.Filter
}

func New(f *filter.Filter) *Auditor {
	if f == nil {
		f = filter.Default()
	}
	return &Auditor{filter: f}
}

// Audit runs the default auditor.
func Audit(rawLines []string, items []internal.ResolutionItem) internal.AuditReport {
	return New(nil).Audit(rawLines, items)
}

func (a *Auditor) LooksLikeExam(line string) bool {
	text := strings.TrimSpace(line)
	if n := util.RuneLen(text); n < minExamLen || n > maxExamLen {
		return false
	}
	upper := strings.ToUpper(util.StripDiacritics(text))
	for _, w := range nonExamWords {
		if strings.Contains(upper, w) {
			return false
		}
	}
	return a.filter.Accept(text)
}

func IsNoise(text string) bool {
	upper := strings.ToUpper(util.StripDiacritics(text))
	for _, p := range noisePatterns {
		if p.MatchString(upper) {
			return true
		}
	}
	return false
}

func identified(it internal.ResolutionItem) bool {
	switch it.Status {
	case internal.StatusConfirmed, internal.StatusMultiple, internal.StatusNeedsRegistration:
		return len(it.Matches) > 0
	}
	return false
}

// correctedText is what the batch hands downstream for an item: the
// rewritten term, else the chosen catalog name, else the raw term.
func correctedText(it internal.ResolutionItem) string {
	if it.ResolvedTerm != "" {
		return it.ResolvedTerm
	}
	if it.SelectedMatch != nil && *it.SelectedMatch >= 0 && *it.SelectedMatch < len(it.Matches) {
		return it.Matches[*it.SelectedMatch].DisplayName
	}
	if len(it.Matches) == 1 {
		return it.Matches[0].DisplayName
	}
	return it.Term
}

// Audit compares the raw lines of a document with the items resolved from
// it. The report is advisory; it never changes items.
func (a *Auditor) Audit(rawLines []string, items []internal.ResolutionItem) internal.AuditReport {
	report := internal.AuditReport{
		MissedCandidates: []string{},
		NoiseLeaked:      []string{},
		Recommendations:  []string{},
	}

	covered := coverageKeys(items)
	missed := 0
	for _, line := range rawLines {
		if !a.LooksLikeExam(line) || isCovered(util.Normalize(line), covered) {
			continue
		}
		missed++
		if len(report.MissedCandidates) < maxMissed {
			report.MissedCandidates = append(report.MissedCandidates, strings.TrimSpace(line))
		}
	}

	found := 0
	confidence := 0.0
	for _, it := range items {
		if !identified(it) {
			continue
		}
		found++
		confidence += it.Confidence
		if text := correctedText(it); IsNoise(text) {
			report.NoiseLeaked = append(report.NoiseLeaked, text)
		}
	}

	if found+missed == 0 {
		report.CoverageScore = 100
	} else {
		report.CoverageScore = round1(100 * float64(found) / float64(found+missed))
	}
	if found > 0 {
		mean := confidence / float64(found)
		report.AccuracyScore = round1(mean * (1 - float64(len(report.NoiseLeaked))/float64(found)))
	}

	report.Recommendations = recommend(report, missed, found)
	return report
}

func coverageKeys(items []internal.ResolutionItem) []string {
	keys := make([]string, 0, len(items))
	add := func(k string) {
		if k != "" {
			keys = append(keys, k)
		}
	}
	for _, it := range items {
		add(it.NormalizedKey)
		add(util.Normalize(it.Term))
		for _, m := range it.Matches {
			add(util.Normalize(m.DisplayName))
		}
	}
	return keys
}

func isCovered(lineKey string, keys []string) bool {
	if lineKey == "" {
		return true
	}
	for _, k := range keys {
		if strings.Contains(lineKey, k) || strings.Contains(k, lineKey) {
			return true
		}
	}
	return false
}

func recommend(r internal.AuditReport, missed, found int) []string {
	out := []string{}
	if missed > 0 {
		out = append(out, fmt.Sprintf("review %d line(s) that look like exams but were not resolved, e.g. %q", missed, r.MissedCandidates[0]))
	}
	for _, term := range r.NoiseLeaked {
		out = append(out, fmt.Sprintf("add a filter rule: %q is form metadata, not an exam", term))
	}
	if found+missed > 0 && r.CoverageScore < lowCoverage {
		out = append(out, "coverage is low: check line splitting and the OCR quality of the source")
	}
	if found > 0 && r.AccuracyScore < lowAccuracy {
		out = append(out, "mean confidence is low: confirm the fuzzy matches and teach the mappings")
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
