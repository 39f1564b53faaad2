package pipeline

import (
	"strings"

	"smartquote/internal/util"
)

type DetectResult struct {
	IsRequisition bool
	Score         float64
	Reason        string
}

var detectKeywords = []string{"REQUISI", "PEDIDO", "SOLICIT", "ORCAMENTO", "COTACAO", "EXAMES", "LABORATOR", "GUIA"}

// Frequent exam words; a handful of them in the body is a strong signal.
var examVocabulary = map[string]struct{}{
	"HEMOGRAMA": {}, "GLICOSE": {}, "GLICEMIA": {}, "COLESTEROL": {}, "TRIGLICERIDES": {},
	"CREATININA": {}, "UREIA": {}, "TSH": {}, "T4": {}, "TGO": {}, "TGP": {}, "FERRITINA": {},
	"URINA": {}, "FEZES": {}, "PARASITOLOGICO": {}, "VITAMINA": {}, "SOROLOGIA": {},
	"IGG": {}, "IGM": {}, "PSA": {}, "HIV": {}, "VDRL": {}, "LIPIDOGRAMA": {}, "EAS": {},
}

func DetectRequisition(subject, text, html string, attachmentNames []string) DetectResult {
	subjectKey := util.Normalize(subject)
	bodyKey := util.Normalize(text + " " + html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subjectKey, kw) {
			score += 0.2
		}
		if strings.Contains(bodyKey, kw) {
			score += 0.1
		}
	}

	examHits := countExamWords(bodyKey)
	if examHits >= 2 {
		score += 0.4
	} else if examHits == 1 {
		score += 0.2
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".xlsx") || strings.HasSuffix(ln, ".pdf") {
			score += 0.25
			break
		}
	}

	if strings.Contains(strings.ToLower(html), "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	ok := score >= 0.45
	reason := "rules_negative"
	if ok {
		reason = "rules_positive"
	}

	return DetectResult{IsRequisition: ok, Score: score, Reason: reason}
}

func countExamWords(key string) int {
	seen := map[string]struct{}{}
	for _, tok := range strings.Fields(key) {
		if _, ok := examVocabulary[tok]; ok {
			seen[tok] = struct{}{}
		}
	}
	return len(seen)
}
