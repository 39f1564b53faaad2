package filter

import (
	"regexp"
	"strings"

	"smartquote/internal/util"
)

var (
	orphanIg      = regexp.MustCompile(`(?i)^\W*(IG[GAM])\W*$`)
	igClass       = regexp.MustCompile(`(?i)\bIG[GAM]\b`)
	trailingJunk  = regexp.MustCompile(`(?i)(?:[\s,.;:\-]+E)?[\s,.;:\-]*$`)
	trailingCode  = regexp.MustCompile(`(?i)\s*\b[A-Z0-9]{1,3}$`)
	bareSuffix    = regexp.MustCompile(`(?i)^(IG[GAM]|[A-Z0-9]{1,4}\+?)$`)
	decimalVitD   = regexp.MustCompile(`\b2[.,]5\b`)
	protectedAnd  = regexp.MustCompile(`(?i)\s+e\s+(fra[cç][oõ]es)\b`)
	trailingAndEs = regexp.MustCompile(`(?i)\s+e\s*$`)
	igList        = regexp.MustCompile(`(?i)\b(IG[GAM])(?:\s*[,/+]\s*|\s+e\s+)(IG[GAM])\b`)

	splitters = []*regexp.Regexp{
		regexp.MustCompile(`\s*[/\\]\s*`),
		regexp.MustCompile(`\s*\+\s*`),
		regexp.MustCompile(`(?i)\s+e\s+`),
		regexp.MustCompile(`\s*,\s*`),
		regexp.MustCompile(`(?i)\s+and\s+`),
	}

	suffixNoise = []*regexp.Regexp{}

	ocrCorrections = []struct {
		pattern *regexp.Regexp
		value   string
	}{
		{regexp.MustCompile(`(?i)^[4T][S5][H47]$`), "TSH"},
		{regexp.MustCompile(`^\s*4\s*754\s*$`), "TSH"},
		{regexp.MustCompile(`(?i)^[FP][S5][H4]$`), "FSH"},
		{regexp.MustCompile(`(?i)^T4\s?Li[ov]re$`), "T4 Livre"},
		{regexp.MustCompile(`(?i)^H[oea]m[oae]?gr[oa]ma$`), "Hemograma"},
		{regexp.MustCompile(`(?i)^L[i1]p[i1]d[oa][\-\s]?gr[ao]ma$`), "Lipidograma"},
		{regexp.MustCompile(`(?i)^G[l1][i1]c[ei]m[ie]a$`), "Glicemia"},
		{regexp.MustCompile(`(?i)^Ur+e+i+a+$`), "Ureia"},
		{regexp.MustCompile(`(?i)^Cr[ei]at[ie]n[ie]na$`), "Creatinina"},
		{regexp.MustCompile(`(?i)^T[G6]O$`), "TGO"},
		{regexp.MustCompile(`(?i)^T[G6]P$`), "TGP"},
	}
)

const protectedToken = "\x00"

// Words that open a family of exams whose members are then listed bare,
// e.g. "Complemento C3, C4" or "Sorologia dengue" followed by "IgM".
var ContextTriggers = []string{"ANTI", "FAN", "SOROLOGIA", "PESQUISA", "DOSAGEM", "DOSAGENS", "IMUNO", "COMPLEMENTO"}

func init() {
	for _, p := range []string{
		`taguatinga.*`, `valpara[ií]so.*`, `ocidental.*`, `gleba.*`,
		`lote\s?\d+.*`, `quadra\s?\d+.*`, `etapa\s?.*`, `br-040.*`, `trecho.*`,
		`unidade.*`, `goi[âa]nia.*`, `aparecida.*`, `bras[íi]lia.*`,
		`exames\slaboratoriais.*`, `gastroenter.*`,
	} {
		suffixNoise = append(suffixNoise, regexp.MustCompile(`(?i)[\s\-/•·]+\b`+p))
	}
}

// Splitter turns raw requisition lines into single-exam candidates. It keeps
// the latest parent context across lines, so one Splitter serves one
// document.
type Splitter struct {
	latestContext string
}

func NewSplitter() *Splitter {
	return &Splitter{}
}

func (s *Splitter) SplitLine(raw string) []string {
	line := strings.TrimSpace(raw)
	if line == "" {
		return nil
	}

	orphan := false
	if m := orphanIg.FindStringSubmatch(line); m != nil && s.latestContext != "" {
		line = s.latestContext + " " + strings.ToUpper(m[1])
		orphan = true
	}

	trigger := hasTrigger(line)
	if trigger && !orphan {
		if ctx := cleanContext(line); util.RuneLen(ctx) > 5 {
			s.latestContext = ctx
		}
	}

	line = util.ParseListMarker(line).Text
	if line == "" {
		return nil
	}
	line = decimalVitD.ReplaceAllString(line, "25")
	line = protectedAnd.ReplaceAllString(line, protectedToken+"$1")
	// "IgG e IgM" stays on one line and is expanded after splitting
	for igList.MatchString(line) {
		line = igList.ReplaceAllString(line, "$1 $2")
	}

	parts := splitCompound(line)
	if !trigger && !orphan && !allBare(parts) {
		// the family ended; a later bare line must not inherit it
		s.latestContext = ""
	}
	if len(parts) == 1 {
		if out := finishPart(parts[0]); out != "" {
			return []string{out}
		}
		return nil
	}

	localContext := ""
	if first := strings.TrimSpace(parts[0]); hasTrigger(first) {
		clean := cleanContext(first)
		clean = strings.TrimSpace(trailingCode.ReplaceAllString(clean, ""))
		if util.RuneLen(clean) > 3 {
			localContext = clean
		}
	}
	active := localContext
	if active == "" {
		active = s.latestContext
	}

	out := make([]string, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if util.RuneLen(part) <= 2 && !IsWhitelisted(part) {
			continue
		}

		final := part
		switch {
		case i > 0 && active != "" && isBareSuffix(part):
			final = withContext(active, part)
		case i == 0 && localContext == "" && s.latestContext != "" && isBareSuffix(part):
			final = withContext(s.latestContext, part)
		}
		if cleaned := finishPart(final); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func splitCompound(line string) []string {
	const sep = "\x1f"
	for _, re := range splitters {
		line = re.ReplaceAllString(line, sep)
	}
	return strings.Split(line, sep)
}

func finishPart(part string) string {
	part = strings.ReplaceAll(part, protectedToken, " E ")
	part = util.ParseListMarker(part).Text
	part = CleanSuffixNoise(part)
	part = strings.TrimRight(strings.TrimSpace(part), ":;,.-")
	part = ApplyOCRCorrections(part)
	return strings.TrimSpace(part)
}

func withContext(context, part string) string {
	prefix := strings.ToUpper(context)
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	if strings.HasPrefix(strings.ToUpper(part), prefix) {
		return part
	}
	return context + " " + part
}

func hasTrigger(line string) bool {
	upper := strings.ToUpper(util.StripDiacritics(strings.TrimSpace(line)))
	for _, t := range ContextTriggers {
		if strings.HasPrefix(upper, t) {
			return true
		}
	}
	return false
}

func cleanContext(line string) string {
	clean := igClass.ReplaceAllString(line, "")
	clean = strings.Join(strings.Fields(clean), " ")
	return strings.TrimSpace(trailingJunk.ReplaceAllString(clean, ""))
}

func allBare(parts []string) bool {
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && !isBareSuffix(p) {
			return false
		}
	}
	return true
}

func isBareSuffix(part string) bool {
	return bareSuffix.MatchString(strings.TrimSpace(part))
}

// CleanSuffixNoise removes clinic locations and address fragments glued to
// the end of an exam name.
func CleanSuffixNoise(text string) string {
	cleaned := text
	for _, re := range suffixNoise {
		cleaned = strings.TrimSpace(re.ReplaceAllString(cleaned, ""))
	}
	return cleaned
}

// ApplyOCRCorrections fixes whole-line misreads of common exam names.
func ApplyOCRCorrections(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, c := range ocrCorrections {
		if c.pattern.MatchString(trimmed) {
			return c.value
		}
	}
	return text
}

// ExpandAntibodies splits "Dengue IgG IgM" into one line per distinct
// immunoglobulin class. Lines with fewer than two classes pass unchanged.
func ExpandAntibodies(text string) []string {
	igs := igClass.FindAllString(text, -1)
	distinct := map[string]struct{}{}
	for _, ig := range igs {
		distinct[strings.ToUpper(ig)] = struct{}{}
	}
	if len(distinct) < 2 {
		return []string{text}
	}

	base := igClass.ReplaceAllString(text, "")
	base = strings.Join(strings.Fields(base), " ")
	base = trailingAndEs.ReplaceAllString(base, "")
	base = strings.TrimRight(base, " ,.-")

	seen := map[string]struct{}{}
	out := make([]string, 0, len(distinct))
	for _, ig := range igs {
		ig = strings.ToUpper(ig)
		if _, ok := seen[ig]; ok {
			continue
		}
		seen[ig] = struct{}{}
		out = append(out, strings.TrimSpace(base+" "+ig))
	}
	return out
}
