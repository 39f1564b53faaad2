package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Trailing boilerplate that never tells two exams apart. Longest phrases first.
var noiseSuffixes = [][]string{
	{"EXAMES", "LABORATORIAIS"},
	{"EXAME", "LABORATORIAL"},
	{"LABORATORIAIS"},
	{"LABORATORIAL"},
	{"EXAMES"},
	{"EXAME"},
}

// StripDiacritics removes combining marks (NFD, drop Mn, NFC).
func StripDiacritics(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

// Normalize turns arbitrary text into the comparison key used by every
// lookup: accent-free, upper case, alphanumerics separated by single spaces,
// boilerplate suffixes removed. Normalize(Normalize(x)) == Normalize(x).
func Normalize(input string) string {
	s := strings.ToUpper(StripDiacritics(input))

	b := strings.Builder{}
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	tokens = stripNoiseSuffixes(tokens)
	return strings.Join(tokens, " ")
}

func stripNoiseSuffixes(tokens []string) []string {
	for {
		stripped := false
		for _, phrase := range noiseSuffixes {
			if len(tokens) <= len(phrase) {
				continue
			}
			if hasSuffixTokens(tokens, phrase) {
				tokens = tokens[:len(tokens)-len(phrase)]
				stripped = true
				break
			}
		}
		if !stripped {
			return tokens
		}
	}
}

func hasSuffixTokens(tokens, suffix []string) bool {
	offset := len(tokens) - len(suffix)
	for i, s := range suffix {
		if tokens[offset+i] != s {
			return false
		}
	}
	return true
}

// TokenSet expects an already normalized key.
func TokenSet(key string) map[string]struct{} {
	fields := strings.Fields(key)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// TokenOverlap counts the distinct tokens two normalized keys share.
func TokenOverlap(a, b string) int {
	bs := TokenSet(b)
	n := 0
	for t := range TokenSet(a) {
		if _, ok := bs[t]; ok {
			n++
		}
	}
	return n
}

// SignificantChars returns the upper-cased alphanumeric content of a line,
// used by the short-token rules.
func SignificantChars(input string) string {
	b := strings.Builder{}
	for _, r := range strings.ToUpper(StripDiacritics(input)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func RuneLen(s string) int {
	return len([]rune(s))
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func IntPtr(v int) *int { return &v }
