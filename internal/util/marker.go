package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	bulletPattern      = regexp.MustCompile(`^[\s\-*•·>]+`)
	enumerationPattern = regexp.MustCompile(`^\s*(\d{1,3})\s*[.)\-:º°]\s*`)
	repeatPattern      = regexp.MustCompile(`(?i)\(?\s*(\d{1,2})\s*x\s*\)?\s*$`)
)

type ListMarker struct {
	Ordinal *int
	Repeat  *int
	Text    string
}

// ParseListMarker strips bullets, leading enumeration ("1)", "01 -", "2.")
// and a trailing repeat marker ("(2x)") from a requisition line.
func ParseListMarker(input string) ListMarker {
	line := strings.ReplaceAll(input, "\u00A0", " ")
	out := ListMarker{}

	line = bulletPattern.ReplaceAllString(line, "")
	if m := enumerationPattern.FindStringSubmatch(line); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out.Ordinal = IntPtr(n)
		}
		line = line[len(m[0]):]
	}
	line = bulletPattern.ReplaceAllString(line, "")

	if m := repeatPattern.FindStringSubmatchIndex(line); m != nil && m[0] > 0 {
		if n, err := strconv.Atoi(line[m[2]:m[3]]); err == nil && n > 0 {
			out.Repeat = IntPtr(n)
			line = line[:m[0]]
		}
	}

	out.Text = strings.TrimSpace(line)
	return out
}
