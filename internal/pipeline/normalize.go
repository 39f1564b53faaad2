package pipeline

import (
	"smartquote/internal"
	"smartquote/internal/filter"
)

// BuildCandidates turns the extracted lines of one document into exam
// candidates. One splitter serves the document so parent contexts carry
// across lines.
func BuildCandidates(lines []internal.ExtractedLine, f *filter.Filter, unit string) []internal.CandidateTerm {
	if f == nil {
		f = filter.Default()
	}
	splitter := filter.NewSplitter()

	out := make([]internal.CandidateTerm, 0, len(lines))
	for _, line := range lines {
		for _, exam := range f.LineCandidates(splitter, line.RawLine) {
			out = append(out, internal.CandidateTerm{RawText: exam, SourceLine: line.RawLine, Unit: unit})
		}
	}
	return out
}

func candidateTexts(candidates []internal.CandidateTerm) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.RawText)
	}
	return out
}

func rawLineTexts(lines []internal.ExtractedLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.RawLine)
	}
	return out
}
