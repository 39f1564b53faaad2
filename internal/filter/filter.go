package filter

import "strings"

type Decision struct {
	Accepted bool
	Rule     string
}

// Filter decides whether a raw line can be an exam name.
type Filter struct {
	rules []Rule
}

func New(rules ...Rule) *Filter {
	return &Filter{rules: rules}
}

func Default() *Filter {
	return New(DefaultRules()...)
}

func (f *Filter) Evaluate(raw string) Decision {
	line := NewLine(raw)
	if line.Raw == "" {
		return Decision{Accepted: false, Rule: "empty"}
	}
	for _, r := range f.rules {
		if r.Match(line) {
			return Decision{Accepted: r.Action == Keep, Rule: r.Name}
		}
	}
	return Decision{Accepted: true}
}

func (f *Filter) Accept(raw string) bool {
	return f.Evaluate(raw).Accepted
}

// Candidates turns a document's raw lines into exam candidates. Output
// order follows input order.
func (f *Filter) Candidates(lines []string) []string {
	s := NewSplitter()
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, f.LineCandidates(s, line)...)
	}
	return out
}

// LineCandidates rejects the whole line first, then splits what is left with
// s and filters every single exam again. A rejected line never reaches the
// splitter, so dates and form metadata cannot leak through as fragments.
func (f *Filter) LineCandidates(s *Splitter, raw string) []string {
	if !f.Accept(raw) {
		return nil
	}
	var out []string
	for _, part := range s.SplitLine(raw) {
		for _, exam := range ExpandAntibodies(part) {
			exam = strings.TrimSpace(exam)
			if f.Accept(exam) {
				out = append(out, exam)
			}
		}
	}
	return out
}
