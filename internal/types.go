package internal

type ItemSource string

const (
	SourceEmailText      ItemSource = "email_text"
	SourceEmailHTMLTable ItemSource = "email_html_table"
	SourceXLSX           ItemSource = "xlsx"
	SourcePDF            ItemSource = "pdf"
	SourceText           ItemSource = "text"
)

// ExtractedLine is one raw line handed over by an extraction source (OCR text,
// e-mail body, spreadsheet row, PDF text layer).
type ExtractedLine struct {
	LineNo  int
	Source  ItemSource
	RawLine string
	Meta    map[string]any
}

type CatalogEntry struct {
	ID          int     `json:"id"`
	DisplayName string  `json:"displayName"`
	SearchKey   string  `json:"searchKey"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Unit        string  `json:"unit"`
}

type CandidateTerm struct {
	RawText    string
	SourceLine string
	Unit       string
}

type Status string

const (
	StatusConfirmed         Status = "confirmed"
	StatusMultiple          Status = "multiple"
	StatusNotFound          Status = "not_found"
	StatusDuplicate         Status = "duplicate"
	StatusNeedsRegistration Status = "needs_registration"
)

type Strategy string

const (
	StrategyNone           Strategy = "none"
	StrategyLearned        Strategy = "learned"
	StrategyExact          Strategy = "exact"
	StrategySynonym        Strategy = "synonym"
	StrategyTUSS           Strategy = "tuss"
	StrategySubstring      Strategy = "substring"
	StrategyTokenOverlap   Strategy = "token_overlap"
	StrategyShortToken     Strategy = "short_token_high_precision"
	StrategyPhaseA         Strategy = "phase_a_high_precision"
	StrategyPhaseB         Strategy = "phase_b_high_coverage"
	StrategyContains       Strategy = "contains_fallback"
	StrategySemanticExact  Strategy = "semantic_exact"
	StrategySemanticFuzzy  Strategy = "semantic_fuzzy"
	StrategyManualFallback Strategy = "manual_fallback"
)

type ResolutionItem struct {
	Term          string         `json:"term"`
	ResolvedTerm  string         `json:"resolvedTerm,omitempty"`
	NormalizedKey string         `json:"normalizedKey"`
	Status        Status         `json:"status"`
	Matches       []CatalogEntry `json:"matches"`
	Strategy      Strategy       `json:"matchStrategy"`
	Confidence    float64        `json:"confidence"`
	SelectedMatch *int           `json:"selectedMatch"`
}

type BatchStats struct {
	Confirmed          int  `json:"confirmed"`
	Pending            int  `json:"pending"`
	NotFound           int  `json:"not_found"`
	Duplicate          int  `json:"duplicate"`
	Total              int  `json:"total"`
	CatalogCount       int  `json:"catalogCount"`
	CatalogUnavailable bool `json:"catalogUnavailable"`
	SemanticActive     bool `json:"semanticActive"`
}

type BatchResult struct {
	RunID string           `json:"runId"`
	Unit  string           `json:"unit"`
	Items []ResolutionItem `json:"items"`
	Stats BatchStats       `json:"stats"`
}

type AuditReport struct {
	AccuracyScore    float64  `json:"accuracyScore"`
	CoverageScore    float64  `json:"coverageScore"`
	MissedCandidates []string `json:"missedCandidates"`
	NoiseLeaked      []string `json:"noiseLeaked"`
	Recommendations  []string `json:"recommendations"`
}

type LearnedMapping struct {
	SourceKey     string
	CanonicalName string
	UpdatedAt     string
}

type TUSSTerm struct {
	Code      string `json:"codigo"`
	Procedure string `json:"procedimento"`
}

// FCAEntry is a fact/cause/action record kept for every item that needed a
// human or a fallback to be resolved.
type FCAEntry struct {
	Term     string
	Unit     string
	Fact     string
	Cause    string
	Action   string
	Strategy Strategy
}

type MissingTerm struct {
	Term        string
	Unit        string
	Occurrences int
	LastSeenAt  string
}

type MatchSuggestion struct {
	Term        string
	Matched     string
	Unit        string
	Strategy    Strategy
	Occurrences int
}

type RunRecord struct {
	RunID         string
	EmailID       int
	Unit          string
	Counts        map[string]int
	Timings       map[string]float64
	CoverageScore float64
	AccuracyScore float64
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type ExportRow struct {
	LineNo       int
	Source       string
	RawLine      string
	Term         string
	Status       string
	Strategy     string
	Confidence   float64
	EntryID      *int
	EntryName    *string
	Category     *string
	Price        *float64
	Alternatives string
}
