package pipeline

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"smartquote/internal"
	"smartquote/internal/util"
)

// Mail chatter around the exam list: greetings, sign-offs, links.
var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^--+$`),
	regexp.MustCompile(`(?i)^(bom dia|boa tarde|boa noite|ol[aá]|prezad[oa]s?|caro|cara)\b`),
	regexp.MustCompile(`(?i)^(segue|seguem|encaminho|favor|por favor)\b`),
	regexp.MustCompile(`(?i)^(atenciosamente|att\.?|abs\.?|obrigad[oa]|grat[oa])\b`),
	regexp.MustCompile(`(?i)^enviado (do|de) meu`),
	regexp.MustCompile(`(?i)^e-?mail[:\s]`),
	regexp.MustCompile(`(?i)^(tel|fone|whatsapp)[:\s]`),
	regexp.MustCompile(`(?i)^https?://`),
	regexp.MustCompile(`(?i)^(de|para|enviado|assunto|cc):\s`),
}

var (
	hasLetter  = regexp.MustCompile(`\pL`)
	spaceRun   = regexp.MustCompile(`\s+`)
	onlyNumber = regexp.MustCompile(`^[\d\s.,/\-R$]*$`)
)

// Header words that name the exam column of a table or spreadsheet, most
// specific first.
var examHeaderProbes = []string{"EXAME", "PROCEDIMENTO", "DESCRICAO", "SOLICITACAO", "NOME"}

// Extraction is everything read out of one requisition e-mail.
type Extraction struct {
	Lines       []internal.ExtractedLine
	Subject     string
	Text        string
	HTML        string
	Attachments []string
}

func ExtractLinesFromEmailRaw(raw []byte) (Extraction, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Extraction{}, err
	}

	lines := make([]internal.ExtractedLine, 0)
	if env.HTML != "" {
		lines = append(lines, parseEmailHTML(env.HTML)...)
	}
	if env.Text != "" {
		lines = append(lines, parseEmailText(env.Text)...)
	}

	attachments := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachments = append(attachments, filename)

		var extra []internal.ExtractedLine
		lower := strings.ToLower(filename)
		switch {
		case strings.HasSuffix(lower, ".xlsx"):
			extra, err = parseXLSX(att.Content)
		case strings.HasSuffix(lower, ".pdf"):
			extra, err = parsePDF(att.Content)
		case strings.HasSuffix(lower, ".txt"):
			extra, err = parsePlainText(string(att.Content), internal.SourceText), nil
		default:
			continue
		}
		if err != nil {
			continue
		}
		for i := range extra {
			if extra[i].Meta == nil {
				extra[i].Meta = map[string]any{}
			}
			extra[i].Meta["attachment"] = filename
		}
		lines = append(lines, extra...)
	}

	lines = dedupeLines(lines)
	for i := range lines {
		lines[i].LineNo = i + 1
	}

	return Extraction{
		Lines:       lines,
		Subject:     env.GetHeader("Subject"),
		Text:        env.Text,
		HTML:        env.HTML,
		Attachments: attachments,
	}, nil
}

func parseEmailText(text string) []internal.ExtractedLine {
	return parsePlainText(text, internal.SourceEmailText)
}

func parsePlainText(text string, source internal.ItemSource) []internal.ExtractedLine {
	lines := splitLines(text)
	out := make([]internal.ExtractedLine, 0, len(lines))
	for i, line := range lines {
		if l := toExtractedLine(source, i+1, line); l != nil {
			out = append(out, *l)
		}
	}
	return out
}

// parseEmailHTML reads exam names from tables (the exam column, or the first
// textual cell) and from list items.
func parseEmailHTML(html string) []internal.ExtractedLine {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.ExtractedLine{}
	lineNo := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() == 0 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, util.Normalize(cell.Text()))
		})
		examIdx := findHeaderIndex(headers, examHeaderProbes)
		body := rows
		if examIdx >= 0 {
			body = rows.Slice(1, rows.Length())
		}

		body.Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			name := pickCell(cells, examIdx, firstTextCell(cells))
			if name == "" {
				return
			}
			lineNo++
			if l := toExtractedLine(internal.SourceEmailHTMLTable, lineNo, name); l != nil {
				l.Meta["row"] = cells
				out = append(out, *l)
			}
		})
	})

	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		lineNo++
		if l := toExtractedLine(internal.SourceEmailHTMLTable, lineNo, li.Text()); l != nil {
			l.Meta["list"] = true
			out = append(out, *l)
		}
	})

	return out
}

func parseXLSX(content []byte) ([]internal.ExtractedLine, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lineNo := 0
	out := []internal.ExtractedLine{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		examIdx := -1
		for i, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && examIdx < 0 {
				if idx := inferExamColumn(cells); idx >= 0 {
					examIdx = idx
					continue
				}
			}

			name := pickCell(cells, examIdx, firstTextCell(cells))
			if name == "" {
				continue
			}
			lineNo++
			l := toExtractedLine(internal.SourceXLSX, lineNo, name)
			if l == nil {
				continue
			}
			l.Meta["sheet"] = sheet
			l.Meta["rowNumber"] = i + 1
			out = append(out, *l)
		}
	}

	return out, nil
}

// parsePDF reads the text layer of a requisition PDF. Scanned PDFs without
// text yield nothing; those go through OCR upstream.
func parsePDF(content []byte) ([]internal.ExtractedLine, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []internal.ExtractedLine{}
	lineNo := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			lineNo++
			if l := toExtractedLine(internal.SourcePDF, lineNo, line); l != nil {
				l.Meta["page"] = i
				out = append(out, *l)
			}
		}
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toExtractedLine(source internal.ItemSource, lineNo int, rawLine string) *internal.ExtractedLine {
	compact := normalizeSpaces(rawLine)
	if compact == "" || isLikelyNoise(compact) || !hasLetter.MatchString(compact) {
		return nil
	}

	line := internal.ExtractedLine{
		LineNo:  lineNo,
		Source:  source,
		RawLine: compact,
		Meta:    map[string]any{},
	}
	if marker := util.ParseListMarker(compact); marker.Ordinal != nil {
		line.Meta["ordinal"] = *marker.Ordinal
	}
	return &line
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(input, " "))
}

func isLikelyNoise(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// dedupeLines drops repeats of the same exam text, e.g. the plain-text
// alternative of an HTML body. List markers do not count.
func dedupeLines(lines []internal.ExtractedLine) []internal.ExtractedLine {
	seen := map[string]struct{}{}
	out := make([]internal.ExtractedLine, 0, len(lines))
	for _, l := range lines {
		key := util.Normalize(util.ParseListMarker(l.RawLine).Text)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

func findHeaderIndex(headers []string, probes []string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

// firstTextCell is the first cell that is not a code, quantity or price.
func firstTextCell(cells []string) int {
	for i, c := range cells {
		if c != "" && !onlyNumber.MatchString(c) && hasLetter.MatchString(c) {
			return i
		}
	}
	return -1
}

func inferExamColumn(cells []string) int {
	norm := make([]string, 0, len(cells))
	for _, c := range cells {
		norm = append(norm, util.Normalize(c))
	}
	return findHeaderIndex(norm, examHeaderProbes)
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}
