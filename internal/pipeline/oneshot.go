package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"smartquote/internal"
)

// ExtractLinesFromFile reads a requisition document from disk. The format
// follows the extension; anything unknown is read as plain text, one exam
// per line.
func ExtractLinesFromFile(path string) ([]internal.ExtractedLine, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml":
		ext, err := ExtractLinesFromEmailRaw(blob)
		if err != nil {
			return nil, err
		}
		return ext.Lines, nil
	case ".html", ".htm":
		return parseEmailHTML(string(blob)), nil
	case ".xlsx":
		return parseXLSX(blob)
	case ".pdf":
		return parsePDF(blob)
	case ".xls":
		return nil, fmt.Errorf("unsupported input type: legacy .xls, save as .xlsx")
	default:
		return parsePlainText(string(blob), internal.SourceText), nil
	}
}

// LinesFromStrings wraps ad-hoc terms, e.g. command-line arguments.
func LinesFromStrings(values []string) []internal.ExtractedLine {
	out := make([]internal.ExtractedLine, 0, len(values))
	for _, v := range values {
		if l := toExtractedLine(internal.SourceText, len(out)+1, v); l != nil {
			out = append(out, *l)
		}
	}
	return out
}
