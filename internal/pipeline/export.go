package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"smartquote/internal"
	"smartquote/internal/util"
)

var exportHeaders = []string{
	"line_no", "source", "raw_line", "term",
	"status", "strategy", "confidence",
	"entry_id", "entry_name", "category", "price",
	"alternatives",
}

func ExportRowsToXLSX(rows []internal.ExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.LineNo)
		set(2, row.Source)
		set(3, row.RawLine)
		set(4, row.Term)
		set(5, row.Status)
		set(6, row.Strategy)
		set(7, row.Confidence)
		set(8, derefInt(row.EntryID))
		set(9, derefString(row.EntryName))
		set(10, derefString(row.Category))
		set(11, derefFloat(row.Price))
		set(12, row.Alternatives)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportItemsToXLSX writes a batch that was never stored, e.g. from the
// resolve command.
func ExportItemsToXLSX(items []internal.ResolutionItem, outputPath string) error {
	return ExportRowsToXLSX(ItemsToRows(items), outputPath)
}

func ItemsToRows(items []internal.ResolutionItem) []internal.ExportRow {
	rows := make([]internal.ExportRow, 0, len(items))
	for i, it := range items {
		row := internal.ExportRow{
			LineNo:     i + 1,
			Source:     string(internal.SourceText),
			RawLine:    it.Term,
			Term:       firstNonEmpty(it.ResolvedTerm, it.Term),
			Status:     string(it.Status),
			Strategy:   string(it.Strategy),
			Confidence: it.Confidence,
		}
		alternatives := make([]string, 0, len(it.Matches))
		for j, m := range it.Matches {
			if it.SelectedMatch != nil && *it.SelectedMatch == j {
				row.EntryID = util.IntPtr(m.ID)
				row.EntryName = util.StringPtr(m.DisplayName)
				row.Category = util.StringPtr(m.Category)
				row.Price = util.FloatPtr(m.Price)
				continue
			}
			alternatives = append(alternatives, m.DisplayName)
		}
		if len(alternatives) > 5 {
			alternatives = alternatives[:5]
		}
		row.Alternatives = strings.Join(alternatives, "; ")
		rows = append(rows, row)
	}
	return rows
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
