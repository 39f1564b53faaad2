package pipeline

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Código", "Exame", "Valor"},
		{40304361, "Hemograma completo", 12.5},
		{40302040, "Glicose", 8},
	})
	lines, err := parseXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("len=%d", len(lines))
	}
	if lines[0].RawLine != "Hemograma completo" || lines[0].Meta["rowNumber"] != 2 {
		t.Fatalf("line0=%+v", lines[0])
	}
}

func TestParseXLSXWithoutHeader(t *testing.T) {
	blob := mkXLSX([][]any{
		{"123", "TSH", "32,00"},
		{"", "T4 livre", ""},
	})
	lines, err := parseXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0].RawLine != "TSH" || lines[1].RawLine != "T4 livre" {
		t.Fatalf("lines=%+v", lines)
	}
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	if _, err := parseXLSX([]byte("not a workbook")); err == nil {
		t.Fatal("expected error")
	}
}
