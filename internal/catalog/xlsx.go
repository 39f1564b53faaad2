package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"smartquote/internal"
	"smartquote/internal/util"
)

type priceListColumns struct {
	id, name, category, price int
}

// LoadXLSX reads a unit price list. The header row is located among the
// first three rows of each sheet; rows without a name are skipped and rows
// without a numeric code get a sequential ID.
func LoadXLSX(path, unit string) ([]internal.CatalogEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadXLSX(bytes.NewReader(content), unit)
}

func ReadXLSX(r io.Reader, unit string) ([]internal.CatalogEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.CatalogEntry{}
	nextID := 1
	seenIDs := map[int]struct{}{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		cols := priceListColumns{-1, -1, -1, -1}
		for i, row := range rows {
			cells := trimCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && cols.name < 0 {
				if inferred, ok := inferPriceListColumns(cells); ok {
					cols = inferred
					continue
				}
			}
			if cols.name < 0 {
				cols = priceListColumns{id: -1, name: 0, category: -1, price: 1}
			}

			name := cellAt(cells, cols.name)
			if name == "" {
				continue
			}

			id, ok := toInt(cellAt(cells, cols.id))
			if !ok {
				for {
					if _, taken := seenIDs[nextID]; !taken {
						break
					}
					nextID++
				}
				id = nextID
			}
			seenIDs[id] = struct{}{}

			price, _ := parsePrice(cellAt(cells, cols.price))
			out = append(out, internal.CatalogEntry{
				ID:          id,
				DisplayName: name,
				SearchKey:   util.Normalize(name),
				Category:    cellAt(cells, cols.category),
				Price:       price,
				Unit:        unit,
			})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("price list: %w", ErrEmptySnapshot)
	}
	return out, nil
}

func inferPriceListColumns(headers []string) (priceListColumns, bool) {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, util.Normalize(h))
	}
	cols := priceListColumns{
		id:       findColumn(norm, "CODIGO", "COD", "ITEM ID", "ID"),
		name:     findColumn(norm, "EXAME", "EXAMES", "PROCEDIMENTO", "DESCRICAO", "ITEM NAME", "NOME"),
		category: findColumn(norm, "GRUPO", "CATEGORIA", "SETOR", "GROUP"),
		price:    findColumn(norm, "PRECO", "VALOR", "PRICE"),
	}
	return cols, cols.name >= 0
}

func findColumn(headers []string, probes ...string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if h == probe || strings.HasPrefix(h, probe+" ") {
				return i
			}
		}
	}
	return -1
}

func cellAt(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return cells[idx]
	}
	return ""
}

func trimCells(row []string) []string {
	out := make([]string, 0, len(row))
	nonEmpty := false
	for _, c := range row {
		c = strings.Join(strings.Fields(c), " ")
		if c != "" {
			nonEmpty = true
		}
		out = append(out, c)
	}
	if !nonEmpty {
		return nil
	}
	return out
}
