package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"smartquote/internal"
	"smartquote/internal/util"
)

// Bridge maps a term to the official name of a coded terminology. The bool
// reports whether the term was known.
type Bridge interface {
	Search(ctx context.Context, term string) (string, bool, error)
}

// TUSSStore is the persistence TUSSBridge can load from, e.g. storage.DB.
type TUSSStore interface {
	ListTUSSTerms() ([]internal.TUSSTerm, error)
}

var parentheticalAlias = regexp.MustCompile(`\(([^()]*)\)`)

// Curated aliases pointing at catalog phrasings of TUSS procedures.
var manualTUSSSynonyms = map[string]string{
	"eas":                                   "urina rotina eas",
	"urina tipo 1":                          "urina rotina eas",
	"urina tipo i":                          "urina rotina eas",
	"sumario de urina":                      "urina rotina eas",
	"tsh":                                   "hormonio tireoestimulante tsh",
	"hemograma":                             "hemograma completo",
	"coprologico":                           "coprologico funcional",
	"h pylori":                              "antigeno helicobacter pylori",
	"pylori":                                "antigeno helicobacter pylori",
	"helicobacter pylori":                   "antigeno helicobacter pylori",
	"antigeno fecal":                        "antigeno helicobacter pylori",
	"pesquisa antigeno fecal para h pylori": "antigeno helicobacter pylori",
	"perfil lipidico":                       "lipidograma",
	"fsh":                                   "hormonio foliculo estimulante fsh",
	"hormonio foliculo estimulante":         "hormonio foliculo estimulante fsh",
	"tgo":                                   "aspartato aminotransferase ast",
	"ast":                                   "aspartato aminotransferase ast",
	"aspartato aminotransferase":            "aspartato aminotransferase ast",
	"tgp":                                   "alanina aminotransferase alt",
	"alt":                                   "alanina aminotransferase alt",
	"alanina aminotransferase":              "alanina aminotransferase alt",
	"hemoglobina glicada":                   "hemoglobina glicada a1c dosagem",
	"glicada":                               "hemoglobina glicada a1c dosagem",
	"hba1c":                                 "hemoglobina glicada a1c dosagem",
	"vitamina b12":                          "vitamina b12 pesquisa e ou dosagem",
	"vit b12":                               "vitamina b12 pesquisa e ou dosagem",
	"b12":                                   "vitamina b12 pesquisa e ou dosagem",
}

// TUSSBridge answers from the TUSS procedure table: official names,
// parenthetical abbreviations such as "(EAS)" and the curated aliases.
type TUSSBridge struct {
	names map[string]string
	codes map[string]string
}

func NewTUSSBridge(terms []internal.TUSSTerm) *TUSSBridge {
	b := &TUSSBridge{names: map[string]string{}, codes: map[string]string{}}
	for _, t := range terms {
		if t.Procedure == "" {
			continue
		}
		key := util.Normalize(t.Procedure)
		if key == "" {
			continue
		}
		b.names[key] = t.Procedure
		if t.Code != "" {
			b.codes[key] = t.Code
		}
		if m := parentheticalAlias.FindStringSubmatch(t.Procedure); m != nil {
			alias := util.Normalize(m[1])
			// single letters like (a) are list markers, not abbreviations
			if len(alias) > 2 {
				b.names[alias] = t.Procedure
			}
		}
	}
	for alias, name := range manualTUSSSynonyms {
		b.names[util.Normalize(alias)] = name
	}
	return b
}

func (b *TUSSBridge) Search(ctx context.Context, term string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if b == nil {
		return "", false, nil
	}
	name, ok := b.names[util.Normalize(term)]
	return name, ok, nil
}

// Code returns the TUSS code of an official procedure name.
func (b *TUSSBridge) Code(procedure string) (string, bool) {
	code, ok := b.codes[util.Normalize(procedure)]
	return code, ok
}

func (b *TUSSBridge) Len() int {
	return len(b.names)
}

type tussTable struct {
	Rows []struct {
		Code      any    `json:"codigo"`
		Procedure string `json:"procedimento"`
	} `json:"rows"`
}

// LoadJSON reads a TUSS table exported as {"rows":[{"codigo":..,"procedimento":..}]}.
func LoadJSON(path string) ([]internal.TUSSTerm, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var table tussTable
	if err := json.Unmarshal(blob, &table); err != nil {
		return nil, fmt.Errorf("tuss json %s: %w", path, err)
	}
	out := make([]internal.TUSSTerm, 0, len(table.Rows))
	for _, row := range table.Rows {
		term := internal.TUSSTerm{Procedure: strings.TrimSpace(row.Procedure)}
		switch code := row.Code.(type) {
		case string:
			term.Code = strings.TrimSpace(code)
		case float64:
			term.Code = strconv.FormatInt(int64(code), 10)
		}
		if term.Procedure != "" {
			out = append(out, term)
		}
	}
	return out, nil
}

// LoadXLSX reads the TUSS spreadsheet as published: a header row containing
// "Código" and "Procedimento" (or "Termo") somewhere in the first rows.
func LoadXLSX(path string) ([]internal.TUSSTerm, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.TUSSTerm{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		codeIdx, nameIdx := -1, -1
		for i, row := range rows {
			if nameIdx < 0 {
				if i > 10 {
					break
				}
				for j, cell := range row {
					switch util.Normalize(cell) {
					case "CODIGO", "CODIGO DO TERMO":
						codeIdx = j
					case "PROCEDIMENTO", "TERMO", "DESCRICAO":
						nameIdx = j
					}
				}
				continue
			}
			if nameIdx >= len(row) {
				continue
			}
			term := internal.TUSSTerm{Procedure: row[nameIdx]}
			if codeIdx >= 0 && codeIdx < len(row) {
				term.Code = row[codeIdx]
			}
			if util.Normalize(term.Procedure) != "" {
				out = append(out, term)
			}
		}
	}
	return out, nil
}

// LoadFile picks the reader by extension.
func LoadFile(path string) ([]internal.TUSSTerm, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return LoadJSON(path)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported tuss file type %q", ext)
	}
}

func FromStore(store TUSSStore) (*TUSSBridge, error) {
	terms, err := store.ListTUSSTerms()
	if err != nil {
		return nil, err
	}
	return NewTUSSBridge(terms), nil
}
