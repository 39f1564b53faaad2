// Package curation renders the review report built from the resolver's
// journal: terms the catalog lacks and approximate matches worth turning
// into synonyms or learned mappings.
package curation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smartquote/internal"
)

const DefaultLimit = 50

// Source is the journal reader. storage.DB implements it.
type Source interface {
	TopMissingTerms(limit int) ([]internal.MissingTerm, error)
	TopSuggestions(limit int) ([]internal.MatchSuggestion, error)
	CountFCA() (int, error)
}

type Report struct {
	GeneratedAt time.Time
	Missing     []internal.MissingTerm
	Suggestions []internal.MatchSuggestion
	FCACount    int
}

func Build(src Source, limit int, now time.Time) (Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	missing, err := src.TopMissingTerms(limit)
	if err != nil {
		return Report{}, fmt.Errorf("missing terms: %w", err)
	}
	suggestions, err := src.TopSuggestions(limit)
	if err != nil {
		return Report{}, fmt.Errorf("suggestions: %w", err)
	}
	fca, err := src.CountFCA()
	if err != nil {
		return Report{}, fmt.Errorf("fca count: %w", err)
	}
	return Report{GeneratedAt: now, Missing: missing, Suggestions: suggestions, FCACount: fca}, nil
}

func suggestedAction(s internal.MatchSuggestion) string {
	switch s.Strategy {
	case internal.StrategySubstring, internal.StrategyContains:
		return "Confirmar o exame e cadastrar o termo como sinônimo"
	case internal.StrategySemanticFuzzy:
		return "Validar a sugestão do modelo e ensinar o mapeamento"
	default:
		return "Revisar a similaridade e ensinar o mapeamento se estiver correto"
	}
}

func (r Report) WriteMarkdown(w io.Writer) error {
	var b strings.Builder

	b.WriteString("# Relatório de Curadoria - SmartQuote\n\n")
	fmt.Fprintf(&b, "**Gerado em:** %s\n\n", r.GeneratedAt.Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "**Registros FCA:** %d\n\n", r.FCACount)
	b.WriteString("---\n\n")

	b.WriteString("## Exames não encontrados (adicionar na tabela de preços)\n\n")
	if len(r.Missing) == 0 {
		b.WriteString("*Nenhum termo pendente.*\n")
	} else {
		fmt.Fprintf(&b, "**Total:** %d termos\n", len(r.Missing))
		for _, m := range r.Missing {
			fmt.Fprintf(&b, "\n### `%s`\n", m.Term)
			fmt.Fprintf(&b, "- **Frequência:** %dx\n", m.Occurrences)
			fmt.Fprintf(&b, "- **Unidade:** %s\n", m.Unit)
			fmt.Fprintf(&b, "- **Última ocorrência:** %s\n", m.LastSeenAt)
			b.WriteString("- **Ação:** Verificar se o exame existe e adicionar na tabela de preços\n")
		}
	}

	b.WriteString("\n---\n\n")
	b.WriteString("## Sugestões de sinônimos (melhorar o matching)\n\n")
	if len(r.Suggestions) == 0 {
		b.WriteString("*Nenhuma sugestão pendente.*\n")
	} else {
		fmt.Fprintf(&b, "**Total:** %d sugestões\n", len(r.Suggestions))
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "\n### `%s` → `%s`\n", s.Term, s.Matched)
			fmt.Fprintf(&b, "- **Frequência:** %dx\n", s.Occurrences)
			fmt.Fprintf(&b, "- **Unidade:** %s\n", s.Unit)
			fmt.Fprintf(&b, "- **Estratégia atual:** %s\n", s.Strategy)
			fmt.Fprintf(&b, "- **Ação sugerida:** %s\n", suggestedAction(s))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteMarkdown(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
