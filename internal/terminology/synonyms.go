package terminology

import "smartquote/internal/util"

// Alias table: a colloquial or abbreviated exam name mapped to the catalog
// phrasings worth trying, most specific first.
var defaultSynonyms = map[string][]string{
	"eas":                             {"urina rotina eas", "urina tipo i", "urina tipo 1", "sumario de urina", "elementos anormais do sedimento"},
	"elementos anormais do sedimento": {"urina tipo i", "urina rotina eas"},
	"urina tipo i":                    {"urina tipo i", "eas", "urina rotina eas"},
	"hemograma":                       {"hemograma completo", "hemograma com contagem de plaquetas"},
	"hemograma completo":              {"hemograma"},
	"epf":                             {"parasitologico de fezes", "protoparasitologico"},
	"parasitologico":                  {"parasitologico de fezes"},
	"glicose":                         {"glicemia", "glicemia de jejum", "dosagem de glicose"},
	"glicemia":                        {"glicemia", "glicemia de jejum"},
	"glicada":                         {"hemoglobina glicada", "hemoglobina glicada a1c", "hba1c"},
	"hemoglobina glicada":             {"hemoglobina glicada", "hemoglobina glicada a1c", "hba1c"},
	"colesterol":                      {"colesterol total", "colesterol total e fracoes"},
	"colesterol total":                {"colesterol total e fracoes"},
	"perfil lipidico":                 {"lipidograma", "lipidogramas"},
	"lipidograma":                     {"lipidograma", "lipidogramas"},
	"coprologico":                     {"coprologico funcional"},
	"coprologico funcional":           {"coprologico funcional"},
	"h pylori":                        {"antigeno helicobacter pylori", "pesquisa de helicobacter pylori", "helicobacter pylori fezes"},
	"pylori":                          {"antigeno helicobacter pylori"},
	"helicobacter pylori":             {"antigeno helicobacter pylori"},
	"tsh":                             {"hormonio tireoestimulante", "tsh ultra sensivel"},
	"tsh ultra":                       {"hormonio tireoestimulante", "tsh"},
	"fsh":                             {"hormonio foliculo estimulante", "dosagem de hormonio foliculo estimulante", "fsh"},
	"hormonio foliculo estimulante":   {"hormonio foliculo estimulante", "fsh"},
	"t4 livre":                        {"tiroxina livre", "t4"},
	"ureia":                           {"dosagem de ureia", "ureia"},
	"creatinina":                      {"dosagem de creatinina", "creatinina"},
	"acido urico":                     {"dosagem de acido urico", "acido urico"},
	"beta hcg":                        {"beta hcg qualitativo", "beta hcg quantitativo"},
	"grupo sanguineo":                 {"tipagem sanguinea", "grupo sanguineo fator rh"},
	"tgo":                             {"dosagem de tgo", "tgo transaminase oxalacetica", "transaminase glutamico oxalacetica", "aspartato aminotransferase", "ast"},
	"ast":                             {"dosagem de tgo", "aspartato aminotransferase", "tgo"},
	"tgp":                             {"dosagem de tgp", "tgp transaminase piruvica", "transaminase glutamico piruvica", "alanina aminotransferase", "alt"},
	"alt":                             {"dosagem de tgp", "alanina aminotransferase", "tgp"},
	"vitamina d":                      {"25 hidroxivitamina d", "dosagem de vitamina d", "vitamina d 25 oh", "vit d", "25 oh vitamina d"},
	"25 hidroxivitamina d":            {"vitamina d", "vitamina d 25 oh", "25 oh vitamina d"},
	"vitamina d 25 oh":                {"25 hidroxivitamina d", "vitamina d"},
	"vit d":                           {"25 hidroxivitamina d", "vitamina d"},
	"ferritina":                       {"ferritina serica", "dosagem de ferritina"},
	"vitamina b12":                    {"vitamina b12 serica", "dosagem de vitamina b12", "cobalamina"},
	"vhs":                             {"vhs hemossedimentacao", "velocidade de hemossedimentacao"},
	"urocultura":                      {"cultura de urina urocultura", "pesquisa de bacterias na urina"},
	"antibiograma":                    {"teste de sensibilidade a antibioticos antibiograma"},
	"complemento c3":                  {"c3", "complemento c3"},
	"complemento c4":                  {"c4", "complemento c4"},
	"ch 50":                           {"ch50", "complemento ch50"},
	"dosagens de imunoglobulinas igg": {"igg", "imunoglobulina g"},
	"dosagens de imunoglobulinas igm": {"igm", "imunoglobulina m"},
	"dosagens de imunoglobulinas iga": {"iga", "imunoglobulina a"},
	"igg":                             {"imunoglobulina g", "dosagem de igg"},
	"igm":                             {"imunoglobulina m", "dosagem de igm"},
	"iga":                             {"imunoglobulina a", "dosagem de iga"},
	"gama gt":                         {"gama glutamil transferase", "gama gt", "ggt"},
	"pcr":                             {"proteina c reativa", "pcr ultra sensivel"},
}

// SynonymTable holds normalized aliases. It is read-only after construction.
type SynonymTable struct {
	aliases map[string][]string
}

// NewSynonymTable merges extra aliases over the built-in table. Keys and
// phrasings are normalized; an extra entry replaces the built-in one.
func NewSynonymTable(extra map[string][]string) *SynonymTable {
	t := &SynonymTable{aliases: map[string][]string{}}
	for alias, phrasings := range defaultSynonyms {
		t.add(alias, phrasings)
	}
	for alias, phrasings := range extra {
		t.add(alias, phrasings)
	}
	return t
}

func (t *SynonymTable) add(alias string, phrasings []string) {
	key := util.Normalize(alias)
	if key == "" {
		return
	}
	out := make([]string, 0, len(phrasings))
	seen := map[string]struct{}{}
	for _, p := range phrasings {
		norm := util.Normalize(p)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	if len(out) > 0 {
		t.aliases[key] = out
	}
}

// Lookup returns the normalized phrasings for a normalized key, in order.
func (t *SynonymTable) Lookup(key string) []string {
	if t == nil {
		return nil
	}
	return t.aliases[key]
}

func (t *SynonymTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.aliases)
}
