package filter

import (
	"regexp"
	"strings"

	"smartquote/internal/util"
)

type Action int

const (
	Keep Action = iota
	Reject
)

func (a Action) String() string {
	if a == Keep {
		return "keep"
	}
	return "reject"
}

// Line is what a rule sees: the trimmed raw text, its accent-free upper
// case form and its alphanumeric content.
type Line struct {
	Raw         string
	Upper       string
	Significant string
}

func NewLine(raw string) Line {
	raw = strings.TrimSpace(raw)
	return Line{
		Raw:         raw,
		Upper:       strings.ToUpper(util.StripDiacritics(raw)),
		Significant: util.SignificantChars(raw),
	}
}

// Rule is one entry of the plausibility table. The first rule whose Match
// returns true decides; a line no rule matches is accepted.
type Rule struct {
	Name      string
	Action    Action
	Rationale string
	Match     func(Line) bool
}

// Short exam names that survive the minimum-length rule.
var ShortTokenWhitelist = map[string]struct{}{
	"T3": {}, "T4": {}, "TSH": {}, "CK": {}, "K": {}, "NA": {}, "P": {}, "MG": {}, "CL": {},
	"FE": {}, "LI": {}, "CR": {}, "DHL": {}, "LDH": {}, "C3": {}, "C4": {}, "VHS": {}, "PCR": {},
	"PSA": {}, "CEA": {}, "AFP": {}, "CA": {}, "PTH": {}, "ACTH": {}, "GH": {}, "LH": {},
	"FSH": {}, "EAS": {}, "HIV": {}, "VDRL": {}, "HBSAG": {}, "FAN": {}, "IGA": {}, "IGE": {},
	"IGG": {}, "IGM": {}, "ZN": {}, "CU": {}, "PTA": {},
}

// Administrative vocabulary of requisition forms: doctor and patient
// identification, addresses, billing, page furniture.
var AdministrativeTerms = []string{
	"DRA.", "DR.", "CRM", "DATA", "ASSINATURA", "PACIENTE", "CONVENIO",
	"RUA", "AV.", "TEL:", "CEP:", "BAIRRO", "CIDADE", "ESTADO",
	"SOLICITO", "PEDIDO", "REQUISICAO", "CNPJ", "CPF", "RG",
	"LABORATORIO", "CLINICA", "HOSPITAL", "UNIMED", "BRADESCO",
	"RESULTADO", "IMPRESSAO", "PAGINA", "FOLHA", "OBS:", "OBSERVACAO",
	"ATENCIOSAMENTE", "GRATO", "VISTO", "REMESSA", "PROTOCOLO",
	"SENHA", "HORA", "COLETA", "IDADE", "SERV.", "NASCIMENTO",
}

var (
	datePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/(\d{4}|\d{2})\b`)
	timePattern = regexp.MustCompile(`\b\d{2}:\d{2}\b`)
)

func IsWhitelisted(text string) bool {
	_, ok := ShortTokenWhitelist[util.SignificantChars(text)]
	return ok
}

func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "short_token_whitelist",
			Action:    Keep,
			Rationale: "well-known short exam codes such as TSH, K+ or C3",
			Match: func(l Line) bool {
				_, ok := ShortTokenWhitelist[l.Significant]
				return ok
			},
		},
		{
			Name:      "too_short",
			Action:    Reject,
			Rationale: "fewer than 3 alphanumeric characters is OCR debris",
			Match:     func(l Line) bool { return util.RuneLen(l.Significant) < 3 },
		},
		{
			Name:      "administrative_prefix",
			Action:    Reject,
			Rationale: "line starts with form metadata (doctor, patient, address, footer)",
			Match: func(l Line) bool {
				for _, term := range AdministrativeTerms {
					if strings.HasPrefix(l.Upper, term) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:      "administrative_token",
			Action:    Reject,
			Rationale: "form metadata appears as a separate word inside the line",
			Match: func(l Line) bool {
				padded := " " + l.Upper + " "
				for _, term := range AdministrativeTerms {
					if strings.Contains(padded, " "+term+" ") {
						return true
					}
				}
				return false
			},
		},
		{
			Name:      "date",
			Action:    Reject,
			Rationale: "dates belong to headers and signatures",
			Match:     func(l Line) bool { return datePattern.MatchString(l.Raw) },
		},
		{
			Name:      "time",
			Action:    Reject,
			Rationale: "clock times belong to headers and collection slips",
			Match:     func(l Line) bool { return timePattern.MatchString(l.Raw) },
		},
	}
}
