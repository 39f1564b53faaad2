package resolver

import (
	"sort"
	"strings"

	"smartquote/internal"
	"smartquote/internal/util"
)

// Specimen words in a candidate and the material they ask for.
var materialKeywords = []struct{ keyword, material string }{
	{"FECAL", "FEZES"},
	{"FEZES", "FEZES"},
	{"SANGUINEO", "SANGUE"},
	{"SANGUE", "SANGUE"},
	{"SERICO", "SERICO"},
	{"URINARIO", "URINA"},
	{"URINA", "URINA"},
}

var highTrust = map[internal.Strategy]bool{
	internal.StrategyLearned: true,
	internal.StrategyExact:   true,
	internal.StrategySynonym: true,
	internal.StrategyTUSS:    true,
}

func entryKey(e internal.CatalogEntry) string {
	if e.SearchKey != "" {
		return e.SearchKey
	}
	return util.Normalize(e.DisplayName)
}

func materialsOf(key string) []string {
	var out []string
	for _, m := range materialKeywords {
		if strings.Contains(key, m.keyword) {
			out = append(out, m.material)
		}
	}
	return out
}

type rankedEntry struct {
	entry     internal.CatalogEntry
	key       string
	overlap   int
	material  bool
	exact     bool
	contained bool
	lenDiff   int
}

// Rank removes repeated entry IDs and orders matches by relevance to key.
func Rank(key string, entries []internal.CatalogEntry) []internal.CatalogEntry {
	if len(entries) == 0 {
		return []internal.CatalogEntry{}
	}
	materials := materialsOf(key)
	keyLen := util.RuneLen(key)

	seen := make(map[int]struct{}, len(entries))
	ranked := make([]rankedEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}

		ek := entryKey(e)
		r := rankedEntry{
			entry:     e,
			key:       ek,
			overlap:   util.TokenOverlap(key, ek),
			exact:     ek == key,
			contained: key != "" && strings.Contains(ek, key),
			lenDiff:   absInt(util.RuneLen(ek) - keyLen),
		}
		for _, m := range materials {
			if strings.Contains(ek, m) {
				r.material = true
				break
			}
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		if a.material != b.material {
			return a.material
		}
		if a.exact != b.exact {
			return a.exact
		}
		if a.contained != b.contained {
			return a.contained
		}
		if a.lenDiff != b.lenDiff {
			return a.lenDiff < b.lenDiff
		}
		if la, lb := util.RuneLen(a.key), util.RuneLen(b.key); la != lb {
			return la < lb
		}
		return a.key < b.key
	})

	out := make([]internal.CatalogEntry, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.entry)
	}
	return out
}

// Classify decides the status of ranked matches.
func Classify(strategy internal.Strategy, key string, ranked []internal.CatalogEntry) internal.Status {
	if len(ranked) == 0 {
		return internal.StatusNotFound
	}
	if len(ranked) == 1 || entryKey(ranked[0]) == key || highTrust[strategy] {
		return internal.StatusConfirmed
	}
	return internal.StatusMultiple
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
