package catalog

import (
	"sort"
	"strings"

	"smartquote/internal"
	"smartquote/internal/util"
)

// Index is the per-batch lookup over one unit's catalog snapshot. It is not
// modified after BuildIndex returns.
type Index struct {
	ByKey   map[string][]internal.CatalogEntry
	Keys    []string
	Tokens  map[string]map[string]struct{}
	entries []internal.CatalogEntry
}

func BuildIndex(entries []internal.CatalogEntry) *Index {
	idx := &Index{
		ByKey:   map[string][]internal.CatalogEntry{},
		Tokens:  map[string]map[string]struct{}{},
		entries: make([]internal.CatalogEntry, 0, len(entries)),
	}

	for _, e := range entries {
		key := util.Normalize(e.DisplayName)
		if key == "" {
			continue
		}
		e.SearchKey = key
		idx.entries = append(idx.entries, e)
		if _, ok := idx.ByKey[key]; !ok {
			idx.Keys = append(idx.Keys, key)
			idx.Tokens[key] = util.TokenSet(key)
		}
		idx.ByKey[key] = append(idx.ByKey[key], e)
	}
	sort.Strings(idx.Keys)

	return idx
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

func (idx *Index) Entries() []internal.CatalogEntry {
	return idx.entries
}

func (idx *Index) Lookup(key string) ([]internal.CatalogEntry, bool) {
	if idx == nil {
		return nil, false
	}
	entries, ok := idx.ByKey[key]
	return entries, ok
}

type searchHit struct {
	entry   internal.CatalogEntry
	overlap int
	score   float64
}

// Search returns up to limit entries for a free-text term. Entries sharing a
// token with the term come first, ordered like resolver matches; the rest are
// scored by similarity and kept when the score reaches 60.
func (idx *Index) Search(term string, limit int) []internal.CatalogEntry {
	key := util.Normalize(term)
	if idx == nil || key == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	hits := make([]searchHit, 0)
	for _, e := range idx.entries {
		overlap := util.TokenOverlap(key, e.SearchKey)
		contained := strings.Contains(e.SearchKey, key)
		if overlap == 0 && !contained {
			score := util.Ratio(key, e.SearchKey)
			if score >= 60 {
				hits = append(hits, searchHit{entry: e, score: score})
			}
			continue
		}
		hits = append(hits, searchHit{entry: e, overlap: overlap, score: 100})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		if a.score != b.score {
			return a.score > b.score
		}
		da, db := absInt(len(a.entry.SearchKey)-len(key)), absInt(len(b.entry.SearchKey)-len(key))
		if da != db {
			return da < db
		}
		return a.entry.SearchKey < b.entry.SearchKey
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]internal.CatalogEntry, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.entry)
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
