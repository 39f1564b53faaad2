package learning

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"smartquote/internal"
	"smartquote/internal/storage"
	"smartquote/internal/util"
)

var ErrEmptyMapping = errors.New("learned mapping needs a term and a canonical name")

// Store keeps human corrections: normalized source term -> canonical catalog
// name. Writes are upserts; the last writer wins.
type Store interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Learn(ctx context.Context, original, canonical string) error
	List(ctx context.Context) ([]internal.LearnedMapping, error)
}

func mappingKey(original, canonical string) (string, string, error) {
	key := util.Normalize(original)
	canonical = strings.TrimSpace(canonical)
	if key == "" || canonical == "" {
		return "", "", ErrEmptyMapping
	}
	return key, canonical, nil
}

type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mappings: map[string]string{}}
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.mappings[key]
	return v, ok, nil
}

func (s *MemoryStore) Learn(_ context.Context, original, canonical string) error {
	key, canonical, err := mappingKey(original, canonical)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mappings[key] = canonical
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]internal.LearnedMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedMappings(s.mappings), nil
}

func sortedMappings(m map[string]string) []internal.LearnedMapping {
	out := make([]internal.LearnedMapping, 0, len(m))
	for k, v := range m {
		out = append(out, internal.LearnedMapping{SourceKey: k, CanonicalName: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceKey < out[j].SourceKey })
	return out
}

// SQLiteStore persists mappings in the learned_mappings table.
type SQLiteStore struct {
	db *storage.DB
}

func NewSQLiteStore(db *storage.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := s.db.GetLearnedMapping(key)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (s *SQLiteStore) Learn(ctx context.Context, original, canonical string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, canonical, err := mappingKey(original, canonical)
	if err != nil {
		return err
	}
	return s.db.UpsertLearnedMapping(key, canonical)
}

func (s *SQLiteStore) List(ctx context.Context) ([]internal.LearnedMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.db.ListLearnedMappings()
}
