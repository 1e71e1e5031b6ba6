package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

// MemoryStore serves a fixed catalog from memory. Tests and the demo CLI
// path use it in place of Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]types.RawProduct
}

func NewMemoryStore(products ...types.RawProduct) *MemoryStore {
	s := &MemoryStore{products: make(map[string]types.RawProduct, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]types.RawProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.RawProduct, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (types.RawProduct, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.RawProduct{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok, nil
}

// Upsert replaces or adds a product, mirroring what a scraper run does to
// the real catalog.
func (s *MemoryStore) Upsert(p types.RawProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}
