package staging

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// MemoryRepository keeps staged parents in process memory, partitioned by store.
// It does not survive restarts.
type MemoryRepository struct {
	mu     sync.RWMutex
	stores map[string]map[string]domain.StagingParent
}

// NewMemoryRepository creates an empty in-memory staging repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		stores: make(map[string]map[string]domain.StagingParent),
	}
}

func parentKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func cloneParent(p domain.StagingParent) domain.StagingParent {
	p.Variants = append([]domain.StagingVariant(nil), p.Variants...)
	return p
}

// List returns the store's parents, most recently updated first
func (r *MemoryRepository) List(ctx context.Context, store string) ([]domain.StagingParent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.stores[store]
	out := make([]domain.StagingParent, 0, len(bucket))
	for _, p := range bucket {
		out = append(out, cloneParent(p))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Upsert replaces each parent record in full, keeping the original creation time
func (r *MemoryRepository) Upsert(ctx context.Context, store string, parents []domain.StagingParent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.stores[store]
	if !ok {
		bucket = make(map[string]domain.StagingParent)
		r.stores[store] = bucket
	}

	for _, p := range parents {
		key := parentKey(p.ID)
		if existing, ok := bucket[key]; ok && !existing.CreatedAt.IsZero() {
			p.CreatedAt = existing.CreatedAt
		}
		bucket[key] = cloneParent(p)
	}
	return len(parents), nil
}

// Delete removes parents by id and returns how many existed
func (r *MemoryRepository) Delete(ctx context.Context, store string, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.stores[store]
	removed := 0
	for _, id := range ids {
		key := parentKey(id)
		if _, ok := bucket[key]; ok {
			delete(bucket, key)
			removed++
		}
	}
	return removed, nil
}
