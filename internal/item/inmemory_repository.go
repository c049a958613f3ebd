package item

import (
	"context"
	"sync"
)

// InMemoryRepository is a thread-safe item lookup useful for local runs and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewInMemoryRepository(items ...Item) *InMemoryRepository {
	r := &InMemoryRepository{items: make(map[string]Item, len(items))}
	for _, it := range items {
		r.Put(it)
	}
	return r
}

// Put inserts or replaces an item.
func (r *InMemoryRepository) Put(it Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it.Claims = append([]Claim(nil), it.Claims...)
	r.items[it.ID] = it
}

// AddClaim appends a claim to an existing item.
func (r *InMemoryRepository) AddClaim(id string, c Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status == "" {
		c.Status = ClaimPending
	}
	it.Claims = append(it.Claims, c)
	r.items[id] = it
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	it.Claims = append([]Claim(nil), it.Claims...)
	return &it, nil
}
