package documents

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]Item // caseID -> items
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string][]Item),
	}
}

// CreateItems stores items.
func (r *MemoryRepo) CreateItems(ctx context.Context, items []Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		r.data[it.CaseID] = append(r.data[it.CaseID], it)
	}
	return nil
}

// ListByCase returns the items of a case in display order.
func (r *MemoryRepo) ListByCase(ctx context.Context, caseID string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	items := append([]Item(nil), r.data[caseID]...)
	r.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// UpdateItem applies a partial update to one item of a case.
func (r *MemoryRepo) UpdateItem(ctx context.Context, caseID, itemID string, upd Update) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.data[caseID]
	for i := range items {
		if items[i].ID == itemID {
			items[i].apply(upd)
			return items[i], nil
		}
	}
	return Item{}, ErrNotFound
}

// DeleteByCase drops the items of a deleted case. Postgres cascades instead.
func (r *MemoryRepo) DeleteByCase(caseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, caseID)
}
