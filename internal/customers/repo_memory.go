package customers

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu        sync.RWMutex
	customers map[string]Customer
	byEmail   map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		customers: make(map[string]Customer),
		byEmail:   make(map[string]string),
	}
}

// Create stores a new customer.
func (r *MemoryRepo) Create(ctx context.Context, c Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(c.Email)
	if _, ok := r.byEmail[key]; ok {
		return ErrDuplicateEmail
	}
	r.customers[c.ID] = c
	r.byEmail[key] = c.ID
	return nil
}

// Upsert stores c unless its email is already known.
func (r *MemoryRepo) Upsert(ctx context.Context, c Customer) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(c.Email)
	if id, ok := r.byEmail[key]; ok {
		return r.customers[id], nil
	}
	r.customers[c.ID] = c
	r.byEmail[key] = c.ID
	return c, nil
}

// GetByID returns a customer by id.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

// GetByEmail returns a customer by email.
func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return r.customers[id], nil
}

// List returns all customers, newest first.
func (r *MemoryRepo) List(ctx context.Context) ([]Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
