package customers

import "context"

// Repo defines persistence operations for customers. Emails are compared
// case-insensitively.
type Repo interface {
	Create(ctx context.Context, c Customer) error
	// Upsert inserts c unless a customer with the same email exists, and
	// returns the stored customer either way.
	Upsert(ctx context.Context, c Customer) (Customer, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	GetByEmail(ctx context.Context, email string) (Customer, error)
	List(ctx context.Context) ([]Customer, error)
}
