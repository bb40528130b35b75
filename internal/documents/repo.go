package documents

import "context"

// Repo defines persistence operations for document items.
type Repo interface {
	CreateItems(ctx context.Context, items []Item) error
	ListByCase(ctx context.Context, caseID string) ([]Item, error)
	UpdateItem(ctx context.Context, caseID, itemID string, upd Update) (Item, error)
}
