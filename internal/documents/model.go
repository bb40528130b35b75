// Package documents tracks the individual documents requested by a case.
package documents

import (
	"errors"
	"time"
)

// Item statuses.
const (
	StatusPending  = "pending"
	StatusReceived = "received"
	StatusAltered  = "altered"
)

var (
	// ErrNotFound indicates the item does not exist.
	ErrNotFound = errors.New("document item not found")
	// ErrInvalidInput indicates an update failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Item is one requested document within a case.
type Item struct {
	ID          string
	CaseID      string
	Name        string
	Description string
	Status      string
	Order       int
	Notes       string
	ReceivedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Update is a partial change to an item. Nil fields are left as they are.
type Update struct {
	Status *string
	Notes  *string
	At     time.Time
}

// apply merges upd into the item. Moving to received stamps ReceivedAt and
// moving away from it clears the stamp.
func (it *Item) apply(upd Update) {
	if upd.Status != nil && *upd.Status != it.Status {
		it.Status = *upd.Status
		if it.Status == StatusReceived {
			at := upd.At
			it.ReceivedAt = &at
		} else {
			it.ReceivedAt = nil
		}
	}
	if upd.Notes != nil {
		it.Notes = *upd.Notes
	}
	it.UpdatedAt = upd.At
}

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusReceived, StatusAltered:
		return true
	}
	return false
}
