// Package customers is the contact directory cases are linked to.
package customers

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrDuplicateEmail indicates another customer already uses the email.
	ErrDuplicateEmail = errors.New("customer with this email already exists")
	// ErrInvalidInput indicates a request failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Customer is one directory entry.
type Customer struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	ChaserCount int       `json:"chaserCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
