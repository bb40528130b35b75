package chasers

import "errors"

var (
	// ErrNotFound indicates the case or attempt does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidStatus indicates an unsupported status transition.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrNotPending indicates the attempt was already processed.
	ErrNotPending = errors.New("attempt is not pending")
)
