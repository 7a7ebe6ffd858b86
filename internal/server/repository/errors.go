package repository

import "errors"

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrCodeTaken indicates another account already holds the code.
	ErrCodeTaken = errors.New("code already in use")
)
