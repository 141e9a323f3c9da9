package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyProcessed means the transaction left PENDING before this decision.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	ErrNotFound         = errors.New("not found")
	// ErrInsufficientBalance means a debit would drive a wallet below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrValidation          = errors.New("validation failed")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundError(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
}
