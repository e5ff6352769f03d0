package services

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when no record matches the given identifier.
	ErrNotFound = errors.New("not found")

	// ErrNoActiveLoan is returned when an operation needs an active loan for an
	// ISBN and there is none. It matches ErrNotFound.
	ErrNoActiveLoan = fmt.Errorf("%w: no active loan for this book", ErrNotFound)

	// ErrAlreadyBorrowed is returned when the book already has an active loan.
	ErrAlreadyBorrowed = errors.New("book is already borrowed")

	// ErrOutstandingPenalty is returned when a borrower with unpaid fines tries to borrow.
	ErrOutstandingPenalty = errors.New("outstanding penalty")

	// ErrUnpaidPenalty is returned when a return is attempted while the loan
	// still has an active penalty.
	ErrUnpaidPenalty = errors.New("unpaid penalty")

	// ErrForeignLoan is returned when a payment names a user other than the borrower.
	ErrForeignLoan = errors.New("loan belongs to another user")

	// ErrNothingDue is returned when paying a penalty for a loan that is not overdue.
	ErrNothingDue = errors.New("no penalty due for this book")

	// ErrInvalidArgument is returned for out-of-range call arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation error")

	// ErrBookNotFound is returned when the catalog has no book with the ISBN.
	ErrBookNotFound = fmt.Errorf("%w: book not in catalog", ErrNotFound)

	// ErrCatalogDisabled is returned by catalog operations when no catalog is configured.
	ErrCatalogDisabled = errors.New("catalog is not configured")
)

// ValidationError reports the first field of a record that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
