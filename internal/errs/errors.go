package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	// ErrForbidden marks a referential violation: the referenced record belongs to another owner.
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	// ErrInvalid is the parent of every input validation failure.
	ErrInvalid = errors.New("invalid")
	// ErrPersistence wraps failures of the underlying store.
	ErrPersistence = errors.New("persistence_failure")
)

// Specific validation errors. Each one matches its parent with errors.Is.
var (
	ErrInvalidAmount      = coded("invalid_amount", ErrInvalid)
	ErrInvalidKind        = coded("invalid_kind", ErrInvalid)
	ErrInvalidFrequency   = coded("invalid_frequency", ErrInvalid)
	ErrInvalidDate        = coded("invalid_date", ErrInvalid)
	ErrCurrencyMismatch   = coded("currency_mismatch", ErrInvalid)
	ErrInvalidCurrency    = coded("invalid_currency", ErrInvalid)
	ErrInvalidAccountType = coded("invalid_account_type", ErrInvalid)
	// ErrInvalidAccount: account missing, inactive, or owned by someone else.
	ErrInvalidAccount = coded("invalid_account", ErrForbidden)
)

type codedError struct {
	code   string
	parent error
}

func coded(code string, parent error) error { return &codedError{code: code, parent: parent} }

func (e *codedError) Error() string { return e.code }
func (e *codedError) Unwrap() error { return e.parent }

// Code returns the machine-readable code of a specific error, or "" when err
// does not carry one.
func Code(err error) string {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return ""
}

// Persistence wraps a store failure so callers can match ErrPersistence and still reach the cause.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Invalid attaches a message to a validation sentinel.
func Invalid(sentinel error, msg string) error {
	return fmt.Errorf("%w: %s", sentinel, msg)
}
