package creditkit

import (
	"errors"
	"fmt"

	"github.com/creditkit/creditkit/id"
	"github.com/creditkit/creditkit/ledger"
	"github.com/creditkit/creditkit/store"
	"github.com/creditkit/creditkit/types"
)

// Sentinel errors for common failure scenarios, re-exported from the packages
// that raise them so callers have a single place to look.
var (
	// Storage errors
	ErrNotFound      = store.ErrNotFound
	ErrAlreadyExists = store.ErrAlreadyExists
	ErrUnsafeID      = store.ErrUnsafeID
	ErrStoreClosed   = store.ErrStoreClosed

	// Identifier errors
	ErrMalformedID = id.ErrMalformed

	// Balance errors
	ErrInsufficientFunds       = ledger.ErrInsufficientFunds
	ErrInsufficientLockedFunds = ledger.ErrInsufficientLockedFunds
	ErrInvalidAmount           = ledger.ErrInvalidAmount

	// One-time operation errors
	ErrAlreadyMinted   = ledger.ErrAlreadyMinted
	ErrAlreadyRewarded = ledger.ErrAlreadyRewarded

	// Schema errors
	ErrUnknownType     = ledger.ErrUnknownType
	ErrInvalidProperty = ledger.ErrInvalidProperty
	ErrDuplicateOwner  = ledger.ErrDuplicateOwner
)

// ValidationError represents a validation failure with details.
type ValidationError = types.ValidationError

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "creditkit: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("creditkit: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates the operation clashed with
// existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyMinted) ||
		errors.Is(err, ErrAlreadyRewarded) ||
		errors.Is(err, ErrDuplicateOwner)
}

// IsInsufficient returns true if the error is a balance check failure.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientLockedFunds)
}

// IsValidation returns true if the error is a malformed-input failure.
func IsValidation(err error) bool {
	var verr ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrMalformedID) ||
		errors.Is(err, ErrUnsafeID) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidProperty)
}
