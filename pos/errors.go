/*
errors.go - Centralized error types for the transaction engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is / errors.As, never by message.

ERROR CATEGORIES:
  1. Validation   - bad input, always caller-fixable
  2. Not found    - customer/product/sale absent for a caller-supplied key
  3. Conflict     - duplicate key, closed sale, insufficient stock
  4. Integrity    - an internal lookup missed; always a bug, never user error
  5. Storage      - low-level failure, wrapped with its cause preserved

Nothing in this package retries. Retrying is the caller's decision.

SEE ALSO:
  - store.go: Stores return ErrDuplicateKey / StorageError
  - ledger.go: Returns InsufficientStockError
*/
package pos

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound         = errors.New("not found")
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrSaleNotFound     = fmt.Errorf("sale %w", ErrNotFound)

	// ErrDuplicateKey is returned when a unique business key (tax id,
	// product code) is already taken. Stores must return it from the
	// insert itself, not only from a pre-check.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrSaleClosed is returned when adding items to a closed sale.
	ErrSaleClosed = errors.New("sale is closed")

	// ErrSaleAlreadyClosed is returned by a second close attempt.
	ErrSaleAlreadyClosed = errors.New("sale already closed")

	// ErrIntegrity marks a referential integrity violation, e.g. a line item
	// pointing at a product id that does not exist.
	ErrIntegrity = errors.New("integrity violation")

	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type DuplicateKeyError struct {
	Entity string
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with key %s already exists", e.Entity, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// InsufficientStockError reports the quantity that was available when the
// reservation was rejected.
type InsufficientStockError struct {
	ProductID ProductID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %s, requested %s",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type IntegrityError struct {
	Op     string
	Detail string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("integrity error in %s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("integrity error in %s: %s", e.Op, e.Detail)
}

func (e *IntegrityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIntegrity}
	}
	return []error{ErrIntegrity, e.Err}
}

// StorageError wraps a driver-level failure. The cause stays reachable
// through errors.As for diagnostics.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the request was valid but clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrSaleClosed) ||
		errors.Is(err, ErrSaleAlreadyClosed)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
