package pos

import (
	"errors"
	"fmt"
)

// Failure taxonomy of the shift and sale paths. Everything except
// TransactionError is detected before any write; TransactionError means the
// atomic persistence step failed and guarantees nothing was committed.
var (
	ErrShiftNotFound      = errors.New("shift not found")
	ErrShiftNotOwned      = errors.New("shift does not belong to this seller")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrSaleNotFound       = errors.New("sale not found")
)

// ValidationError marks malformed input: the caller's fault, safe to show.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// OpenShiftError rejects a second open shift for a seller and carries the id
// of the shift that is already open so the caller can resume it.
type OpenShiftError struct {
	ShiftID string
}

func (e *OpenShiftError) Error() string {
	return fmt.Sprintf("an open shift already exists: %s", e.ShiftID)
}

// TransactionError wraps an infrastructure failure of the atomic persistence
// step. The transaction was rolled back; retrying once is safe.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
