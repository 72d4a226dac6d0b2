package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a positive whole number of points")
	ErrInvalidOp           = errors.New("op must be one of earn, redeem")
	ErrInsufficientBalance = errors.New("insufficient points balance")
	ErrStoreUnavailable    = errors.New("ledger store unavailable")
	ErrUserNotFound        = errors.New("no loyalty account for this email")
	ErrForbidden           = errors.New("operation not permitted for this caller")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidStatus       = errors.New("unknown order status")
	ErrInvalidOrder        = errors.New("invalid order")
)

// InsufficientBalanceError carries the numbers behind a rejected redeem.
type InsufficientBalanceError struct {
	UserID    string
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient points balance: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// StoreError wraps a failure from the ledger or order store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidOp) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}
