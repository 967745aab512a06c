package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNothingToClaim      = errors.New("no balance to claim")
	ErrNotEligible         = errors.New("not eligible for gasless mint")
	ErrRollbackExhausted   = errors.New("debit rollback exhausted retries")
	ErrMintOutcomeUnknown  = errors.New("mint outcome unknown")
)

// InsufficientBalanceError carries the numbers behind a refused debit
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// parseAmount validates an unsigned integer wei amount
func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "not a number"}
	}
	if !d.Equal(d.Truncate(0)) {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must be an integer amount"}
	}
	if d.Sign() <= 0 {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must be positive"}
	}
	return d, nil
}
