package points

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized        = errors.New("points: unauthorized")
	ErrForbidden           = errors.New("points: forbidden")
	ErrNotFound            = errors.New("points: user not found")
	ErrInvalidInput        = errors.New("points: invalid input")
	ErrInsufficientBalance = errors.New("points: insufficient balance")
	ErrProcessingFailed    = errors.New("points: processing failed")
	ErrChargeInProgress    = errors.New("points: charge already in progress")
)

// InsufficientBalanceError carries the shortfall so clients can tell the
// user how many points to add.
type InsufficientBalanceError struct {
	Balance int
	Cost    int
}

func (e *InsufficientBalanceError) Shortfall() int {
	if e.Cost <= e.Balance {
		return 0
	}
	return e.Cost - e.Balance
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: balance %d, cost %d", ErrInsufficientBalance.Error(), e.Balance, e.Cost)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ProcessingError reports an upstream failure. Status is 0 when no HTTP
// response was received (network error, timeout, open circuit).
type ProcessingError struct {
	Status  int
	Message string
	Timeout bool
	Err     error
}

func (e *ProcessingError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", ErrProcessingFailed.Error(), e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", ErrProcessingFailed.Error(), msg)
}

func (e *ProcessingError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProcessingFailed, e.Err}
	}
	return []error{ErrProcessingFailed}
}

// InputError names the offending field.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput.Error(), e.Field, e.Message)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }
