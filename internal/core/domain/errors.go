package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ReasonCode is the machine-readable failure reason surfaced to callers.
type ReasonCode string

const (
	CodeOK                ReasonCode = "ok"
	CodeAlreadyProcessed  ReasonCode = "already_processed"
	CodeValidation        ReasonCode = "validation_error"
	CodeInvalidState      ReasonCode = "invalid_state"
	CodeInsufficientStock ReasonCode = "insufficient_stock"
	CodeNegativeStock     ReasonCode = "negative_stock"
	CodeConflict          ReasonCode = "conflict"
	CodeNotFound          ReasonCode = "not_found"
	CodeForbidden         ReasonCode = "forbidden"
	CodeInternal          ReasonCode = "internal_error"
	CodeRateLimited       ReasonCode = "rate_limited"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyApproved is returned when an approval finds the order already
	// past review. Callers treat it as a no-op, not as a failure.
	ErrAlreadyApproved = errors.New("order already approved")
)

type ValidationError struct {
	Message string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func NewValidationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StateError reports an operation attempted in a lifecycle state that does not
// allow it. Current lets the caller react to the real state.
type StateError struct {
	Op      string
	Current Status
}

func NewStateError(op string, current Status) *StateError {
	return &StateError{Op: op, Current: current}
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s", e.Op, e.Current)
}

type Shortage struct {
	Key       StockKey `json:"key"`
	Name      string   `json:"name,omitempty"`
	Required  int      `json:"required"`
	Available int      `json:"available"`
}

func (s Shortage) Missing() int {
	return s.Required - s.Available
}

type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		label := s.Key.String()
		if s.Name != "" {
			label = s.Name + " (" + label + ")"
		}
		parts = append(parts, fmt.Sprintf("%s short by %d", label, s.Missing()))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

type NegativeStockError struct {
	Key     StockKey
	Current int
	Delta   int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("stock %s would go negative: current %d, delta %d", e.Key, e.Current, e.Delta)
}

// ConflictError means a concurrent writer won; the operation may be retried.
type ConflictError struct {
	Resource string
	Err      error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("concurrent modification of %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("concurrent modification of %s", e.Resource)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// CodeOf classifies any error into a ReasonCode.
func CodeOf(err error) ReasonCode {
	if err == nil {
		return CodeOK
	}

	var (
		validationErr *ValidationError
		stateErr      *StateError
		stockErr      *InsufficientStockError
		negativeErr   *NegativeStockError
		conflictErr   *ConflictError
	)

	switch {
	case errors.Is(err, ErrAlreadyApproved):
		return CodeAlreadyProcessed
	case errors.As(err, &validationErr):
		return CodeValidation
	case errors.As(err, &stateErr):
		return CodeInvalidState
	case errors.As(err, &stockErr):
		return CodeInsufficientStock
	case errors.As(err, &negativeErr):
		return CodeNegativeStock
	case errors.As(err, &conflictErr):
		return CodeConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}
