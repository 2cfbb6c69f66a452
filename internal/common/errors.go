package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ValidationError indicates malformed input the caller can correct.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError indicates an unknown request, product, lot or user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// StateError indicates an operation that is invalid for the entity's current
// lifecycle state (e.g. approving a request whose payment is not verified).
type StateError struct {
	Op      string
	Current string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %q", e.Op, e.Current)
}

// InsufficientStockError indicates central stock or lot availability cannot
// satisfy the requested quantity. Available tells the caller how many units
// could actually be served so it can retry with a feasible amount.
type InsufficientStockError struct {
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, %d available", e.Requested, e.Available)
}

// OverAllocationError indicates the ledger invariant
// 0 <= allocated_units <= total_units would be violated. It is an internal
// consistency fault, never a normal caller-facing failure, and must never be
// silently corrected.
type OverAllocationError struct {
	LotID uuid.UUID
	Delta int
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("over-allocation on lot %s: delta %d violates ledger invariant", e.LotID, e.Delta)
}

// DuplicateError indicates an idempotency guard tripped, e.g. a retried
// approval attempting to open a second lot for the same source request.
type DuplicateError struct {
	Resource string
	Key      string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists for %s", e.Resource, e.Key)
}

// HTTPStatus maps the domain error taxonomy to transport status codes.
// OverAllocationError deliberately maps to 500: it is an operator problem,
// not a caller problem.
func HTTPStatus(err error) int {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		stateErr      *StateError
		stockErr      *InsufficientStockError
		overErr       *OverAllocationError
		dupErr        *DuplicateError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &stateErr):
		return http.StatusConflict
	case errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dupErr):
		return http.StatusConflict
	case errors.As(err, &overErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the machine-readable code used in the JSON error envelope.
func ErrorCode(err error) string {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		stateErr      *StateError
		stockErr      *InsufficientStockError
		overErr       *OverAllocationError
		dupErr        *DuplicateError
	)
	switch {
	case errors.As(err, &validationErr):
		return "VALIDATION_ERROR"
	case errors.As(err, &notFoundErr):
		return "NOT_FOUND"
	case errors.As(err, &stateErr):
		return "INVALID_STATE"
	case errors.As(err, &stockErr):
		return "INSUFFICIENT_STOCK"
	case errors.As(err, &dupErr):
		return "DUPLICATE"
	case errors.As(err, &overErr):
		return "INTERNAL_CONSISTENCY"
	default:
		return "SERVER_ERROR"
	}
}
