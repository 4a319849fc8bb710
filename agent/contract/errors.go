package contract

import "errors"

// Recoverable errors: returned to the active stage as structured tool
// results so the conversation can continue.
var (
	ErrInvalidQuantity    = errors.New("quantity out of range")
	ErrItemNotFound       = errors.New("item not found")
	ErrItemUnavailable    = errors.New("item unavailable")
	ErrDistrictNotCovered = errors.New("district not covered")
	ErrAddressIncomplete  = errors.New("address incomplete")
	ErrEmptyOrder         = errors.New("order is empty")
)

// Terminal errors: end the turn with a fixed user-visible message.
var (
	ErrSessionClosed        = errors.New("session is closed")
	ErrInferenceUnavailable = errors.New("inference unavailable")
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrSchemaViolation = errors.New("model response violates schema")
)
