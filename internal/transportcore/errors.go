// Package transportcore holds the error taxonomy shared by the transport
// services, repositories and the HTTP layer.
package transportcore

import (
	"errors"
	"fmt"
)

// Business-rule and contention errors. Capacity errors (ErrRouteFull) and
// seat conflicts (ErrSeatAlreadyTaken) are distinct on purpose: the UI
// offers "route is full" versus "choose another seat" guidance.
var (
	ErrDuplicateActiveRequest = errors.New("student already has a live transport request for this term")
	ErrAlreadySubscribed      = errors.New("student already has an active subscription for this term")
	ErrInvalidRequestState    = errors.New("request is not in a state that allows this action")
	ErrRouteFull              = errors.New("route has no available seats")
	ErrSeatAlreadyTaken       = errors.New("seat is already taken")
	ErrSubscriptionNotActive  = errors.New("subscription is not active")
	ErrRequestNotFound        = errors.New("request not found")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrRouteNotFound          = errors.New("route not found")
	ErrBusNotFound            = errors.New("bus not found")
	ErrStopNotFound           = errors.New("stop not found")
	ErrNotPermitted           = errors.New("actor is not permitted to perform this action")
)

// FieldError points at a specific invalid input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports malformed input. Always recoverable by the caller.
type ValidationError struct {
	Msg    string
	Fields []FieldError
}

func NewValidationError(msg string, fields ...FieldError) error {
	return &ValidationError{Msg: msg, Fields: fields}
}

func (e *ValidationError) Error() string { return e.Msg }

// InvariantViolation signals a programming defect upstream (e.g. approval
// logic let a second active subscription through), not bad input. It is
// logged distinctly and never shown as a user-correctable error.
type InvariantViolation struct {
	Msg string
}

func NewInvariantViolation(format string, args ...interface{}) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvariantViolation reports whether err is an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrBusNotFound) ||
		errors.Is(err, ErrStopNotFound)
}

// IsConflict reports whether err is a business-rule or contention error that
// maps to HTTP 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateActiveRequest) ||
		errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrInvalidRequestState) ||
		errors.Is(err, ErrRouteFull) ||
		errors.Is(err, ErrSeatAlreadyTaken) ||
		errors.Is(err, ErrSubscriptionNotActive)
}
