package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Registration outcomes. Each rejection keeps its own code so callers can
// tell an attendee exactly why the attempt was refused.
var (
	ErrRegistrationClosed    = New("REGISTRATION_CLOSED", http.StatusConflict, "event is not open for registration")
	ErrRegistrationDisabled  = New("REGISTRATION_DISABLED", http.StatusConflict, "registration is disabled for this event")
	ErrRegistrationNotOpen   = New("REGISTRATION_NOT_OPEN", http.StatusConflict, "registration has not opened yet")
	ErrRegistrationEnded     = New("REGISTRATION_WINDOW_CLOSED", http.StatusConflict, "registration window has closed")
	ErrEventAlreadyStarted   = New("EVENT_ALREADY_STARTED", http.StatusConflict, "event has already started")
	ErrDuplicateRegistration = New("DUPLICATE_REGISTRATION", http.StatusConflict, "this email is already registered for the event")
	ErrEventFull             = New("EVENT_FULL", http.StatusConflict, "event has no seats remaining")
)

// Scheduling outcomes.
var (
	ErrNoOccurrences            = New("NO_OCCURRENCES", http.StatusUnprocessableEntity, "recurrence rule produced no occurrences")
	ErrAllOccurrencesConflicted = New("ALL_OCCURRENCES_CONFLICTED", http.StatusConflict, "every generated occurrence conflicts with an existing booking")
	ErrTransactionFailed        = New("TRANSACTION_FAILED", http.StatusInternalServerError, "transaction failed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
