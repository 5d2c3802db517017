package shared

import (
	"errors"
	"fmt"
)

// Error codes used across the reconciliation engine.
const (
	CodeValidation    = "VALIDATION"
	CodeNotFound      = "NOT_FOUND"
	CodeConfiguration = "CONFIGURATION"
	CodeDispatch      = "DISPATCH"
	CodePersistence   = "PERSISTENCE"
	CodeInvalidState  = "INVALID_STATE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches any DomainError carrying the same code, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of its message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of the error carrying cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, cause: cause}
}

// Common domain errors
var (
	ErrValidation    = NewDomainError(CodeValidation, "invalid payload")
	ErrNotFound      = NewDomainError(CodeNotFound, "resource not found")
	ErrConfiguration = NewDomainError(CodeConfiguration, "missing configuration")
	ErrDispatch      = NewDomainError(CodeDispatch, "settlement dispatch failed")
	ErrPersistence   = NewDomainError(CodePersistence, "persistence failure")
	ErrInvalidState  = NewDomainError(CodeInvalidState, "operation not allowed in current state")
)

// NewValidationError reports a structurally invalid input.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing referenced record.
func NewNotFoundError(format string, args ...any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf(format, args...))
}

// NewConfigurationError reports a required setting that is absent.
func NewConfigurationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConfiguration, fmt.Sprintf(format, args...))
}

// NewDispatchError wraps a settlement submission failure.
func NewDispatchError(cause error, format string, args ...any) *DomainError {
	return ErrDispatch.Wrap(cause).withMessage(fmt.Sprintf(format, args...))
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(cause error, format string, args ...any) *DomainError {
	return ErrPersistence.Wrap(cause).withMessage(fmt.Sprintf(format, args...))
}

func (e *DomainError) withMessage(msg string) *DomainError {
	e.Message = msg
	return e
}

// ErrorCode extracts the DomainError code from err, or "" if none.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
