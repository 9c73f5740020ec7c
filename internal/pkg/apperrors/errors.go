package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrPrecondition   ErrorType = "PRECONDITION_FAILED"
	ErrUnauthorized   ErrorType = "UNAUTHORIZED"
	ErrCooldown       ErrorType = "COOLDOWN"
	ErrInvalidState   ErrorType = "INVALID_STATE"
	ErrArithmetic     ErrorType = "ARITHMETIC"
	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrNotFound       ErrorType = "NOT_FOUND"
	ErrUpstream       ErrorType = "UPSTREAM_ERROR"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType              `json:"code"`
	Message    string                 `json:"message"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail attaches context a caller needs to decide when to retry.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Precondition(msg string) *AppError {
	return New(ErrPrecondition, msg, nil)
}

func Unauthorized(msg string) *AppError {
	return New(ErrUnauthorized, msg, nil)
}

func Cooldown(msg string) *AppError {
	return New(ErrCooldown, msg, nil)
}

func InvalidState(msg string) *AppError {
	return New(ErrInvalidState, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Upstream(msg string, cause error) *AppError {
	return New(ErrUpstream, msg, cause)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// TypeOf returns the ErrorType of err, or "" when err is not an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrPrecondition, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrCooldown, ErrInvalidState:
		return http.StatusConflict
	case ErrArithmetic:
		return http.StatusUnprocessableEntity
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrCooldown:
		return "Retry after the cooldown in details has elapsed."
	case ErrInvalidState:
		return "Check should-rebalance for the action currently allowed."
	case ErrUnauthorized:
		return "Check the caller address and request signature."
	case ErrUpstream:
		return "A collaborator (oracle, lending, venue) failed; state was not changed."
	default:
		return ""
	}
}
