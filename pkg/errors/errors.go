package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the API client, the query cache and the CLI.
const (
	CodeNetwork      = "NETWORK_ERROR"
	CodeServer       = "SERVER_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeValidation   = "VALIDATION_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// DefaultServerMessage is shown when a non-2xx response carries no message.
const DefaultServerMessage = "Request failed"

// AppError provides a structured error that can be rendered to users.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status,omitempty"`
	Retryable  bool   `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors by code so sentinel comparisons survive WithInternal copies.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if e == nil || !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a different message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	if message != "" {
		cpy.Message = message
	}
	return &cpy
}

var (
	ErrUnauthorized = &AppError{
		Code:       CodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNetwork = &AppError{
		Code:      CodeNetwork,
		Message:   "Unable to reach the server",
		Retryable: true,
	}

	ErrServer = &AppError{
		Code:       CodeServer,
		Message:    DefaultServerMessage,
		StatusCode: http.StatusInternalServerError,
	}

	ErrValidation = &AppError{
		Code:    CodeValidation,
		Message: "Invalid input",
	}

	ErrInternal = &AppError{
		Code:    CodeInternal,
		Message: "Internal error",
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewNetworkError wraps a transport failure. Network failures are always retryable.
func NewNetworkError(err error) *AppError {
	return ErrNetwork.WithInternal(err)
}

// NewServerError describes a non-2xx response. 5xx and 429 responses are retryable,
// other 4xx responses are not.
func NewServerError(statusCode int, message string) *AppError {
	if message == "" {
		message = DefaultServerMessage
	}
	code := CodeServer
	if statusCode == http.StatusUnauthorized {
		code = CodeUnauthorized
	}
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests,
	}
}

// NewValidationError reports invalid configuration or command input.
func NewValidationError(message string) *AppError {
	return ErrValidation.WithMessage(message)
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:     CodeInternal,
		Message:  message,
		Internal: err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternal.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternal.WithInternal(err)
}

// IsRetryable reports whether err is a transient failure worth another attempt.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
