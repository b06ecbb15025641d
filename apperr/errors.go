// Package apperr defines the error codes surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodeInvalidParam     Code = "invalid_param"
	CodeInvalidUpload    Code = "invalid_upload"
	CodeProviderInit     Code = "provider_init"
	CodeGenerationFailed Code = "generation_failed"
	CodeRenderFailed     Code = "render_failed"
	CodeInternalError    Code = "internal_error"
)

// AppError carries a user-facing message and the HTTP status it maps to.
type AppError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError without an underlying cause.
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap attaches the cause err to a new AppError.
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidParam, CodeInvalidUpload, CodeProviderInit:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// As returns err as an *AppError, wrapping unknown errors as internal.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternalError, "internal error")
}
