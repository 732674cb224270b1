package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"scorekit/domain/core"
)

// AppError is an error with a stable code for CLI exit handling and HTTP
// status mapping.
type AppError struct {
	Code    string
	Message string
	Cause   error
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

// Error codes
const (
	CodeSchemaIncompatible = "SCHEMA_INCOMPATIBLE"
	CodeUnimplemented      = "UNIMPLEMENTED"
	CodeChecksumField      = "CHECKSUM_FIELD"
	CodeCancelled          = "CANCELLED"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeInternalError      = "INTERNAL_ERROR"
)

// New creates an AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap adds context; the code of an AppError cause is kept, otherwise it is
// derived from the domain error the cause wraps.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: GetCode(err), Message: message, Cause: err}
}

// Wrapf is Wrap with a format string
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode replaces the code of err
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{Code: code, Message: appErr.Message, Cause: appErr.Cause}
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// GetCode returns the code of the outermost AppError in err's chain, or the
// code matching a wrapped domain sentinel, or INTERNAL_ERROR.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case err == nil:
		return ""
	case core.IsSchemaError(err):
		return CodeSchemaIncompatible
	case core.IsUnimplemented(err):
		return CodeUnimplemented
	case stderrors.Is(err, core.ErrChecksumField):
		return CodeChecksumField
	case core.IsCancelled(err):
		return CodeCancelled
	case core.IsNotFoundError(err):
		return CodeNotFound
	case stderrors.Is(err, core.ErrInvalidParameters), stderrors.Is(err, core.ErrInvalidKey):
		return CodeInvalidInput
	default:
		return CodeInternalError
	}
}

// HTTPStatus maps an error to a response status
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeSchemaIncompatible, CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnimplemented:
		return http.StatusNotImplemented
	case CodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
