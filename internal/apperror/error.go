package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// AppError is an error with a stable code, a public message and the HTTP
// status it maps to.
type AppError struct {
	Code       Code      `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Context    string    `json:"context,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	cause      error
	stack      []uintptr
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Reason renders the error for display to an end user.
func (e *AppError) Reason() string {
	if e.Context != "" {
		return e.Message + ": " + e.Context
	}
	return e.Message
}

func captureStack() []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// New creates an AppError with the catalog message and status of code.
func New(code Code, opts ...Option) *AppError {
	def := lookup(code)
	err := &AppError{
		Code:       code,
		Message:    def.message,
		StatusCode: def.status,
		Timestamp:  time.Now(),
		stack:      captureStack(),
	}

	for _, opt := range opts {
		opt(err)
	}
	return err
}

type Option func(*AppError)

func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

// WithContext attaches the detail shown after the message, such as an
// account or a chain ID.
func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

func WithStatusCode(statusCode int) Option {
	return func(e *AppError) {
		e.StatusCode = statusCode
	}
}

func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// Validation creates a 400 error.
func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusBadRequest))
}

// Internal creates a 500 error wrapping cause.
func Internal(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithStatusCode(http.StatusInternalServerError))
}

// Wrap returns the AppError already in err's chain, filling an empty
// context, or wraps err as an Internal error with code.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := As(err); ok {
		if context != "" && appErr.Context == "" {
			appErr.Context = context
		}
		return appErr
	}
	return Internal(code, context, err)
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the code of the first AppError in err's chain, or
// UNKNOWN_ERROR.
func GetCode(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeUnknownError
}
