package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chatrelay/internal/pkg/logx"
)

// CustomError is the error type shared by the chat core and the HTTP layer.
type CustomError struct {
	// Code is one of the constants in this package.
	Code int

	// Message is safe to show to the end user.
	Message string

	// Status is the HTTP status used when the error is written as a response.
	Status int
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Is reports whether target is a CustomError with the same code, so callers can
// write errors.Is(err, errs.NewError(errs.ErrUsernameInUse)).
func (e *CustomError) Is(target error) bool {
	var other *CustomError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewError builds a CustomError from the template registered for code. Details are
// printf arguments for templates containing verbs. For ErrUnknown, a leading error
// detail is logged instead. Unknown codes degrade to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	tmpl, ok := errorMap[code]
	if !ok {
		logx.Error(fmt.Errorf("no template for error code %d", code), "unknown error code requested")
		tmpl = errorMap[ErrUnknown]
	}

	customErr := tmpl
	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	switch {
	case len(details) == 0:
	case customErr.Code == ErrUnknown:
		if cause, ok := details[0].(error); ok {
			logx.Error(cause, "unclassified error")
		}
	case strings.Contains(customErr.Message, "%"):
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	default:
		logx.Warn("error details ignored; template has no verbs", "code", code)
	}

	return &customErr
}
