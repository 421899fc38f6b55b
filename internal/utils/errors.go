package utils

import (
	"errors"
	"fmt"
)

// Error kinds shared by the transports when mapping failures to status codes.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrModelNotReady = errors.New("model not ready")
	ErrThrottled     = errors.New("request throttled")
	ErrTraining      = errors.New("training failed")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op   string
	Msg  string
	Kind error
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// NewKindError constructs an AppError classified under kind.
func NewKindError(kind error, op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Kind: kind, Err: err}
}

// Message returns the human-facing message of the outermost AppError in err,
// or err.Error() when there is none.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var app *AppError
	if errors.As(err, &app) {
		return app.Msg
	}
	return err.Error()
}
