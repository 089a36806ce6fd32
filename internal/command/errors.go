package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// ErrorCode classifies CommandError values.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeInvalidParam ErrorCode = "INVALID_PARAMETER"
	ErrCodeRegistration ErrorCode = "REGISTRATION_ERROR"
)

// CommandError is a registry or invocation error that is not a domain failure.
type CommandError struct {
	Code    ErrorCode
	Command string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CommandError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError reports an unknown command name.
func NewNotFoundError(name string) *CommandError {
	return &CommandError{
		Code:    ErrCodeNotFound,
		Command: name,
		Message: fmt.Sprintf("no command registered as %q", name),
	}
}

// NewInvalidParamError reports a parameter that cannot be used.
func NewInvalidParamError(name, param string, cause error) *CommandError {
	return &CommandError{
		Code:    ErrCodeInvalidParam,
		Command: name,
		Message: fmt.Sprintf("invalid parameter %q", param),
		Cause:   cause,
	}
}

// IsNotFound reports whether err is, or wraps, a not-found CommandError.
func IsNotFound(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == ErrCodeNotFound
}

// Failure is the recognized domain failure of a command. Its reports are
// delivered to the task before it finishes as FAIL.
type Failure struct {
	Reports []types.ReportItem
}

// NewFailure creates a failure carrying the given reports.
func NewFailure(reports ...types.ReportItem) *Failure {
	return &Failure{Reports: reports}
}

// Error lists the codes of the attached reports.
func (f *Failure) Error() string {
	if len(f.Reports) == 0 {
		return "command failed"
	}
	codes := make([]string, 0, len(f.Reports))
	for _, r := range f.Reports {
		codes = append(codes, r.Code)
	}
	return "command failed: " + strings.Join(codes, ", ")
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
