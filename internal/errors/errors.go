package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// Validation errors - a bad commit record
	ErrorTypeValidation
	// Database errors - result sink connection or write failures
	ErrorTypeDatabase
	// FileSystem errors - input/output file failures
	ErrorTypeFileSystem
	// External errors - graph database or repository access failures
	ErrorTypeExternal
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "config"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeDatabase:
		return "database"
	case ErrorTypeFileSystem:
		return "filesystem"
	case ErrorTypeExternal:
		return "external"
	case ErrorTypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - the record is skipped, the run continues
	SeverityLow Severity = iota
	// SeverityHigh - the command fails
	SeverityHigh
	// SeverityCritical - the run is aborted and its output is incomplete
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a categorised error carrying log fields
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
	Fields   logrus.Fields
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithField attaches a structured field, e.g. the input line of a bad record
func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = logrus.Fields{}
	}
	e.Fields[key] = value
	return e
}

// LogFields returns the fields to log alongside the error
func (e *Error) LogFields() logrus.Fields {
	fields := logrus.Fields{
		"error_type": e.Type.String(),
		"severity":   e.Severity.String(),
	}
	for k, v := range e.Fields {
		fields[k] = v
	}
	return fields
}

// IsFatal reports whether the error aborts a run
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// New creates an error without a cause
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{Type: errType, Severity: severity, Message: message}
}

// Wrap attaches a category to err. It returns nil for a nil err, so callers
// assigning to an error interface must check err first.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Severity: severity, Message: message, Cause: err}
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityHigh, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityHigh, fmt.Sprintf(format, args...))
}

// ValidationErrorf describes a single bad record; it never stops a run
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityLow, fmt.Sprintf(format, args...))
}

// DatabaseError wraps a sink error
func DatabaseError(err error, message string) *Error {
	return Wrap(err, ErrorTypeDatabase, SeverityCritical, message)
}

// FileSystemError wraps a filesystem error
func FileSystemError(err error, message string) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityCritical, message)
}

// FileSystemErrorf wraps a filesystem error with formatting
func FileSystemErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityCritical, fmt.Sprintf(format, args...))
}

// ExternalError wraps an external service error
func ExternalError(err error, message string) *Error {
	return Wrap(err, ErrorTypeExternal, SeverityCritical, message)
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// GetType returns the type of an error; uncategorised errors are internal
func GetType(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// Fields returns the log fields of err, or nil when it carries none
func Fields(err error) logrus.Fields {
	var e *Error
	if stderrors.As(err, &e) {
		return e.LogFields()
	}
	return nil
}

// ExitCode maps an error to the process exit status: 0 for nil, 2 for
// configuration problems, 1 otherwise
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case GetType(err) == ErrorTypeConfig:
		return 2
	default:
		return 1
	}
}
