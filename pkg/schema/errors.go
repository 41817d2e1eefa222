package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeDiscovery        = "DISCOVERY_ERROR"
	ErrCodeConfigValidation = "CONFIG_VALIDATION_ERROR"
	ErrCodeCheckTimeout     = "CHECK_TIMEOUT"
	ErrCodeCheckExecution   = "CHECK_EXECUTION_ERROR"
	ErrCodeDependency       = "DEPENDENCY_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeStore            = "STORE_ERROR"
	ErrCodeCancelled        = "CANCELLED"
	ErrCodeNoChecks         = "NO_CHECKS"
)

// ServiceError is the structured error type for all validation-service operations.
type ServiceError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Check   string         `json:"check,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Check != "" {
		return fmt.Sprintf("[%s] check %s: %s", e.Code, e.Check, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ServiceError.
func NewError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}

// NewErrorf creates a new ServiceError with a formatted message.
func NewErrorf(code, format string, args ...any) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCheck attaches a check name to the error.
func (e *ServiceError) WithCheck(check string) *ServiceError {
	e.Check = check
	return e
}

// WithCause attaches an underlying cause.
func (e *ServiceError) WithCause(err error) *ServiceError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ServiceError) WithDetails(details map[string]any) *ServiceError {
	e.Details = details
	return e
}
