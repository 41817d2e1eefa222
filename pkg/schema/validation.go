package schema

import "fmt"

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single validation problem with location context.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult aggregates every issue found in one validation pass, so a
// caller can surface a complete report instead of the first failure.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ToError converts the result to a ServiceError if invalid, nil if valid.
// The error message names the offending location, and the details carry the
// distinct paths so a caller can tell at a glance which checks or settings
// are at fault.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := fmt.Sprintf("%s: %s", r.Errors[0].Path, r.Errors[0].Message)
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors (first at %s)",
			len(r.Errors), r.Errors[0].Path)
	}

	return NewError(ErrCodeConfigValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"paths":         r.errorPaths(),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}

// errorPaths returns the distinct error locations in first-seen order.
func (r *ValidationResult) errorPaths() []string {
	seen := make(map[string]bool, len(r.Errors))
	paths := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		if seen[issue.Path] {
			continue
		}
		seen[issue.Path] = true
		paths = append(paths, issue.Path)
	}
	return paths
}
