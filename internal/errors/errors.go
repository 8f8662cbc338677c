package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType tags every analysis error with its taxonomy class.
type ErrorType string

const (
	ErrorTypeFileNotFound   ErrorType = "file_not_found"
	ErrorTypeParse          ErrorType = "parse"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeMemoryLimit    ErrorType = "memory_limit"
	ErrorTypeInvalidPattern ErrorType = "invalid_pattern"
	ErrorTypeScope          ErrorType = "scope"
	ErrorTypeSymbolNotFound ErrorType = "symbol_not_found"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeInternal       ErrorType = "internal"
)

// AnalysisError is the common shape of all errors surfaced by analysis
// components. Tool handlers render it as error content, never as a
// transport failure.
type AnalysisError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func (e *AnalysisError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Type, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Type, e.Operation, e.Underlying)
}

func (e *AnalysisError) Unwrap() error {
	return e.Underlying
}

func newError(t ErrorType, op, path string, err error) *AnalysisError {
	return &AnalysisError{
		Type:       t,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewFileNotFound reports a missing or unreadable path.
func NewFileNotFound(op, path string, err error) *AnalysisError {
	return newError(ErrorTypeFileNotFound, op, path, err)
}

// NewParseError reports content that could not be parsed into an AST at all.
// Files that parse with ERROR nodes are not parse errors; they produce
// partial ASTs with diagnostics instead.
func NewParseError(op, path string, err error) *AnalysisError {
	return newError(ErrorTypeParse, op, path, err)
}

// NewTimeout reports an operation that exceeded its class's time budget.
func NewTimeout(op string, budget time.Duration) *AnalysisError {
	return newError(ErrorTypeTimeout, op, "", fmt.Errorf("exceeded %v budget", budget))
}

// NewMemoryLimit reports a breached memory ceiling.
func NewMemoryLimit(op string, usedMB, ceilingMB int64) *AnalysisError {
	return newError(ErrorTypeMemoryLimit, op, "", fmt.Errorf("estimated %dMB against %dMB ceiling", usedMB, ceilingMB))
}

// NewInvalidPattern reports a pattern string the selected matcher cannot use.
func NewInvalidPattern(op, pattern string, err error) *AnalysisError {
	return newError(ErrorTypeInvalidPattern, op, "", fmt.Errorf("pattern %q: %w", pattern, err))
}

// NewScopeError reports a path outside the workspace root or matching an
// exclusion glob. Raised before any read occurs.
func NewScopeError(op, path string, err error) *AnalysisError {
	return newError(ErrorTypeScope, op, path, err)
}

// NewSymbolNotFound reports a position with no resolvable identifier.
func NewSymbolNotFound(op, path string, line, character int) *AnalysisError {
	return newError(ErrorTypeSymbolNotFound, op, path,
		fmt.Errorf("no resolvable symbol at %d:%d", line, character))
}

// NewConfigError reports an invalid configuration field.
func NewConfigError(field string, err error) *AnalysisError {
	return newError(ErrorTypeConfig, "config", field, err)
}

// NewInternal wraps an unexpected failure.
func NewInternal(op string, err error) *AnalysisError {
	return newError(ErrorTypeInternal, op, "", err)
}

// TypeOf extracts the taxonomy class of err, or ErrorTypeInternal when err
// is not an AnalysisError.
func TypeOf(err error) ErrorType {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Type
	}
	return ErrorTypeInternal
}

// Is reports whether err carries the given taxonomy class.
func Is(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
