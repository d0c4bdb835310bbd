package lifterr

import (
	"fmt"
	"strings"
)

// ErrorType defines the category of the error.
type ErrorType string

const (
	TypeParse      ErrorType = "ParseError"
	TypeValidation ErrorType = "ValidationError"
)

// LiftError is the interface for all dashlift-related errors.
type LiftError interface {
	error
	Type() ErrorType
}

// BaseError provides common fields for dashlift errors.
type BaseError struct {
	Msg     string
	ErrType ErrorType
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

func (e *BaseError) Type() ErrorType {
	return e.ErrType
}

// ParseError represents a failure while reading the workbook archive or
// its XML definition.
type ParseError struct {
	BaseError
	Archive string
	Entry   string
}

func (e *ParseError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("[%s] %s (entry %q in %s)", e.ErrType, e.Msg, e.Entry, e.Archive)
	}
	if e.Archive != "" {
		return fmt.Sprintf("[%s] %s (%s)", e.ErrType, e.Msg, e.Archive)
	}
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

// ValidationError represents a failed metric comparison against the
// warehouse or the local evaluator.
type ValidationError struct {
	BaseError
	Metric string
}

func (e *ValidationError) Error() string {
	if e.Metric != "" {
		return fmt.Sprintf("[%s] metric %q: %s", e.ErrType, e.Metric, e.Msg)
	}
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

// MultiError collects per-calculation failures so one bad formula never
// blocks the rest of the batch.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d error(s) occurred:\n", len(m.Errors)))
	for _, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("- %v\n", err))
	}
	return sb.String()
}

// Add appends an error, ignoring nil.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors reports whether any error was collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

func (m *MultiError) Type() ErrorType {
	if len(m.Errors) > 0 {
		if le, ok := m.Errors[0].(LiftError); ok {
			return le.Type()
		}
	}
	return "MultiError"
}

// NewParseError creates a new ParseError.
func NewParseError(msg string) *ParseError {
	return &ParseError{
		BaseError: BaseError{
			Msg:     msg,
			ErrType: TypeParse,
		},
	}
}

// NewParseErrorInArchive creates a ParseError tied to an archive entry.
func NewParseErrorInArchive(archive, entry, msg string) *ParseError {
	return &ParseError{
		BaseError: BaseError{
			Msg:     msg,
			ErrType: TypeParse,
		},
		Archive: archive,
		Entry:   entry,
	}
}

// NewValidationError creates a new ValidationError for a metric.
func NewValidationError(metric, msg string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Msg:     msg,
			ErrType: TypeValidation,
		},
		Metric: metric,
	}
}
