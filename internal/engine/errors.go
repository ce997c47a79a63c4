package engine

import (
	"errors"
	"fmt"
)

// ValidationErrorKind names what a caller got wrong.
type ValidationErrorKind string

const (
	// InvalidTable indicates the table is not a known record kind.
	InvalidTable ValidationErrorKind = "table"

	// InvalidField indicates the field is empty or not a column of the table.
	InvalidField ValidationErrorKind = "field"

	// InvalidLimit indicates a negative limit.
	InvalidLimit ValidationErrorKind = "limit"
)

// ValidationError is returned when a request names something that does not
// exist. Value is the offending input exactly as the caller supplied it.
type ValidationError struct {
	Kind  ValidationErrorKind
	Value string

	// Table is set for field errors to say where the field was looked up.
	// Empty when every table was searched.
	Table string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.Kind == InvalidField && e.Table != "":
		return fmt.Sprintf("unknown field %q in table %q", e.Value, e.Table)
	case e.Kind == InvalidField:
		return fmt.Sprintf("unknown field %q in any table", e.Value)
	default:
		return fmt.Sprintf("invalid %s %q", e.Kind, e.Value)
	}
}

// IsValidationError returns true if err is or wraps a *ValidationError.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
