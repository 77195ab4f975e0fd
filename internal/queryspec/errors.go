package queryspec

import (
	"errors"
	"fmt"
)

// ValidationError represents a malformed or disallowed query specification.
//
// Validation errors are always detected during the build phase, before any
// SQL executes. They are never retried and never downgraded.
type ValidationError struct {
	// Code identifies the error category.
	Code ValidationErrorCode

	// Message is a human-readable description.
	Message string

	// Field is the offending field or spec key, if any.
	Field string

	// Token is the rejected expression token, for ErrCodeDisallowedToken.
	Token string
}

// ValidationErrorCode categorizes validation errors.
type ValidationErrorCode string

const (
	// ErrCodeBadFilter indicates a malformed filter entry.
	ErrCodeBadFilter ValidationErrorCode = "BAD_FILTER"

	// ErrCodeBadAggregate indicates a malformed aggregate entry.
	ErrCodeBadAggregate ValidationErrorCode = "BAD_AGGREGATE"

	// ErrCodeBadGroupBy indicates an unknown bucket or malformed group-by.
	ErrCodeBadGroupBy ValidationErrorCode = "BAD_GROUP_BY"

	// ErrCodeBadSort indicates a malformed sort entry.
	ErrCodeBadSort ValidationErrorCode = "BAD_SORT"

	// ErrCodeBadPage indicates negative or nonsensical pagination values.
	ErrCodeBadPage ValidationErrorCode = "BAD_PAGE"

	// ErrCodeDisallowedToken indicates an expression template used a
	// function or operator outside the whitelist.
	ErrCodeDisallowedToken ValidationErrorCode = "DISALLOWED_TOKEN"

	// ErrCodeBadSpec indicates a structurally invalid map-form spec.
	ErrCodeBadSpec ValidationErrorCode = "BAD_SPEC"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.Token != "":
		return fmt.Sprintf("%s: %s (token=%q)", e.Code, e.Message, e.Token)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsValidationError returns true if err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func badSpec(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeBadSpec,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	}
}
