package schema

import (
	"errors"
	"fmt"
)

// SchemaError represents a failed lookup against the registry.
//
// Schema errors are always detected during the build phase, before any SQL
// executes. They are never retried and never downgraded: an unknown field
// anywhere in a spec aborts the whole query.
type SchemaError struct {
	// Code identifies the error category.
	Code SchemaErrorCode

	// Message is a human-readable description.
	Message string

	// Collection is the collection being queried.
	Collection string

	// Field is the offending field reference, if any.
	Field string

	// Join is the offending join alias, if any.
	Join string
}

// SchemaErrorCode categorizes schema errors.
type SchemaErrorCode string

const (
	// ErrCodeUnknownCollection indicates the collection name is not registered.
	ErrCodeUnknownCollection SchemaErrorCode = "UNKNOWN_COLLECTION"

	// ErrCodeUnknownField indicates a field reference did not resolve.
	ErrCodeUnknownField SchemaErrorCode = "UNKNOWN_FIELD"

	// ErrCodeUnknownJoin indicates a join alias is not declared on the collection.
	ErrCodeUnknownJoin SchemaErrorCode = "UNKNOWN_JOIN"

	// ErrCodeInactiveJoin indicates a field referenced a declared join that
	// was not activated for this query.
	ErrCodeInactiveJoin SchemaErrorCode = "INACTIVE_JOIN"

	// ErrCodeInvalidSchema indicates a collection definition failed
	// registration-time validation.
	ErrCodeInvalidSchema SchemaErrorCode = "INVALID_SCHEMA"
)

// Error implements the error interface.
func (e *SchemaError) Error() string {
	switch {
	case e.Field != "" && e.Join != "":
		return fmt.Sprintf("%s: %s (collection=%s, join=%s, field=%s)", e.Code, e.Message, e.Collection, e.Join, e.Field)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (collection=%s, field=%s)", e.Code, e.Message, e.Collection, e.Field)
	case e.Join != "":
		return fmt.Sprintf("%s: %s (collection=%s, join=%s)", e.Code, e.Message, e.Collection, e.Join)
	case e.Collection != "":
		return fmt.Sprintf("%s: %s (collection=%s)", e.Code, e.Message, e.Collection)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsSchemaError returns true if err is (or wraps) a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func newFieldError(collection, field string) *SchemaError {
	return &SchemaError{
		Code:       ErrCodeUnknownField,
		Message:    "field not found",
		Collection: collection,
		Field:      field,
	}
}
