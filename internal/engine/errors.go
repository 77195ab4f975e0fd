package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/schema"
)

// StorageError wraps a failure at the injected storage handle.
//
// Unlike schema and validation errors, storage errors occur after the
// build phase. The engine propagates them verbatim: no retry, no
// swallowing, and never a silent zero in place of a failed count.
type StorageError struct {
	// Op identifies the failing operation ("query", "count", "scan").
	Op string

	// Collection is the collection being queried.
	Collection string

	// Err is the underlying driver error, unchanged.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("STORAGE_ERROR: %s on %s: %v", e.Op, e.Collection, e.Err)
}

// Unwrap exposes the driver error for errors.Is/As chains.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if err is (or wraps) a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsSchemaError reports whether err is a build-phase schema error
// (unknown collection, field or join). Re-exported so engine callers can
// classify without importing the schema package.
func IsSchemaError(err error) bool {
	return schema.IsSchemaError(err)
}

// IsValidationError reports whether err is a build-phase validation error
// (malformed spec or disallowed expression token).
func IsValidationError(err error) bool {
	return queryspec.IsValidationError(err)
}

// IsBuildError reports whether err was detected before any SQL executed.
func IsBuildError(err error) bool {
	return IsSchemaError(err) || IsValidationError(err)
}
