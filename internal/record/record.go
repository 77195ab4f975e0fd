// Package record provides the domain record type produced by full-record
// queries, and the default hydrator that builds records from raw rows.
//
// Validation and lifecycle hooks live with the host application; this
// package only carries data.
package record

import (
	"fmt"

	"github.com/google/uuid"
)

// Record is one hydrated row of a collection.
type Record struct {
	// ID is the record's primary-key value rendered as a string.
	ID string

	// Collection is the owning collection's registered name.
	Collection string

	// Fields holds every selected column, keyed by property name.
	Fields map[string]any
}

// Get returns a field value.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// NewID generates a fresh record identifier for insert paths.
func NewID() string {
	return uuid.NewString()
}

// Hydrator builds a Record from a raw row. The engine calls it once per
// row in full-record queries.
type Hydrator struct {
	// PrimaryKey maps collection name → primary key property, so the
	// hydrator can lift the record ID without consulting the registry.
	PrimaryKey map[string]string
}

// NewHydrator creates a Hydrator for the given collection → primary key
// mapping.
func NewHydrator(primaryKeys map[string]string) *Hydrator {
	return &Hydrator{PrimaryKey: primaryKeys}
}

// Hydrate converts a raw row into a Record. The row map is owned by the
// record afterwards; callers must not reuse it.
func (h *Hydrator) Hydrate(collection string, row map[string]any) (*Record, error) {
	rec := &Record{
		Collection: collection,
		Fields:     row,
	}
	if pk, ok := h.PrimaryKey[collection]; ok {
		if v, present := row[pk]; present && v != nil {
			rec.ID = fmt.Sprintf("%v", v)
		}
	}
	return rec, nil
}
