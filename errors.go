package dynaschema

import (
	"errors"
	"fmt"
)

// Schema errors are returned while a table's entities are being defined.
var (
	// ErrDuplicateKeyField is returned when an entity declares a second partition or sort descriptor.
	ErrDuplicateKeyField = errors.New("duplicate key field")
	// ErrDuplicateField is returned when two declarations share a logical name.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrMissingPartition is returned when an entity or access pattern has no partition descriptor.
	ErrMissingPartition = errors.New("missing partition key")
	// ErrMissingReference is returned when a foreign key does not name the entity it borrows from.
	ErrMissingReference = errors.New("foreign key without referenced entity")
	// ErrInvalidTarget is returned when an access pattern targets something other than a key or index.
	ErrInvalidTarget = errors.New("invalid access pattern target")
	// ErrTableFrozen is returned when defining an entity on a frozen table.
	ErrTableFrozen = errors.New("table is frozen")
)

// Call-time errors.
var (
	// ErrItemNotFound is returned when a single-record access pattern matches nothing.
	ErrItemNotFound = errors.New("item not found")
	// ErrFieldNotFound is returned when a logical field name is not declared on an entity.
	ErrFieldNotFound = errors.New("field not found")
	// ErrIndexNotRegistered is returned when an index ordinal is requested for an entity
	// that is not part of the table catalog.
	ErrIndexNotRegistered = errors.New("secondary index not registered")
	// ErrMissingPartitionValue is returned when a query carries no partition condition.
	ErrMissingPartitionValue = errors.New("missing partition value")
	// ErrMissingKeyValue is returned when an instance has no value for one of its key fields.
	ErrMissingKeyValue = errors.New("missing key value")
	// ErrTypeMismatch is returned when a stored key carries another entity's type token.
	ErrTypeMismatch = errors.New("key type mismatch")
	// ErrUnsupportedValue is returned when a value has no store representation.
	ErrUnsupportedValue = errors.New("unsupported value")
	// ErrInvalidOperator is returned for unknown comparison operators.
	ErrInvalidOperator = errors.New("invalid operator")
	// ErrInvalidCondition is returned when a condition carries the wrong number of values.
	ErrInvalidCondition = errors.New("invalid condition")
)

// SchemaError describes a declaration that could not be registered.
type SchemaError struct {
	Entity string
	Field  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("entity %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("entity %s: field %q: %v", e.Entity, e.Field, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// FieldNotFoundError is returned when a logical name does not resolve on an entity.
type FieldNotFoundError struct {
	Entity string
	Field  string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found on %s", e.Field, e.Entity)
}

func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// TypeMismatchError is returned by strict decoding when the type token of a
// stored key does not belong to the decoding entity.
type TypeMismatchError struct {
	Entity    string
	Attribute string
	Want      string
	Got       string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: attribute %s has type token %q, want %q", e.Entity, e.Attribute, e.Got, e.Want)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func newFieldNotFound(entity, field string) error {
	return &FieldNotFoundError{Entity: entity, Field: field}
}
