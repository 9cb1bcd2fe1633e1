package dynamock

import (
	"maps"

	"github.com/nisimpson/dynaschema"
)

// RecordOption is a functional option for configuring records during building.
type RecordOption func(*RecordBuilder)

// RecordBuilder provides instance building through functional options only.
type RecordBuilder struct {
	entity *dynaschema.EntityType
	values map[string]any
}

// NewRecord creates a builder for an instance of et with the given options applied.
func NewRecord(et *dynaschema.EntityType, opts ...RecordOption) *RecordBuilder {
	b := &RecordBuilder{entity: et, values: make(map[string]any)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// With applies more options to the builder.
func (b *RecordBuilder) With(opts ...RecordOption) *RecordBuilder {
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates the instance. It panics if a value names an undeclared field.
func (b *RecordBuilder) Build() *dynaschema.Instance {
	return b.entity.MustNew(maps.Clone(b.values))
}

// Item builds the instance and returns its stored form.
func (b *RecordBuilder) Item() (dynaschema.Item, error) {
	return b.Build().Item()
}

// Functional Options

// WithValue sets one logical field.
func WithValue(name string, v any) RecordOption {
	return func(b *RecordBuilder) {
		b.values[name] = v
	}
}

// WithValues sets several logical fields.
func WithValues(values map[string]any) RecordOption {
	return func(b *RecordBuilder) {
		maps.Copy(b.values, values)
	}
}

// WithoutValue clears a logical field.
func WithoutValue(name string) RecordOption {
	return func(b *RecordBuilder) {
		delete(b.values, name)
	}
}

// Sequence builds n records, calling fn with the record index to supply
// per-record options on top of the shared ones.
func Sequence(et *dynaschema.EntityType, n int, fn func(i int) []RecordOption, shared ...RecordOption) []*dynaschema.Instance {
	out := make([]*dynaschema.Instance, 0, n)
	for i := range n {
		out = append(out, NewRecord(et, shared...).With(fn(i)...).Build())
	}
	return out
}
