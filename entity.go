package dynaschema

import (
	"fmt"
)

// EntityType is the registered schema of one entity stored in a table.
//
// Entity types are immutable once defined; all key derivation, compilation
// and decoding reads from them without locking.
type EntityType struct {
	Name string // Type name; also the key prefix token

	table     *Table
	fields    map[string]*Field
	order     []*Field
	partition *Field
	sort      *Field
	indexes   []*Field
	patterns  map[string]*AccessPattern
	declared  []*AccessPattern
}

// build processes decls into a new entity type without registering it.
func (t *Table) build(name string, decls []Declaration) (*EntityType, error) {
	et := &EntityType{
		Name:     name,
		table:    t,
		fields:   make(map[string]*Field),
		patterns: make(map[string]*AccessPattern),
	}

	var patterns []*AccessPattern
	for _, decl := range decls {
		switch d := decl.(type) {
		case *Field:
			if err := et.addField(d); err != nil {
				return nil, err
			}
		case *AccessPattern:
			patterns = append(patterns, d)
		}
	}

	if et.partition == nil {
		return nil, &SchemaError{Entity: name, Err: ErrMissingPartition}
	}

	for _, idx := range et.indexes {
		for _, member := range []string{idx.PartitionField, idx.SortField} {
			f, ok := et.fields[member]
			if !ok || f.Kind == KindSecondaryIndex {
				return nil, &SchemaError{Entity: name, Field: idx.Name, Err: newFieldNotFound(name, member)}
			}
		}
	}

	bound := make([]binding, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := et.fields[p.Name]; ok {
			return nil, &SchemaError{Entity: name, Field: p.Name, Err: ErrDuplicateField}
		}
		if _, ok := et.patterns[p.Name]; ok {
			return nil, &SchemaError{Entity: name, Field: p.Name, Err: ErrDuplicateField}
		}
		b, err := et.resolve(p)
		if err != nil {
			return nil, &SchemaError{Entity: name, Field: p.Name, Err: err}
		}
		et.patterns[p.Name] = p
		et.declared = append(et.declared, p)
		bound = append(bound, b)
	}

	// Patterns are only bound once the whole definition is known to be valid.
	for i, p := range et.declared {
		p.bind(et, bound[i])
	}

	return et, nil
}

func (et *EntityType) addField(decl *Field) error {
	if decl == nil {
		return &SchemaError{Entity: et.Name, Err: fmt.Errorf("nil field declaration")}
	}
	if _, ok := et.fields[decl.Name]; ok {
		return &SchemaError{Entity: et.Name, Field: decl.Name, Err: ErrDuplicateField}
	}

	f := *decl
	f.entity = et

	switch f.Kind {
	case KindPartitionKey, KindForeignKey:
		if et.partition != nil {
			return &SchemaError{Entity: et.Name, Field: f.Name, Err: ErrDuplicateKeyField}
		}
		et.partition = &f
	case KindSortKey, KindForeignSortKey:
		if et.sort != nil {
			return &SchemaError{Entity: et.Name, Field: f.Name, Err: ErrDuplicateKeyField}
		}
		et.sort = &f
	case KindAttribute:
	case KindSecondaryIndex:
		et.indexes = append(et.indexes, &f)
	default:
		return &SchemaError{Entity: et.Name, Field: f.Name, Err: fmt.Errorf("unknown field kind %v", f.Kind)}
	}

	switch f.Kind {
	case KindForeignKey, KindForeignSortKey:
		if f.Ref == nil || f.Ref.partition == nil {
			return &SchemaError{Entity: et.Name, Field: f.Name, Err: ErrMissingReference}
		}
		if f.Parser == nil {
			f.Parser = f.Ref.partition.Parser
		}
	case KindPartitionKey, KindSortKey, KindAttribute, KindSecondaryIndex:
		if f.Parser == nil {
			f.Parser = String
		}
	}

	name, err := et.physicalKeyName(&f, nil)
	if err == nil {
		f.physical = name
	}

	et.fields[f.Name] = &f
	et.order = append(et.order, &f)
	return nil
}

// Table returns the table the entity is registered on.
func (et *EntityType) Table() *Table { return et.table }

// Field looks up a field by logical name.
func (et *EntityType) Field(name string) (*Field, error) {
	f, ok := et.fields[name]
	if !ok {
		return nil, newFieldNotFound(et.Name, name)
	}
	return f, nil
}

// Fields returns the fields in declaration order.
func (et *EntityType) Fields() []*Field {
	out := make([]*Field, len(et.order))
	copy(out, et.order)
	return out
}

// PartitionField returns the partition descriptor.
func (et *EntityType) PartitionField() *Field { return et.partition }

// SortField returns the sort descriptor, or nil when the entity uses the sentinel sort value.
func (et *EntityType) SortField() *Field { return et.sort }

// SecondaryIndexes returns the secondary indexes declared on the entity.
func (et *EntityType) SecondaryIndexes() []*Field {
	out := make([]*Field, len(et.indexes))
	copy(out, et.indexes)
	return out
}

// Pattern looks up an access pattern by name.
func (et *EntityType) Pattern(name string) (*AccessPattern, error) {
	p, ok := et.patterns[name]
	if !ok {
		return nil, newFieldNotFound(et.Name, name)
	}
	return p, nil
}

// Patterns returns the access patterns in declaration order.
func (et *EntityType) Patterns() []*AccessPattern {
	out := make([]*AccessPattern, len(et.declared))
	copy(out, et.declared)
	return out
}

// ParseValue runs raw through the parser of the named field.
func (et *EntityType) ParseValue(name, raw string) (any, error) {
	f, err := et.Field(name)
	if err != nil {
		return nil, err
	}
	if f.Kind == KindSecondaryIndex {
		return nil, fmt.Errorf("%s: secondary index %s holds no value", et.Name, name)
	}
	return f.Parse(raw)
}
