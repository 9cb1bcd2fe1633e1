package dynaschema

import "fmt"

// FieldKind classifies a field declaration.
type FieldKind int

const (
	KindPartitionKey   FieldKind = iota + 1 // the entity's own partition key, stored in pk
	KindSortKey                             // the entity's own sort key, stored in sk
	KindForeignKey                          // a partition key borrowed from another entity's identity
	KindForeignSortKey                      // a sort key borrowed from another entity's identity
	KindAttribute                           // a plain attribute, stored under its own name
	KindSecondaryIndex                      // a pair of fields projected into pk<i>/sk<i>
)

func (k FieldKind) String() string {
	switch k {
	case KindPartitionKey:
		return "PartitionKey"
	case KindSortKey:
		return "SortKey"
	case KindForeignKey:
		return "ForeignKey"
	case KindForeignSortKey:
		return "ForeignSortKey"
	case KindAttribute:
		return "Attribute"
	case KindSecondaryIndex:
		return "SecondaryIndex"
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// Declaration is a member of an entity definition: either a *Field or an *AccessPattern.
type Declaration interface {
	declaration()
}

// Field describes a single logical field of an entity.
//
// Fields are declared with the constructor functions in this file and passed
// to [Table.Define]. The registry copies each declaration, so the same
// *Field value may be reused across entities.
type Field struct {
	Kind           FieldKind   // Field classification
	Name           string      // Logical name the field is declared under
	Parser         ValueParser // Parses stored strings; nil means String (or the referenced key's parser)
	Ref            *EntityType // Referenced entity for foreign keys
	PartitionField string      // Partition member of a secondary index
	SortField      string      // Sort member of a secondary index

	entity   *EntityType
	physical string
}

func (*Field) declaration() {}

// PartitionKey declares the entity's own partition key.
func PartitionKey(name string, parser ValueParser) *Field {
	return &Field{Kind: KindPartitionKey, Name: name, Parser: parser}
}

// SortKey declares the entity's own sort key.
func SortKey(name string, parser ValueParser) *Field {
	return &Field{Kind: KindSortKey, Name: name, Parser: parser}
}

// ForeignKey declares a partition key whose values are identities of ref.
// Stored values carry ref's type prefix.
func ForeignKey(name string, ref *EntityType) *Field {
	return &Field{Kind: KindForeignKey, Name: name, Ref: ref}
}

// ForeignSortKey declares a sort key whose values are identities of ref.
func ForeignSortKey(name string, ref *EntityType) *Field {
	return &Field{Kind: KindForeignSortKey, Name: name, Ref: ref}
}

// Attribute declares a plain attribute.
func Attribute(name string, parser ValueParser) *Field {
	return &Field{Kind: KindAttribute, Name: name, Parser: parser}
}

// SecondaryIndex declares a global secondary index over two fields of the
// same entity. The index slot (pk<i>/sk<i>) is assigned by the table.
func SecondaryIndex(name, partitionField, sortField string) *Field {
	return &Field{Kind: KindSecondaryIndex, Name: name, PartitionField: partitionField, SortField: sortField}
}

// Entity returns the entity the field was registered on.
func (f *Field) Entity() *EntityType { return f.entity }

// PhysicalName returns the column the field is stored under on the primary
// index. Secondary indexes have no column of their own.
func (f *Field) PhysicalName() string { return f.physical }

// Parse runs raw through the field's value parser.
func (f *Field) Parse(raw string) (any, error) {
	v, err := f.Parser(raw)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return v, nil
}

// IsKey reports whether the field contributes to the primary key.
func (f *Field) IsKey() bool {
	switch f.Kind {
	case KindPartitionKey, KindSortKey, KindForeignKey, KindForeignSortKey:
		return true
	case KindAttribute, KindSecondaryIndex:
		return false
	}
	return false
}

// prefixEntity returns the entity whose type name prefixes the field's key values.
func (f *Field) prefixEntity() *EntityType {
	switch f.Kind {
	case KindForeignKey, KindForeignSortKey:
		return f.Ref
	case KindPartitionKey, KindSortKey, KindAttribute, KindSecondaryIndex:
		return f.entity
	}
	return f.entity
}
