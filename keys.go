package dynaschema

import (
	"fmt"
	"strconv"
)

const (
	PartitionKeyName  = "pk" // Primary partition column
	SortKeyName       = "sk" // Primary sort column
	KeySeparator      = "#"  // Separates the type token from the value in key strings
	SentinelSortValue = "$"  // Sort value of entities without a sort field
)

// IndexPartitionKeyName returns the partition column of the index with the given ordinal.
func IndexPartitionKeyName(ordinal int) string {
	return PartitionKeyName + strconv.Itoa(ordinal)
}

// IndexSortKeyName returns the sort column of the index with the given ordinal.
func IndexSortKeyName(ordinal int) string {
	return SortKeyName + strconv.Itoa(ordinal)
}

// KeyPrefix returns "<Name>#", the prefix of every key value the entity owns.
func (et *EntityType) KeyPrefix() string {
	return et.Name + KeySeparator
}

// PhysicalKeyName returns the column that holds the named field. When index
// names one of the entity's secondary indexes, the field is resolved inside
// that index and maps to pk<i> or sk<i>; pass "" for the primary index.
func (et *EntityType) PhysicalKeyName(field, index string) (string, error) {
	f, err := et.Field(field)
	if err != nil {
		return "", err
	}
	var idx *Field
	if index != "" {
		if idx, err = et.Field(index); err != nil {
			return "", err
		}
		if idx.Kind != KindSecondaryIndex {
			return "", fmt.Errorf("%s: %s is not a secondary index", et.Name, index)
		}
	}
	return et.physicalKeyName(f, idx)
}

func (et *EntityType) physicalKeyName(f, index *Field) (string, error) {
	if index != nil {
		ordinal, err := et.table.OrdinalOf(index)
		if err != nil {
			return "", err
		}
		switch f.Name {
		case index.PartitionField:
			return IndexPartitionKeyName(ordinal), nil
		case index.SortField:
			return IndexSortKeyName(ordinal), nil
		}
		return "", fmt.Errorf("%s: field %s is not a member of index %s", et.Name, f.Name, index.Name)
	}

	switch f.Kind {
	case KindPartitionKey:
		return PartitionKeyName, nil
	case KindSortKey, KindForeignSortKey:
		return SortKeyName, nil
	case KindForeignKey:
		return f.Ref.physicalKeyName(f.Ref.partition, nil)
	case KindAttribute:
		return f.Name, nil
	case KindSecondaryIndex:
		return "", fmt.Errorf("%s: secondary index %s has no column", et.Name, f.Name)
	}
	return "", fmt.Errorf("%s: unknown field kind %v", et.Name, f.Kind)
}

// PhysicalValue returns the stored form of raw for the named field. Own key
// fields produce "<Name>#<raw>", foreign key fields take the referenced
// entity's prefix, and attributes return raw unchanged.
func (et *EntityType) PhysicalValue(field string, raw any) (any, error) {
	f, err := et.Field(field)
	if err != nil {
		return nil, err
	}
	return et.physicalValue(f, raw)
}

func (et *EntityType) physicalValue(f *Field, raw any) (any, error) {
	switch f.Kind {
	case KindPartitionKey, KindSortKey, KindForeignKey, KindForeignSortKey:
		return f.prefixEntity().KeyPrefix() + formatValue(raw), nil
	case KindAttribute:
		return raw, nil
	case KindSecondaryIndex:
		return nil, fmt.Errorf("%s: secondary index %s holds no value", et.Name, f.Name)
	}
	return nil, fmt.Errorf("%s: unknown field kind %v", et.Name, f.Kind)
}

// keyString is the physical value of raw rendered for a string key column.
func (et *EntityType) keyString(f *Field, raw any) (string, error) {
	v, err := et.physicalValue(f, raw)
	if err != nil {
		return "", err
	}
	return formatValue(v), nil
}
