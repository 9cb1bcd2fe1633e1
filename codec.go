package dynaschema

import (
	"encoding"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// Decode builds an instance from a stored record. Key columns have their
// type token stripped and the remainder parsed by the key field; other
// columns are parsed by the attribute of the same name. Columns that match
// no field, such as secondary index shadows, are skipped.
func (et *EntityType) Decode(record Item) (*Instance, error) {
	inst := &Instance{Type: et, values: make(map[string]any, len(record))}
	for column, av := range record {
		var field *Field
		switch column {
		case PartitionKeyName:
			field = et.partition
		case SortKeyName:
			field = et.sort
		default:
			if f, ok := et.fields[column]; ok && f.Kind == KindAttribute {
				field = f
			}
		}
		if field == nil {
			continue
		}

		raw, err := scalarString(av)
		if err != nil {
			return nil, fmt.Errorf("%s: attribute %s: %w", et.Name, column, err)
		}

		if field.IsKey() {
			token, rest, found := strings.Cut(raw, KeySeparator)
			want := field.prefixEntity().Name
			if !found {
				if !et.table.lenient {
					return nil, &TypeMismatchError{Entity: et.Name, Attribute: column, Want: want}
				}
				token, rest = "", raw
			}
			if token != want && !et.table.lenient {
				return nil, &TypeMismatchError{Entity: et.Name, Attribute: column, Want: want, Got: token}
			}
			raw = rest
		}

		v, err := field.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", et.Name, err)
		}
		inst.values[field.Name] = v
	}
	return inst, nil
}

// DecodeAll decodes records in order. The result is never nil.
func (et *EntityType) DecodeAll(records []Item) ([]*Instance, error) {
	out := make([]*Instance, 0, len(records))
	for _, record := range records {
		inst, err := et.Decode(record)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// scalarString returns the stored string form of an S, N or BOOL value.
func scalarString(av types.AttributeValue) (string, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(v.Value), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, av)
}

// MarshalValue converts a Go value to its stored form by runtime kind:
// integers and floats are numbers, strings and text marshalers are strings,
// and booleans are booleans.
func MarshalValue(v any) (types.AttributeValue, error) {
	if tm, ok := v.(encoding.TextMarshaler); ok {
		text, err := tm.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
		}
		return &types.AttributeValueMemberS{Value: string(text)}, nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return attributevalue.Marshal(v)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// UpdateAttributes holds the placeholders of an update expression.
type UpdateAttributes struct {
	Names       map[string]string               // #name -> attribute name
	Values      map[string]types.AttributeValue // :name -> value
	Assignments map[string]string               // column or #name -> :name
}

// Expression renders the assignments as a SET expression with a stable
// order. It is empty when there is nothing to assign.
func (u UpdateAttributes) Expression() string {
	if len(u.Assignments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(u.Assignments))
	for _, lhs := range slices.Sorted(maps.Keys(u.Assignments)) {
		parts = append(parts, lhs+" = "+u.Assignments[lhs])
	}
	return "SET " + strings.Join(parts, ", ")
}

// UpdateKey returns the primary key of the instance.
func (i *Instance) UpdateKey() (Item, error) {
	pk, err := i.PartitionValue()
	if err != nil {
		return nil, err
	}
	sk, err := i.SortValue()
	if err != nil {
		return nil, err
	}
	return Item{
		PartitionKeyName: &types.AttributeValueMemberS{Value: pk},
		SortKeyName:      &types.AttributeValueMemberS{Value: sk},
	}, nil
}

// UpdateAttributes builds the placeholders for writing the instance's
// attributes. Every secondary index whose members are both populated adds
// its pk<i>/sk<i> shadow columns.
func (i *Instance) UpdateAttributes() (UpdateAttributes, error) {
	et := i.Type
	u := UpdateAttributes{
		Names:       make(map[string]string),
		Values:      make(map[string]types.AttributeValue),
		Assignments: make(map[string]string),
	}

	for _, f := range et.order {
		if f.Kind != KindAttribute {
			continue
		}
		v, ok := i.values[f.Name]
		if !ok {
			continue
		}
		av, err := MarshalValue(v)
		if err != nil {
			return u, fmt.Errorf("%s.%s: %w", et.Name, f.Name, err)
		}
		u.Names["#"+f.Name] = f.physical
		u.Values[":"+f.Name] = av
		u.Assignments["#"+f.Name] = ":" + f.Name
	}

	for _, idx := range et.indexes {
		pv, pok := i.values[idx.PartitionField]
		sv, sok := i.values[idx.SortField]
		if !pok || !sok {
			continue
		}
		for _, member := range []struct {
			field string
			value any
		}{{idx.PartitionField, pv}, {idx.SortField, sv}} {
			f := et.fields[member.field]
			column, err := et.physicalKeyName(f, idx)
			if err != nil {
				return u, err
			}
			s, err := et.keyString(f, member.value)
			if err != nil {
				return u, err
			}
			u.Values[":"+column] = &types.AttributeValueMemberS{Value: s}
			u.Assignments[column] = ":" + column
		}
	}

	return u, nil
}

// UpdateRequest builds the store update that writes the instance.
func (i *Instance) UpdateRequest() (*UpdateRequest, error) {
	key, err := i.UpdateKey()
	if err != nil {
		return nil, err
	}
	attrs, err := i.UpdateAttributes()
	if err != nil {
		return nil, err
	}
	return &UpdateRequest{
		TableName:        i.Type.table.Name,
		Key:              key,
		UpdateExpression: attrs.Expression(),
		Names:            attrs.Names,
		Values:           attrs.Values,
	}, nil
}

// Item returns the full stored record of the instance: key columns,
// attributes and index shadows.
func (i *Instance) Item() (Item, error) {
	item, err := i.UpdateKey()
	if err != nil {
		return nil, err
	}
	attrs, err := i.UpdateAttributes()
	if err != nil {
		return nil, err
	}
	for lhs, placeholder := range attrs.Assignments {
		column := lhs
		if name, ok := attrs.Names[lhs]; ok {
			column = name
		}
		item[column] = attrs.Values[placeholder]
	}
	return item, nil
}
