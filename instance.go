package dynaschema

import (
	"context"
	"fmt"
	"maps"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Instance is a runtime value of an entity type: one value per populated
// logical field.
type Instance struct {
	Type   *EntityType
	values map[string]any
}

// New creates an instance from logical field values.
func (et *EntityType) New(values map[string]any) (*Instance, error) {
	inst := &Instance{Type: et, values: make(map[string]any, len(values))}
	for name, v := range values {
		if err := inst.Set(name, v); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// MustNew is like New but panics on error.
func (et *EntityType) MustNew(values map[string]any) *Instance {
	inst, err := et.New(values)
	if err != nil {
		panic(err)
	}
	return inst
}

// Get returns the value of a logical field.
func (i *Instance) Get(name string) (any, bool) {
	v, ok := i.values[name]
	return v, ok
}

// Set assigns a logical field. A nil value clears the field.
func (i *Instance) Set(name string, v any) error {
	f, err := i.Type.Field(name)
	if err != nil {
		return err
	}
	if f.Kind == KindSecondaryIndex {
		return fmt.Errorf("%s: secondary index %s holds no value", i.Type.Name, name)
	}
	if v == nil {
		delete(i.values, name)
		return nil
	}
	i.values[name] = v
	return nil
}

// Values returns a copy of the populated logical values.
func (i *Instance) Values() map[string]any {
	return maps.Clone(i.values)
}

// PartitionValue returns the stored partition key, e.g. "Order#1".
func (i *Instance) PartitionValue() (string, error) {
	return i.keyValue(i.Type.partition)
}

// SortValue returns the stored sort key, or "$" when the entity has no sort field.
func (i *Instance) SortValue() (string, error) {
	if i.Type.sort == nil {
		return SentinelSortValue, nil
	}
	return i.keyValue(i.Type.sort)
}

func (i *Instance) keyValue(f *Field) (string, error) {
	v, ok := i.values[f.Name]
	if !ok {
		return "", fmt.Errorf("%s.%s: %w", i.Type.Name, f.Name, ErrMissingKeyValue)
	}
	return i.Type.keyString(f, v)
}

// Unmarshal copies the logical values into out, which is typically a
// struct tagged with `dynamodbav` names matching the logical fields.
func (i *Instance) Unmarshal(out any) error {
	item := make(map[string]types.AttributeValue, len(i.values))
	for name, v := range i.values {
		av, err := MarshalValue(v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", i.Type.Name, name, err)
		}
		item[name] = av
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", i.Type.Name, err)
	}
	return nil
}

// Save writes the instance with an update request keyed on its primary key.
func (i *Instance) Save(ctx context.Context) error {
	req, err := i.UpdateRequest()
	if err != nil {
		return err
	}
	store, err := i.Type.table.Store(ctx)
	if err != nil {
		return err
	}
	return store.Update(ctx, req)
}
