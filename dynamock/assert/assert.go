// Package assert provides fluent assertion utilities for testing dynaschema
// key conditions, stored records and decoded instances.
//
// # Usage
//
//	import "github.com/nisimpson/dynaschema/dynamock/assert"
//
//	// Assert on compiled key conditions
//	assert.KeyConditions(t, conds).
//		HasPartition("pk", "Order#1").
//		HasSort("sk", dynaschema.BeginsWith, "OrderItem#")
//
//	// Assert on stored records
//	assert.Items(t, resp.Items).
//		HasCount(3).
//		ContainsPartition("Order#1")
//
//	// Assert on instances
//	assert.Instance(t, order).
//		IsType("Order").
//		HasValue("id", 1)
package assert

import (
	"fmt"
	"reflect"
	"slices"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynaschema"
)

// KeyConditionsAssertion provides fluent assertions for compiled key conditions.
type KeyConditionsAssertion struct {
	t     testing.TB
	conds dynaschema.KeyConditions
}

// KeyConditions creates a new KeyConditionsAssertion.
func KeyConditions(t testing.TB, conds dynaschema.KeyConditions) *KeyConditionsAssertion {
	return &KeyConditionsAssertion{t: t, conds: conds}
}

// HasPartition asserts an equality condition on the partition column.
func (a *KeyConditionsAssertion) HasPartition(column, value string) *KeyConditionsAssertion {
	a.t.Helper()
	return a.Has(column, dynaschema.Exact, value)
}

// HasSort asserts a condition on the sort column.
func (a *KeyConditionsAssertion) HasSort(column string, op dynaschema.Operator, values ...string) *KeyConditionsAssertion {
	a.t.Helper()
	return a.Has(column, op, values...)
}

// Has asserts the condition on column has the given operator and values.
func (a *KeyConditionsAssertion) Has(column string, op dynaschema.Operator, values ...string) *KeyConditionsAssertion {
	a.t.Helper()
	kc, ok := a.conds[column]
	if !ok {
		a.t.Errorf("expected a condition on %s, got %v", column, a.conds.Flatten())
		return a
	}
	if kc.Op != op {
		a.t.Errorf("expected %s on %s, got %s", op, column, kc.Op)
	}
	if !slices.Equal(kc.Values, values) {
		a.t.Errorf("expected values %v on %s, got %v", values, column, kc.Values)
	}
	return a
}

// HasCount asserts the number of conditions.
func (a *KeyConditionsAssertion) HasCount(expected int) *KeyConditionsAssertion {
	a.t.Helper()
	if len(a.conds) != expected {
		a.t.Errorf("expected %d conditions, got %d: %v", expected, len(a.conds), a.conds.Flatten())
	}
	return a
}

// Equals asserts the flattened form of the conditions.
func (a *KeyConditionsAssertion) Equals(expected map[string]any) *KeyConditionsAssertion {
	a.t.Helper()
	if got := a.conds.Flatten(); !reflect.DeepEqual(got, expected) {
		a.t.Errorf("expected conditions %v, got %v", expected, got)
	}
	return a
}

// ItemsAssertion provides fluent assertions for stored records.
type ItemsAssertion struct {
	t     testing.TB
	items []dynaschema.Item
}

// Items creates a new ItemsAssertion for the given records.
func Items(t testing.TB, items []dynaschema.Item) *ItemsAssertion {
	return &ItemsAssertion{t: t, items: items}
}

// HasCount asserts that the items collection has the expected count.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	a.t.Helper()
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the items collection is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// IsNotEmpty asserts that the items collection is not empty.
func (a *ItemsAssertion) IsNotEmpty() *ItemsAssertion {
	a.t.Helper()
	if len(a.items) == 0 {
		a.t.Error("expected items to not be empty")
	}
	return a
}

// ContainsKey asserts that some item has the given primary key.
func (a *ItemsAssertion) ContainsKey(pk, sk string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if stringAttr(item, dynaschema.PartitionKeyName) == pk && stringAttr(item, dynaschema.SortKeyName) == sk {
			return a
		}
	}
	a.t.Errorf("expected to find item with key %s/%s", pk, sk)
	return a
}

// ContainsPartition asserts that some item lives in the given partition.
func (a *ItemsAssertion) ContainsPartition(pk string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if stringAttr(item, dynaschema.PartitionKeyName) == pk {
			return a
		}
	}
	a.t.Errorf("expected to find item in partition %s", pk)
	return a
}

// HasAttribute asserts that some item carries the attribute with the given
// value, rendered as text for numbers.
func (a *ItemsAssertion) HasAttribute(name, expectedValue string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if stringAttr(item, name) == expectedValue {
			return a
		}
	}
	a.t.Errorf("expected to find item with %s = %s", name, expectedValue)
	return a
}

// EachHasAttribute asserts that every item carries the attribute.
func (a *ItemsAssertion) EachHasAttribute(name string) *ItemsAssertion {
	a.t.Helper()
	for i, item := range a.items {
		if _, ok := item[name]; !ok {
			a.t.Errorf("item %d lacks attribute %s", i, name)
		}
	}
	return a
}

func stringAttr(item dynaschema.Item, name string) string {
	switch v := item[name].(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprint(v.Value)
	}
	return ""
}

// InstanceAssertion provides fluent assertions for a decoded instance.
type InstanceAssertion struct {
	t    testing.TB
	inst *dynaschema.Instance
}

// Instance creates a new InstanceAssertion.
func Instance(t testing.TB, inst *dynaschema.Instance) *InstanceAssertion {
	t.Helper()
	if inst == nil {
		t.Fatal("expected an instance, got nil")
	}
	return &InstanceAssertion{t: t, inst: inst}
}

// IsType asserts the entity type name.
func (a *InstanceAssertion) IsType(name string) *InstanceAssertion {
	a.t.Helper()
	if a.inst.Type.Name != name {
		a.t.Errorf("expected instance of %s, got %s", name, a.inst.Type.Name)
	}
	return a
}

// HasValue asserts the value of a logical field.
func (a *InstanceAssertion) HasValue(name string, expected any) *InstanceAssertion {
	a.t.Helper()
	got, ok := a.inst.Get(name)
	if !ok {
		a.t.Errorf("expected %s.%s to be set", a.inst.Type.Name, name)
		return a
	}
	if !reflect.DeepEqual(got, expected) {
		a.t.Errorf("expected %s.%s = %v (%T), got %v (%T)", a.inst.Type.Name, name, expected, expected, got, got)
	}
	return a
}

// LacksValue asserts that a logical field is unset.
func (a *InstanceAssertion) LacksValue(name string) *InstanceAssertion {
	a.t.Helper()
	if got, ok := a.inst.Get(name); ok {
		a.t.Errorf("expected %s.%s to be unset, got %v", a.inst.Type.Name, name, got)
	}
	return a
}

// HasPartitionValue asserts the key string of the partition field.
func (a *InstanceAssertion) HasPartitionValue(expected string) *InstanceAssertion {
	a.t.Helper()
	got, err := a.inst.PartitionValue()
	if err != nil {
		a.t.Errorf("partition value: %v", err)
	} else if got != expected {
		a.t.Errorf("expected partition value %s, got %s", expected, got)
	}
	return a
}

// HasSortValue asserts the key string of the sort field.
func (a *InstanceAssertion) HasSortValue(expected string) *InstanceAssertion {
	a.t.Helper()
	got, err := a.inst.SortValue()
	if err != nil {
		a.t.Errorf("sort value: %v", err)
	} else if got != expected {
		a.t.Errorf("expected sort value %s, got %s", expected, got)
	}
	return a
}

// InstancesAssertion provides fluent assertions for a list of instances.
type InstancesAssertion struct {
	t     testing.TB
	insts []*dynaschema.Instance
}

// Instances creates a new InstancesAssertion.
func Instances(t testing.TB, insts []*dynaschema.Instance) *InstancesAssertion {
	return &InstancesAssertion{t: t, insts: insts}
}

// HasCount asserts the number of instances.
func (a *InstancesAssertion) HasCount(expected int) *InstancesAssertion {
	a.t.Helper()
	if len(a.insts) != expected {
		a.t.Errorf("expected %d instances, got %d", expected, len(a.insts))
	}
	return a
}

// HasValues asserts the value of a logical field across the list, in order.
func (a *InstancesAssertion) HasValues(name string, expected ...any) *InstancesAssertion {
	a.t.Helper()
	got := make([]any, 0, len(a.insts))
	for _, inst := range a.insts {
		v, _ := inst.Get(name)
		got = append(got, v)
	}
	if !reflect.DeepEqual(got, expected) {
		a.t.Errorf("expected %s values %v, got %v", name, expected, got)
	}
	return a
}

// AllOfType asserts every instance has the named entity type.
func (a *InstancesAssertion) AllOfType(name string) *InstancesAssertion {
	a.t.Helper()
	for i, inst := range a.insts {
		if inst.Type.Name != name {
			a.t.Errorf("instance %d: expected %s, got %s", i, name, inst.Type.Name)
		}
	}
	return a
}
