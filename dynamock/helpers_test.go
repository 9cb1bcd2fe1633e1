package dynamock

import (
	"context"
	"testing"

	"github.com/nisimpson/dynaschema"
	"github.com/stretchr/testify/require"
)

// orders is the order/order item/payment design used across the package tests.
type orders struct {
	table     *dynaschema.Table
	order     *dynaschema.EntityType
	orderItem *dynaschema.EntityType
	payment   *dynaschema.EntityType
}

func defineOrders(tableName string, opts ...dynaschema.TableOption) *dynaschema.Table {
	table := dynaschema.NewTable(tableName, opts...)

	order := table.MustDefine("Order",
		dynaschema.PartitionKey("id", dynaschema.Int),
		dynaschema.Attribute("date", nil),
		dynaschema.SecondaryIndex("gsi1", "date", "id"),
		dynaschema.One("order_by_id", "id"),
		dynaschema.Many("orders_by_date", "gsi1"),
	)

	table.MustDefine("OrderItem",
		dynaschema.ForeignKey("order", order),
		dynaschema.SortKey("sku", nil),
		dynaschema.Attribute("quantity", dynaschema.Int),
		dynaschema.Many("order_items_by_order", "order"),
	)

	table.MustDefine("Payment",
		dynaschema.ForeignKey("order", order),
		dynaschema.SortKey("payment_id", nil),
		dynaschema.Attribute("amount", dynaschema.Int),
		dynaschema.Many("payments_by_order", "order"),
	)

	table.Freeze()
	return table
}

var _ SchemaFunc = defineOrders

func newOrders(t *testing.T, opts ...dynaschema.TableOption) *orders {
	t.Helper()
	table := defineOrders("orders", opts...)
	o := &orders{table: table}
	var ok bool
	o.order, ok = table.Entity("Order")
	require.True(t, ok)
	o.orderItem, ok = table.Entity("OrderItem")
	require.True(t, ok)
	o.payment, ok = table.Entity("Payment")
	require.True(t, ok)
	return o
}

func newLocalStore(t *testing.T, opts ...LocalStoreOption) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newLocalOrders returns the orders design on a fresh LocalStore with the
// table already created.
func newLocalOrders(t *testing.T, opts ...dynaschema.TableOption) (*orders, *LocalStore) {
	t.Helper()
	store := newLocalStore(t)
	o := newOrders(t, append([]dynaschema.TableOption{dynaschema.WithStore(store)}, opts...)...)
	require.NoError(t, o.table.CreateTable(context.Background()))
	return o, store
}

func (o *orders) pattern(t *testing.T, et *dynaschema.EntityType, name string) *dynaschema.AccessPattern {
	t.Helper()
	p, err := et.Pattern(name)
	require.NoError(t, err)
	return p
}

func (o *orders) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	records := []*dynaschema.Instance{
		o.order.MustNew(map[string]any{"id": 1, "date": "2022-11-24"}),
		o.order.MustNew(map[string]any{"id": 2, "date": "2022-11-24"}),
		o.order.MustNew(map[string]any{"id": 3, "date": "2022-11-25"}),
		o.orderItem.MustNew(map[string]any{"order": 1, "sku": "apple", "quantity": 3}),
		o.orderItem.MustNew(map[string]any{"order": 1, "sku": "banana", "quantity": 1}),
		o.orderItem.MustNew(map[string]any{"order": 1, "sku": "cherry", "quantity": 12}),
		o.orderItem.MustNew(map[string]any{"order": 2, "sku": "apple", "quantity": 1}),
		o.payment.MustNew(map[string]any{"order": 1, "payment_id": "p1", "amount": 250}),
	}
	for _, r := range records {
		require.NoError(t, r.Save(ctx))
	}
}

func values(t *testing.T, list []*dynaschema.Instance, field string) []any {
	t.Helper()
	out := make([]any, 0, len(list))
	for _, inst := range list {
		v, ok := inst.Get(field)
		require.True(t, ok, "%s not set on %s", field, inst.Type.Name)
		out = append(out, v)
	}
	return out
}
