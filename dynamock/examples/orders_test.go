package examples

import (
	"context"
	"strings"
	"testing"

	"github.com/nisimpson/dynaschema"
	"github.com/nisimpson/dynaschema/dynamock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtures = `
- {type: Order, attributes: {id: 1, date: "2022-11-24"}}
- {type: Order, attributes: {id: 2, date: "2022-11-24"}}
- {type: Order, attributes: {id: 3, date: "2022-11-25"}}
- {type: OrderItem, attributes: {order: 1, sku: apple, quantity: 3}}
- {type: OrderItem, attributes: {order: 1, sku: banana, quantity: 1}}
- {type: Payment, attributes: {order: 1, payment_id: p1, amount: 250}}
`

func newOrders(t *testing.T) *Orders {
	t.Helper()
	store, err := dynamock.NewLocalStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	orders := NewOrders("orders", dynaschema.WithStore(store))
	ctx := context.Background()
	require.NoError(t, orders.Table.CreateTable(ctx))

	_, err = dynamock.NewSeeder(orders.Table).SeedFromYAML(ctx, strings.NewReader(fixtures))
	require.NoError(t, err)
	return orders
}

func TestOrders(t *testing.T) {
	var _ dynamock.SchemaFunc = Table

	orders := newOrders(t)
	ctx := context.Background()

	t.Run("get order", func(t *testing.T) {
		order, err := orders.GetOrder(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, &Order{ID: 1, Date: "2022-11-24"}, order)

		_, err = orders.GetOrder(ctx, 9)
		assert.ErrorIs(t, err, dynaschema.ErrItemNotFound)
	})

	t.Run("orders by date", func(t *testing.T) {
		list, err := orders.OrdersByDate(ctx, "2022-11-24")
		require.NoError(t, err)
		assert.Equal(t, []Order{{ID: 1, Date: "2022-11-24"}, {ID: 2, Date: "2022-11-24"}}, list)

		list, err = orders.OrdersByDate(ctx, "2022-11-24", 2)
		require.NoError(t, err)
		assert.Equal(t, []Order{{ID: 2, Date: "2022-11-24"}}, list)
	})

	t.Run("items and payments", func(t *testing.T) {
		items, err := orders.Items(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []OrderItem{
			{OrderID: 1, SKU: "apple", Quantity: 3},
			{OrderID: 1, SKU: "banana", Quantity: 1},
		}, items)

		payments, err := orders.Payments(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []Payment{{OrderID: 1, PaymentID: "p1", Amount: 250}}, payments)

		items, err = orders.Items(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("balance", func(t *testing.T) {
		balance, err := orders.Balance(ctx, 1, map[string]int{"apple": 100, "banana": 50})
		require.NoError(t, err)
		assert.Equal(t, 100, balance)

		_, err = orders.Balance(ctx, 1, map[string]int{"apple": 100})
		assert.ErrorContains(t, err, "no price for banana")
	})
}
