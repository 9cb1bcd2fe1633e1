// Package examples holds a complete single-table design used by the
// dynamock tests and as a reference for new schemas: orders, the items
// they contain and the payments made against them, all stored in the
// order's partition.
package examples

import (
	"context"
	"fmt"

	"github.com/nisimpson/dynaschema"
)

// Order is the typed form of an Order instance.
type Order struct {
	ID   int    `dynamodbav:"id"`
	Date string `dynamodbav:"date"`
}

// OrderItem is a line of an order.
type OrderItem struct {
	OrderID  int    `dynamodbav:"order"`
	SKU      string `dynamodbav:"sku"`
	Quantity int    `dynamodbav:"quantity"`
}

// Payment is a payment against an order.
type Payment struct {
	OrderID   int    `dynamodbav:"order"`
	PaymentID string `dynamodbav:"payment_id"`
	Amount    int    `dynamodbav:"amount"`
}

// Orders is the schema of the orders table.
type Orders struct {
	Table     *dynaschema.Table
	Order     *dynaschema.EntityType
	OrderItem *dynaschema.EntityType
	Payment   *dynaschema.EntityType
}

// NewOrders defines the orders schema on a table with the given name.
func NewOrders(tableName string, opts ...dynaschema.TableOption) *Orders {
	table := dynaschema.NewTable(tableName, opts...)

	order := table.MustDefine("Order",
		dynaschema.PartitionKey("id", dynaschema.Int),
		dynaschema.Attribute("date", nil),
		dynaschema.SecondaryIndex("gsi1", "date", "id"),
		dynaschema.One("order_by_id", "id"),
		dynaschema.Many("orders_by_date", "gsi1"),
	)

	orderItem := table.MustDefine("OrderItem",
		dynaschema.ForeignKey("order", order),
		dynaschema.SortKey("sku", nil),
		dynaschema.Attribute("quantity", dynaschema.Int),
		dynaschema.Many("order_items_by_order", "order"),
	)

	payment := table.MustDefine("Payment",
		dynaschema.ForeignKey("order", order),
		dynaschema.SortKey("payment_id", nil),
		dynaschema.Attribute("amount", dynaschema.Int),
		dynaschema.Many("payments_by_order", "order"),
	)

	table.Freeze()
	return &Orders{Table: table, Order: order, OrderItem: orderItem, Payment: payment}
}

// Table defines the schema and returns its table; it has the shape of
// dynamock.SchemaFunc.
func Table(tableName string, opts ...dynaschema.TableOption) *dynaschema.Table {
	return NewOrders(tableName, opts...).Table
}

func pattern(et *dynaschema.EntityType, name string) *dynaschema.AccessPattern {
	p, err := et.Pattern(name)
	if err != nil {
		// patterns are declared in NewOrders
		panic(err)
	}
	return p
}

// GetOrder loads one order.
func (o *Orders) GetOrder(ctx context.Context, id int) (*Order, error) {
	inst, err := pattern(o.Order, "order_by_id").Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Order
	if err := inst.Unmarshal(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrdersByDate lists the orders placed on date, optionally starting at
// order id from.
func (o *Orders) OrdersByDate(ctx context.Context, date string, from ...int) ([]Order, error) {
	q := pattern(o.Order, "orders_by_date").Query(date)
	if len(from) > 0 {
		q.Where("id", dynaschema.GreaterOrEqual, from[0])
	}
	list, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	return unmarshalAll[Order](list)
}

// Items lists the items of an order by SKU.
func (o *Orders) Items(ctx context.Context, orderID int) ([]OrderItem, error) {
	list, err := pattern(o.OrderItem, "order_items_by_order").List(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return unmarshalAll[OrderItem](list)
}

// Payments lists the payments of an order.
func (o *Orders) Payments(ctx context.Context, orderID int) ([]Payment, error) {
	list, err := pattern(o.Payment, "payments_by_order").List(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return unmarshalAll[Payment](list)
}

// Balance is the quantity-weighted total owed minus payments made, given a
// unit price per SKU.
func (o *Orders) Balance(ctx context.Context, orderID int, prices map[string]int) (int, error) {
	items, err := o.Items(ctx, orderID)
	if err != nil {
		return 0, err
	}
	payments, err := o.Payments(ctx, orderID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, item := range items {
		price, ok := prices[item.SKU]
		if !ok {
			return 0, fmt.Errorf("no price for %s", item.SKU)
		}
		total += price * item.Quantity
	}
	for _, p := range payments {
		total -= p.Amount
	}
	return total, nil
}

func unmarshalAll[T any](list []*dynaschema.Instance) ([]T, error) {
	out := make([]T, len(list))
	for i, inst := range list {
		if err := inst.Unmarshal(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
