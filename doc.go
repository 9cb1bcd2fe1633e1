// Package dynaschema compiles declarative entity schemas into the physical
// key layout and key-condition queries of a single-table DynamoDB design.
//
// Entities declare their partition key, optional sort key, attributes,
// secondary indexes and access patterns once. The package derives physical
// key names and prefixed key strings from that declaration, assigns
// secondary index slots shared by every entity of the table, compiles
// access pattern calls into key conditions, and decodes query responses
// back into entity instances.
//
// # Key Layout
//
// Every entity shares the same physical columns:
//   - pk: partition key, "<Type>#<value>"
//   - sk: sort key, "<Type>#<value>", or "$" for entities without a sort key
//   - pk<i>, sk<i>: partition and sort keys of secondary index i
//
// Index slots are numbered by sorting the names of every secondary index
// declared in the table, so two entities declaring the same index name
// share a slot. Foreign keys store the identity of another entity and carry
// that entity's type prefix, which lets child records live in their
// parent's partition.
//
// # Basic Usage
//
//	table := dynaschema.NewTable("orders")
//
//	order := table.MustDefine("Order",
//	    dynaschema.PartitionKey("id", dynaschema.Int),
//	    dynaschema.Attribute("date", nil),
//	    dynaschema.SecondaryIndex("gsi1", "date", "id"),
//	    dynaschema.One("order_by_id", "id"),
//	    dynaschema.Many("orders_by_date", "gsi1"),
//	)
//
//	item := table.MustDefine("OrderItem",
//	    dynaschema.ForeignKey("order", order),
//	    dynaschema.SortKey("sku", nil),
//	    dynaschema.Attribute("quantity", dynaschema.Int),
//	    dynaschema.Many("items_by_order", "order"),
//	)
//	table.Freeze()
//
//	byID, _ := order.Pattern("order_by_id")
//	o, err := byID.Get(ctx, 1) // pk = "Order#1", sk = "$"
//
// # Conditions
//
// Calls accept keyword conditions on the pattern's key fields:
//
//	byDate, _ := order.Pattern("orders_by_date")
//	orders, err := byDate.Query().
//	    Where("date", dynaschema.GreaterOrEqual, "2022-11-24").
//	    List(ctx)
//
// # Stores
//
// Queries and updates run through a Store. By default a table creates a
// ClientStore from its Config on first use; tests inject one with
// WithStore, for example the in-memory store in the dynamock package.
package dynaschema
