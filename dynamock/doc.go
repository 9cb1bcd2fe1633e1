// Package dynamock provides testing utilities for the dynaschema library.
//
// This package includes:
//   - An in-process store backed by an embedded badger database
//   - Expectation-based mocks of the DynamoDB client and of dynaschema.Store
//   - Local DynamoDB integration utilities with automatic cleanup
//   - Record builders and fixture seeding from JSON or YAML
//
// # Local Store
//
// LocalStore evaluates compiled key conditions on the primary key and on
// secondary indexes without any external process:
//
//	store, err := dynamock.NewLocalStore()
//	defer store.Close()
//
//	table := dynaschema.NewTable("orders", dynaschema.WithStore(store))
//	order := table.MustDefine("Order", ...)
//	err = table.CreateTable(ctx)
//
//	err = order.MustNew(map[string]any{"id": 1, "date": "2022-11-24"}).Save(ctx)
//	list, err := orders.List(ctx, "2022-11-24")
//
// Filter expressions are not evaluated; queries carrying one fail with
// ErrUnsupportedFilter.
//
// # Mock Client
//
// The MockClient provides an expectation-based mock implementation where you set
// expectations for specific operations:
//
//	mock := dynamock.NewMockClient(t)
//	mock.QueryFunc = func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
//		return &dynamodb.QueryOutput{}, nil
//	}
//
//	table := dynaschema.NewTable("orders", dynaschema.WithStore(dynaschema.NewClientStore(mock, nil)))
//
// MockStore does the same one level up, for code that takes a dynaschema.Store.
//
// # Builders and Seeding
//
//	order := dynamock.NewRecord(orderType,
//		dynamock.WithValue("id", 1),
//		dynamock.WithValue("date", "2022-11-24"),
//	).Build()
//
//	seeder := dynamock.NewSeeder(table)
//	n, err := seeder.SeedFromYAML(ctx, strings.NewReader(`
//	- type: Order
//	  attributes: {id: 1, date: "2022-11-24"}
//	`))
//
// # Local DynamoDB
//
//	dynamock.WithDefaultLocalDynamoDB(t, func(local *dynamock.LocalDynamoDB) {
//		dynamock.WithIsolatedTable(t, local, defineOrders, func(table *dynaschema.Table) {
//			// Your test code here
//		})
//	})
package dynamock
