package dynamock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/dynaschema"
)

type DynamoDBAPICall[T, U any] = func(context.Context, *T, ...func(*dynamodb.Options)) (*U, error)

// MockClient is a simple expectation-based mock for the DynamoDB operations
// a dynaschema.ClientStore performs.
type MockClient struct {
	QueryFunc       DynamoDBAPICall[dynamodb.QueryInput, dynamodb.QueryOutput]
	UpdateFunc      DynamoDBAPICall[dynamodb.UpdateItemInput, dynamodb.UpdateItemOutput]
	CreateTableFunc DynamoDBAPICall[dynamodb.CreateTableInput, dynamodb.CreateTableOutput]
}

// Ensure MockClient implements dynaschema.DynamoDBClient
var _ dynaschema.DynamoDBClient = (*MockClient)(nil)

// NewMockClient creates a mock client whose operations fail the test
// unless an expectation is set.
func NewMockClient(t testing.TB) *MockClient {
	return &MockClient{
		QueryFunc:       defaultFunc[dynamodb.QueryInput, dynamodb.QueryOutput](t),
		UpdateFunc:      defaultFunc[dynamodb.UpdateItemInput, dynamodb.UpdateItemOutput](t),
		CreateTableFunc: defaultFunc[dynamodb.CreateTableInput, dynamodb.CreateTableOutput](t),
	}
}

func defaultFunc[T, U any](t testing.TB) DynamoDBAPICall[T, U] {
	return func(ctx context.Context, params *T, optFns ...func(*dynamodb.Options)) (*U, error) {
		t.Helper()
		t.Fatalf("unexpected call with %T", params)
		return nil, nil
	}
}

// Query performs a query operation.
func (m *MockClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return m.QueryFunc(ctx, params, optFns...)
}

// UpdateItem updates an item in the mock table.
func (m *MockClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return m.UpdateFunc(ctx, params, optFns...)
}

// CreateTable creates a table.
func (m *MockClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return m.CreateTableFunc(ctx, params, optFns...)
}

// MockStore is a dynaschema.Store whose operations are set per test.
type MockStore struct {
	QueryFunc       func(context.Context, *dynaschema.QueryRequest) (*dynaschema.QueryResponse, error)
	UpdateFunc      func(context.Context, *dynaschema.UpdateRequest) error
	CreateTableFunc func(context.Context, *dynaschema.TableDescription) error
}

var _ dynaschema.Store = (*MockStore)(nil)

// NewMockStore creates a mock store whose operations fail the test unless
// an expectation is set.
func NewMockStore(t testing.TB) *MockStore {
	return &MockStore{
		QueryFunc: func(context.Context, *dynaschema.QueryRequest) (*dynaschema.QueryResponse, error) {
			t.Helper()
			t.Fatal("unexpected call to Query")
			return nil, nil
		},
		UpdateFunc: func(context.Context, *dynaschema.UpdateRequest) error {
			t.Helper()
			t.Fatal("unexpected call to Update")
			return nil
		},
		CreateTableFunc: func(context.Context, *dynaschema.TableDescription) error {
			t.Helper()
			t.Fatal("unexpected call to CreateTable")
			return nil
		},
	}
}

// Query implements dynaschema.Store.
func (m *MockStore) Query(ctx context.Context, req *dynaschema.QueryRequest) (*dynaschema.QueryResponse, error) {
	return m.QueryFunc(ctx, req)
}

// Update implements dynaschema.Store.
func (m *MockStore) Update(ctx context.Context, req *dynaschema.UpdateRequest) error {
	return m.UpdateFunc(ctx, req)
}

// CreateTable implements dynaschema.Store.
func (m *MockStore) CreateTable(ctx context.Context, desc *dynaschema.TableDescription) error {
	return m.CreateTableFunc(ctx, desc)
}

// Respond returns a QueryFunc answering every query with items.
func Respond(items ...dynaschema.Item) func(context.Context, *dynaschema.QueryRequest) (*dynaschema.QueryResponse, error) {
	return func(context.Context, *dynaschema.QueryRequest) (*dynaschema.QueryResponse, error) {
		return &dynaschema.QueryResponse{Items: items, Count: len(items), ScannedCount: len(items)}, nil
	}
}
