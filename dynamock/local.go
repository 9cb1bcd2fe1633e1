package dynamock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynaschema"
	"go.uber.org/zap"
)

// DefaultLocalPort is the default port for DynamoDB Local.
const DefaultLocalPort = 8000

// LocalDynamoDB represents a connection to a local DynamoDB instance.
type LocalDynamoDB struct {
	Client   *dynamodb.Client
	Endpoint string
	Port     int
}

// NewLocalClient creates a DynamoDB client configured to connect to a local DynamoDB instance.
// This is useful for integration testing with DynamoDB Local.
//
// Example usage:
//
//	client := dynamock.NewLocalClient(8000)
//	table := dynaschema.NewTable("orders", dynaschema.WithStore(dynaschema.NewClientStore(client, nil)))
func NewLocalClient(port int) *dynamodb.Client {
	return dynamodb.New(dynamodb.Options{
		Region:       dynaschema.DefaultRegion, // DynamoDB Local doesn't care about region
		BaseEndpoint: aws.String(localEndpoint(port)),
		Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
	})
}

func localEndpoint(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// NewLocalDynamoDB creates a LocalDynamoDB instance with the specified port.
func NewLocalDynamoDB(port int) *LocalDynamoDB {
	return &LocalDynamoDB{
		Client:   NewLocalClient(port),
		Endpoint: localEndpoint(port),
		Port:     port,
	}
}

// NewDefaultLocalDynamoDB creates a LocalDynamoDB instance using the default port (8000).
func NewDefaultLocalDynamoDB() *LocalDynamoDB {
	return NewLocalDynamoDB(DefaultLocalPort)
}

// Store returns a dynaschema store backed by the local client.
func (l *LocalDynamoDB) Store(logger *zap.Logger) *dynaschema.ClientStore {
	return dynaschema.NewClientStore(l.Client, logger)
}

// IsAvailable checks if DynamoDB Local is running on the configured port.
func (l *LocalDynamoDB) IsAvailable(ctx context.Context) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", l.Port), 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()

	// Make sure it is actually DynamoDB
	_, err = l.Client.ListTables(ctx, &dynamodb.ListTablesInput{})
	return err == nil
}

// WaitForAvailable waits for DynamoDB Local to become available.
func (l *LocalDynamoDB) WaitForAvailable(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if l.IsAvailable(ctx) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("DynamoDB Local not available at %s after %v", l.Endpoint, timeout)
}

// CreateSchemaTable creates the physical table described by table and waits
// for it to become active. The table's own store is not used.
func (l *LocalDynamoDB) CreateSchemaTable(ctx context.Context, table *dynaschema.Table) error {
	desc, err := table.Describe()
	if err != nil {
		return err
	}

	if _, err := l.Client.CreateTable(ctx, desc.CreateTableInput()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", desc.TableName, err)
	}

	return l.WaitForTableActive(ctx, desc.TableName, 30*time.Second)
}

// WaitForTableActive waits for a table to become active.
func (l *LocalDynamoDB) WaitForTableActive(ctx context.Context, tableName string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		output, err := l.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", tableName, err)
		}

		if output.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	return fmt.Errorf("table %s did not become active within %v", tableName, timeout)
}

// DeleteTable deletes a table and waits for it to be fully deleted.
func (l *LocalDynamoDB) DeleteTable(ctx context.Context, tableName string) error {
	_, err := l.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete table %s: %w", tableName, err)
	}

	return l.WaitForTableDeleted(ctx, tableName, 30*time.Second)
}

// WaitForTableDeleted waits for a table to be fully deleted.
func (l *LocalDynamoDB) WaitForTableDeleted(ctx context.Context, tableName string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		_, err := l.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			var notFoundErr *types.ResourceNotFoundException
			if errors.As(err, &notFoundErr) {
				return nil
			}
			return fmt.Errorf("error checking table deletion status: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	return fmt.Errorf("table %s was not deleted within %v", tableName, timeout)
}

// ListTables returns all table names in the local DynamoDB instance.
func (l *LocalDynamoDB) ListTables(ctx context.Context) ([]string, error) {
	output, err := l.Client.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return output.TableNames, nil
}

// Cleanup deletes all tables in the local DynamoDB instance.
func (l *LocalDynamoDB) Cleanup(ctx context.Context) error {
	tables, err := l.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables for cleanup: %w", err)
	}

	for _, tableName := range tables {
		if err := l.DeleteTable(ctx, tableName); err != nil {
			return fmt.Errorf("failed to delete table %s during cleanup: %w", tableName, err)
		}
	}
	return nil
}
