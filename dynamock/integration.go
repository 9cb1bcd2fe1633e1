package dynamock

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/dynaschema"
)

// SchemaFunc defines a schema on a table with the given physical name.
// Test helpers call it with generated names so tests never share a table.
type SchemaFunc func(tableName string, opts ...dynaschema.TableOption) *dynaschema.Table

// TableManager manages DynamoDB tables for testing, providing automatic cleanup.
type TableManager struct {
	local  *LocalDynamoDB
	tables []string // track created tables for cleanup
}

// NewTableManager creates a new table manager for the local instance.
func NewTableManager(local *LocalDynamoDB) *TableManager {
	return &TableManager{
		local:  local,
		tables: make([]string, 0),
	}
}

// CreateTestTable creates the physical table for table and tracks it for cleanup.
func (tm *TableManager) CreateTestTable(ctx context.Context, table *dynaschema.Table) error {
	if err := tm.local.CreateSchemaTable(ctx, table); err != nil {
		return err
	}
	tm.tables = append(tm.tables, table.Name)
	return nil
}

// Cleanup deletes all tables created by this manager.
func (tm *TableManager) Cleanup(ctx context.Context) error {
	for _, tableName := range tm.tables {
		if err := tm.local.DeleteTable(ctx, tableName); err != nil {
			return fmt.Errorf("failed to delete table %s: %w", tableName, err)
		}
	}
	tm.tables = tm.tables[:0]
	return nil
}

// GetTableNames returns the names of all tables managed by this manager.
func (tm *TableManager) GetTableNames() []string {
	names := make([]string, len(tm.tables))
	copy(names, tm.tables)
	return names
}

var unsafeTableChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// NewTestTable generates a unique table name for testing. Characters
// DynamoDB rejects in table names are replaced.
func NewTestTable(prefix string) string {
	return fmt.Sprintf("%s-%d", unsafeTableChars.ReplaceAllString(prefix, "_"), time.Now().UnixNano())
}

// WithIsolatedTable defines schema on a uniquely named table, creates it in
// the local instance and runs fn. The table is deleted afterwards.
func WithIsolatedTable(t *testing.T, local *LocalDynamoDB, schema SchemaFunc, fn func(table *dynaschema.Table)) {
	ctx := context.Background()
	table := schema(NewTestTable("test-"+t.Name()), dynaschema.WithStore(local.Store(nil)))

	tm := NewTableManager(local)
	defer func() {
		if err := tm.Cleanup(ctx); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", table.Name, err)
		}
	}()

	if err := tm.CreateTestTable(ctx, table); err != nil {
		t.Fatalf("Failed to create test table %s: %v", table.Name, err)
	}

	fn(table)
}

// WithLocalDynamoDB runs a test function with a local DynamoDB instance.
// It skips the test in short mode or when DynamoDB Local is not running.
func WithLocalDynamoDB(t *testing.T, port int, fn func(local *LocalDynamoDB)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	local := NewLocalDynamoDB(port)
	if !local.IsAvailable(context.Background()) {
		t.Skipf("DynamoDB Local not available on port %d", port)
	}

	fn(local)
}

// WithDefaultLocalDynamoDB runs a test function with the default local DynamoDB instance (port 8000).
func WithDefaultLocalDynamoDB(t *testing.T, fn func(local *LocalDynamoDB)) {
	WithLocalDynamoDB(t, DefaultLocalPort, fn)
}

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	Port             int
	SkipIfNotRunning bool
	TablePrefix      string
	CleanupTimeout   time.Duration
}

// DefaultIntegrationTestConfig returns a default configuration for integration tests.
func DefaultIntegrationTestConfig() *IntegrationTestConfig {
	return &IntegrationTestConfig{
		Port:             DefaultLocalPort,
		SkipIfNotRunning: true,
		TablePrefix:      "integration-test",
		CleanupTimeout:   30 * time.Second,
	}
}

// RunIntegrationTest defines schema on a fresh table in DynamoDB Local and
// runs fn against it.
func RunIntegrationTest(t *testing.T, config *IntegrationTestConfig, schema SchemaFunc, fn func(local *LocalDynamoDB, table *dynaschema.Table)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	if config == nil {
		config = DefaultIntegrationTestConfig()
	}

	local := NewLocalDynamoDB(config.Port)
	ctx := context.Background()

	if !local.IsAvailable(ctx) {
		if config.SkipIfNotRunning {
			t.Skipf("DynamoDB Local not available on port %d", config.Port)
		} else {
			t.Fatalf("DynamoDB Local not available on port %d", config.Port)
		}
	}

	table := schema(NewTestTable(config.TablePrefix), dynaschema.WithStore(local.Store(nil)))
	if err := local.CreateSchemaTable(ctx, table); err != nil {
		t.Fatalf("Failed to create test table %s: %v", table.Name, err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), config.CleanupTimeout)
		defer cancel()

		if err := local.DeleteTable(cleanupCtx, table.Name); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", table.Name, err)
		}
	}()

	fn(local, table)
}

// AssertTableExists verifies that a table exists.
func AssertTableExists(t testing.TB, client *dynamodb.Client, tableName string) {
	t.Helper()
	_, err := client.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{
		TableName: &tableName,
	})
	if err != nil {
		t.Errorf("Table %s does not exist: %v", tableName, err)
	}
}

// AssertTableNotExists verifies that a table does not exist.
func AssertTableNotExists(t testing.TB, client *dynamodb.Client, tableName string) {
	t.Helper()
	_, err := client.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{
		TableName: &tableName,
	})
	if err == nil {
		t.Errorf("Table %s should not exist but it does", tableName)
	}
}
