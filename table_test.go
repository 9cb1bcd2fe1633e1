package dynaschema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestIndexOrdinals(t *testing.T) {
	defineA := func(table *Table) *EntityType {
		return table.MustDefine("A",
			PartitionKey("id", nil), Attribute("x", nil), Attribute("y", nil),
			SecondaryIndex("gsi1", "x", "id"),
			SecondaryIndex("gsi2", "y", "id"),
			Many("by_x", "gsi1"),
			Many("by_y", "gsi2"),
		)
	}
	defineB := func(table *Table) *EntityType {
		return table.MustDefine("B",
			PartitionKey("id", nil), Attribute("z", nil),
			SecondaryIndex("gsi0", "z", "id"),
			Many("by_z", "gsi0"),
		)
	}

	check := func(t *testing.T, a, b *EntityType) {
		t.Helper()
		for _, tt := range []struct {
			entity  *EntityType
			pattern string
			pk, sk  string
		}{
			{b, "by_z", "pk0", "sk0"},
			{a, "by_x", "pk1", "sk1"},
			{a, "by_y", "pk2", "sk2"},
		} {
			pk, sk, err := mustPattern(t, tt.entity, tt.pattern).Keys()
			require.NoError(t, err)
			assert.Equal(t, tt.pk, pk, tt.pattern)
			assert.Equal(t, tt.sk, sk, tt.pattern)
		}
	}

	t.Run("independent of registration order", func(t *testing.T) {
		first := NewTable("t")
		a := defineA(first)
		b := defineB(first)
		check(t, a, b)
		assert.Equal(t, []string{"gsi0", "gsi1", "gsi2"}, first.Indexes())

		second := NewTable("t")
		b = defineB(second)
		a = defineA(second)
		check(t, a, b)
	})

	t.Run("shared index names take one slot", func(t *testing.T) {
		table := NewTable("t")
		table.MustDefine("A", PartitionKey("id", nil), Attribute("x", nil), SecondaryIndex("gsi1", "x", "id"))
		table.MustDefine("B", PartitionKey("id", nil), Attribute("x", nil), SecondaryIndex("gsi1", "x", "id"))
		assert.Equal(t, []string{"gsi1"}, table.Indexes())
	})

	t.Run("frozen table keeps its ordinals", func(t *testing.T) {
		table := NewTable("t")
		a := defineA(table)
		table.Freeze()
		table.Freeze()
		assert.True(t, table.Frozen())

		pk, _, err := mustPattern(t, a, "by_y").Keys()
		require.NoError(t, err)
		assert.Equal(t, "pk1", pk)
		assert.Equal(t, []string{"gsi1", "gsi2"}, table.Indexes())
	})

	t.Run("replaced entities are not registered", func(t *testing.T) {
		table := NewTable("t")
		stale := defineA(table)
		defineA(table)

		_, _, err := mustPattern(t, stale, "by_x").Keys()
		assert.ErrorIs(t, err, ErrIndexNotRegistered)
	})

	t.Run("unregistered entities", func(t *testing.T) {
		table := NewTable("t")
		et, err := table.build("Loose", []Declaration{
			PartitionKey("id", nil), Attribute("x", nil), SecondaryIndex("gsi", "x", "id"),
		})
		require.NoError(t, err)

		idx, err := et.Field("gsi")
		require.NoError(t, err)
		_, err = table.OrdinalOf(idx)
		assert.ErrorIs(t, err, ErrIndexNotRegistered)

		id, _ := et.Field("id")
		_, err = table.OrdinalOf(id)
		assert.ErrorIs(t, err, ErrIndexNotRegistered)
	})
}

func TestTableEntities(t *testing.T) {
	schema := newTestSchema(t)

	var names []string
	for _, et := range schema.table.Entities() {
		names = append(names, et.Name)
	}
	assert.Equal(t, []string{"Bar", "Test", "TestBar", "TestItem"}, names)
	assert.NotNil(t, schema.table.Logger())
}

func TestDescribe(t *testing.T) {
	schema := newTestSchema(t)

	d, err := schema.table.Describe()
	require.NoError(t, err)

	assert.Equal(t, "TestTable", d.TableName)
	assert.Equal(t, "PAY_PER_REQUEST", d.BillingMode)
	assert.Equal(t, []KeyElement{
		{AttributeName: "pk", KeyType: "HASH"},
		{AttributeName: "sk", KeyType: "RANGE"},
	}, d.KeySchema)
	assert.Len(t, d.AttributeDefinitions, 4)

	require.Len(t, d.Indexes, 1)
	assert.Equal(t, IndexDescription{
		IndexName: "gsi1",
		Ordinal:   0,
		KeySchema: []KeyElement{
			{AttributeName: "pk0", KeyType: "HASH"},
			{AttributeName: "sk0", KeyType: "RANGE"},
		},
		ProjectionType: "ALL",
	}, d.Indexes[0])

	require.Len(t, d.Entities, 4)
	test := d.Entities[1]
	assert.Equal(t, "Test", test.Name)
	assert.Equal(t, FieldDescription{Name: "id", Kind: "PartitionKey", Attribute: "pk"}, test.Fields[0])
	assert.Equal(t, []PatternDescription{
		{Name: "record_by_id", Cardinality: "one", PartitionKey: "pk"},
		{Name: "records_by_date", Cardinality: "many", Index: "gsi1", PartitionKey: "pk0", SortKey: "sk0"},
	}, test.Patterns)

	testItem := d.Entities[3]
	assert.Equal(t, FieldDescription{Name: "test_id", Kind: "ForeignKey", Attribute: "pk", Ref: "Test"}, testItem.Fields[0])

	t.Run("create table input", func(t *testing.T) {
		input := d.CreateTableInput()
		assert.Equal(t, "TestTable", aws.ToString(input.TableName))
		assert.Equal(t, types.BillingModePayPerRequest, input.BillingMode)
		require.Len(t, input.KeySchema, 2)
		assert.Equal(t, "pk", aws.ToString(input.KeySchema[0].AttributeName))
		assert.Equal(t, types.KeyTypeHash, input.KeySchema[0].KeyType)

		require.Len(t, input.GlobalSecondaryIndexes, 1)
		gsi := input.GlobalSecondaryIndexes[0]
		assert.Equal(t, "gsi1", aws.ToString(gsi.IndexName))
		assert.Equal(t, "pk0", aws.ToString(gsi.KeySchema[0].AttributeName))
		assert.Equal(t, "sk0", aws.ToString(gsi.KeySchema[1].AttributeName))
		assert.Equal(t, types.ProjectionTypeAll, gsi.Projection.ProjectionType)

		for _, a := range input.AttributeDefinitions {
			assert.Equal(t, types.ScalarAttributeTypeS, a.AttributeType)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, d.WriteYAML(&buf))
		assert.Contains(t, buf.String(), "tableName: TestTable")
		assert.Contains(t, buf.String(), "globalSecondaryIndexes:")

		var back TableDescription
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
		assert.Equal(t, *d, back)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, d.WriteJSON(&buf))

		var back TableDescription
		require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
		assert.Equal(t, *d, back)
	})

	t.Run("table without indexes", func(t *testing.T) {
		table := NewTable("plain")
		table.MustDefine("A", PartitionKey("id", nil))
		d, err := table.Describe()
		require.NoError(t, err)
		assert.Empty(t, d.Indexes)
		assert.Empty(t, d.CreateTableInput().GlobalSecondaryIndexes)
	})
}

func TestTableStore(t *testing.T) {
	ctx := context.Background()

	t.Run("injected store", func(t *testing.T) {
		store := newMemoryStore()
		schema := newTestSchema(t, WithStore(store))
		got, err := schema.table.Store(ctx)
		require.NoError(t, err)
		assert.Same(t, store, got)

		require.NoError(t, schema.table.CreateTable(ctx))
		require.Len(t, store.tables, 1)
		assert.Equal(t, "TestTable", store.tables[0].TableName)
	})

	t.Run("store errors pass through", func(t *testing.T) {
		store := newMemoryStore()
		store.err = errors.New("boom")
		schema := newTestSchema(t, WithStore(store))
		assert.Same(t, store.err, schema.table.CreateTable(ctx))
	})

	t.Run("lazy client store is created once", func(t *testing.T) {
		table := NewTable("lazy", WithConfig(Config{
			TableName:       "lazy",
			Region:          "eu-west-1",
			Endpoint:        "http://localhost:8000",
			AccessKeyID:     "local",
			SecretAccessKey: "local",
		}))

		var (
			wg     sync.WaitGroup
			stores = make([]Store, 8)
		)
		for i := range stores {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := table.Store(ctx)
				assert.NoError(t, err)
				stores[i] = s
			}(i)
		}
		wg.Wait()

		cs, ok := stores[0].(*ClientStore)
		require.True(t, ok)
		for _, s := range stores[1:] {
			assert.Same(t, cs, s)
		}
	})

	t.Run("region option", func(t *testing.T) {
		table := NewTable("t", WithRegion("ap-south-1"))
		assert.Equal(t, "ap-south-1", table.config.Region)

		table = NewTable("t")
		assert.Equal(t, DefaultRegion, table.config.Region)
	})
}
