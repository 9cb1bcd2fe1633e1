package dynaschema

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

// testSchema mirrors a small single-table design: Test records with a date
// index, Bar records, and two child types living in a Test partition.
type testSchema struct {
	table    *Table
	test     *EntityType
	bar      *EntityType
	testItem *EntityType
	testBar  *EntityType
}

func newTestSchema(t *testing.T, opts ...TableOption) *testSchema {
	t.Helper()
	table := NewTable("TestTable", opts...)

	test, err := table.Define("Test",
		PartitionKey("id", Int),
		Attribute("date_created", nil),
		SecondaryIndex("gsi1", "date_created", "id"),
		One("record_by_id", "id"),
		Many("records_by_date", "gsi1"),
	)
	require.NoError(t, err)

	bar, err := table.Define("Bar",
		PartitionKey("id", Int),
	)
	require.NoError(t, err)

	testItem, err := table.Define("TestItem",
		ForeignKey("test_id", test),
		SortKey("id", nil),
		Attribute("quantity", Int),
		Many("test_items_by_test", "test_id"),
	)
	require.NoError(t, err)

	testBar, err := table.Define("TestBar",
		ForeignKey("test_id", test),
		ForeignSortKey("bar_id", bar),
		Attribute("quantity", Int),
		Many("test_bars_by_test", "test_id"),
	)
	require.NoError(t, err)

	return &testSchema{table: table, test: test, bar: bar, testItem: testItem, testBar: testBar}
}

func mustPattern(t *testing.T, et *EntityType, name string) *AccessPattern {
	t.Helper()
	p, err := et.Pattern(name)
	require.NoError(t, err)
	return p
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func num(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

// memoryStore is a Store over a map. It understands the SET expressions
// produced by UpdateAttributes and string key conditions.
type memoryStore struct {
	mu      sync.Mutex
	items   map[string]Item
	queries []*QueryRequest
	updates []*UpdateRequest
	tables  []*TableDescription
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string]Item)}
}

func itemKey(item Item) string {
	pk, _ := item[PartitionKeyName].(*types.AttributeValueMemberS)
	sk, _ := item[SortKeyName].(*types.AttributeValueMemberS)
	if pk == nil || sk == nil {
		return ""
	}
	return pk.Value + "|" + sk.Value
}

func (m *memoryStore) Update(_ context.Context, req *UpdateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, req)
	if m.err != nil {
		return m.err
	}

	key := itemKey(req.Key)
	item, ok := m.items[key]
	if !ok {
		item = Item{}
		for k, v := range req.Key {
			item[k] = v
		}
	}
	if expr := strings.TrimPrefix(req.UpdateExpression, "SET "); expr != "" {
		for _, assignment := range strings.Split(expr, ", ") {
			lhs, rhs, _ := strings.Cut(assignment, " = ")
			if name, ok := req.Names[lhs]; ok {
				lhs = name
			}
			item[lhs] = req.Values[rhs]
		}
	}
	m.items[key] = item
	return nil
}

func (m *memoryStore) Query(_ context.Context, req *QueryRequest) (*QueryResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, req)
	if m.err != nil {
		return nil, m.err
	}

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if req.SortDescending {
		slices.Reverse(keys)
	}

	var matched []Item
	for _, k := range keys {
		if matches(m.items[k], req.KeyConditions) {
			matched = append(matched, m.items[k])
		}
	}

	if req.ExclusiveStartKey != nil {
		start := itemKey(req.ExclusiveStartKey)
		for i, item := range matched {
			if itemKey(item) == start {
				matched = matched[i+1:]
				break
			}
		}
	}

	resp := &QueryResponse{}
	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
		last := matched[len(matched)-1]
		resp.LastEvaluatedKey = Item{PartitionKeyName: last[PartitionKeyName], SortKeyName: last[SortKeyName]}
	}
	resp.Items = matched
	resp.Count = len(matched)
	resp.ScannedCount = len(matched)
	return resp, nil
}

func matches(item Item, conds map[string]types.Condition) bool {
	for name, cond := range conds {
		av, ok := item[name].(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		var operands []string
		for _, v := range cond.AttributeValueList {
			operands = append(operands, v.(*types.AttributeValueMemberS).Value)
		}
		switch cond.ComparisonOperator {
		case types.ComparisonOperatorEq:
			ok = av.Value == operands[0]
		case types.ComparisonOperatorBeginsWith:
			ok = strings.HasPrefix(av.Value, operands[0])
		case types.ComparisonOperatorGe:
			ok = av.Value >= operands[0]
		case types.ComparisonOperatorLe:
			ok = av.Value <= operands[0]
		case types.ComparisonOperatorBetween:
			ok = av.Value >= operands[0] && av.Value <= operands[1]
		default:
			ok = false
		}
		if !ok {
			return false
		}
	}
	return true
}

func (m *memoryStore) CreateTable(_ context.Context, desc *TableDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = append(m.tables, desc)
	return m.err
}
