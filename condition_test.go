package dynaschema

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperators(t *testing.T) {
	tests := []struct {
		suffix string
		op     Operator
		wire   types.ComparisonOperator
	}{
		{"exact", Exact, "EQ"},
		{"not_equal", NotEqual, "NE"},
		{"lte", LessOrEqual, "LE"},
		{"lt", Less, "LT"},
		{"gte", GreaterOrEqual, "GE"},
		{"gt", Greater, "GT"},
		{"is_null", IsNull, "NULL"},
		{"is_not_null", IsNotNull, "NOT_NULL"},
		{"contains", Contains, "CONTAINS"},
		{"not_contains", NotContains, "NOT_CONTAINS"},
		{"begins_with", BeginsWith, "BEGINS_WITH"},
		{"in", In, "IN"},
		{"between", Between, "BETWEEN"},
	}

	for _, tt := range tests {
		t.Run(tt.suffix, func(t *testing.T) {
			op, err := ParseOperator(tt.suffix)
			require.NoError(t, err)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.suffix, op.String())
			assert.Equal(t, tt.wire, op.ComparisonOperator())
		})
	}

	t.Run("empty suffix is exact", func(t *testing.T) {
		op, err := ParseOperator("")
		require.NoError(t, err)
		assert.Equal(t, Exact, op)
	})

	t.Run("unknown suffix", func(t *testing.T) {
		_, err := ParseOperator("starts_with")
		assert.ErrorIs(t, err, ErrInvalidOperator)
		assert.Equal(t, "Operator(99)", Operator(99).String())
		assert.Empty(t, Operator(-1).ComparisonOperator())
	})
}

func TestSplitCondition(t *testing.T) {
	name, op, err := SplitCondition("date__gte")
	require.NoError(t, err)
	assert.Equal(t, "date", name)
	assert.Equal(t, GreaterOrEqual, op)

	name, op, err = SplitCondition("date")
	require.NoError(t, err)
	assert.Equal(t, "date", name)
	assert.Equal(t, Exact, op)

	_, _, err = SplitCondition("date__soon")
	assert.ErrorIs(t, err, ErrInvalidOperator)
}

func TestConditions(t *testing.T) {
	conds, err := Conditions(map[string]any{
		"id__between":      []any{1, 5},
		"date__gte":        "2022-11-24",
		"deleted__is_null": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, []Condition{
		{Field: "date", Op: GreaterOrEqual, Values: []any{"2022-11-24"}},
		{Field: "deleted", Op: IsNull},
		{Field: "id", Op: Between, Values: []any{1, 5}},
	}, conds)

	_, err = Conditions(map[string]any{"id__nope": 1})
	assert.ErrorIs(t, err, ErrInvalidOperator)
}

func TestConditionArity(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		ok   bool
	}{
		{"exact", Where("a", Exact, 1), true},
		{"exact without value", Where("a", Exact), false},
		{"is null", Where("a", IsNull), true},
		{"is null with value", Where("a", IsNull, 1), false},
		{"between", Where("a", Between, 1, 2), true},
		{"between with one value", Where("a", Between, 1), false},
		{"in", Where("a", In, 1, 2, 3), true},
		{"in without values", Where("a", In), false},
		{"invalid operator", Where("a", Operator(42), 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestKeyConditionsStore(t *testing.T) {
	kc := KeyConditions{
		"pk": {Op: Exact, Values: []string{"Test#1"}},
		"sk": {Op: BeginsWith, Values: []string{"TestItem#"}},
	}

	assert.Equal(t, map[string]types.Condition{
		"pk": {
			ComparisonOperator: types.ComparisonOperatorEq,
			AttributeValueList: []types.AttributeValue{str("Test#1")},
		},
		"sk": {
			ComparisonOperator: types.ComparisonOperatorBeginsWith,
			AttributeValueList: []types.AttributeValue{str("TestItem#")},
		},
	}, kc.Store())

	assert.Equal(t, map[string]any{
		"pk":              "Test#1",
		"sk__begins_with": "TestItem#",
	}, kc.Flatten())
}
