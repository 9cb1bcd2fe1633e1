package dynaschema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Operator is a key-condition comparison.
type Operator int

const (
	Exact Operator = iota
	NotEqual
	LessOrEqual
	Less
	GreaterOrEqual
	Greater
	IsNull
	IsNotNull
	Contains
	NotContains
	BeginsWith
	In
	Between
)

var operators = [...]struct {
	name string
	wire types.ComparisonOperator
}{
	Exact:          {"exact", types.ComparisonOperatorEq},
	NotEqual:       {"not_equal", types.ComparisonOperatorNe},
	LessOrEqual:    {"lte", types.ComparisonOperatorLe},
	Less:           {"lt", types.ComparisonOperatorLt},
	GreaterOrEqual: {"gte", types.ComparisonOperatorGe},
	Greater:        {"gt", types.ComparisonOperatorGt},
	IsNull:         {"is_null", types.ComparisonOperatorNull},
	IsNotNull:      {"is_not_null", types.ComparisonOperatorNotNull},
	Contains:       {"contains", types.ComparisonOperatorContains},
	NotContains:    {"not_contains", types.ComparisonOperatorNotContains},
	BeginsWith:     {"begins_with", types.ComparisonOperatorBeginsWith},
	In:             {"in", types.ComparisonOperatorIn},
	Between:        {"between", types.ComparisonOperatorBetween},
}

func (o Operator) valid() bool { return o >= 0 && int(o) < len(operators) }

// String returns the operator's suffix name, e.g. "begins_with".
func (o Operator) String() string {
	if !o.valid() {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operators[o].name
}

// ComparisonOperator returns the store's comparison operator.
func (o Operator) ComparisonOperator() types.ComparisonOperator {
	if !o.valid() {
		return ""
	}
	return operators[o].wire
}

// ParseOperator parses a suffix name such as "gte". The empty string is Exact.
func ParseOperator(s string) (Operator, error) {
	if s == "" {
		return Exact, nil
	}
	for op, def := range operators {
		if def.name == s {
			return Operator(op), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOperator, s)
}

// ConditionSeparator joins a field name and operator suffix in a condition key.
const ConditionSeparator = "__"

// SplitCondition splits a "name__operator" key into its field and operator.
// A key without a suffix is an exact match.
func SplitCondition(key string) (string, Operator, error) {
	name, suffix, _ := strings.Cut(key, ConditionSeparator)
	op, err := ParseOperator(suffix)
	if err != nil {
		return "", 0, err
	}
	return name, op, nil
}

// Condition is a keyword condition on a logical field.
type Condition struct {
	Field  string   // Logical field name
	Op     Operator // Comparison
	Values []any    // Operands; count depends on Op
}

// Where builds a keyword condition.
func Where(field string, op Operator, values ...any) Condition {
	return Condition{Field: field, Op: op, Values: values}
}

// Conditions converts a "name__operator" keyed map into conditions, ordered by key.
func Conditions(kwargs map[string]any) ([]Condition, error) {
	conds := make([]Condition, 0, len(kwargs))
	for _, key := range slices.Sorted(maps.Keys(kwargs)) {
		name, op, err := SplitCondition(key)
		if err != nil {
			return nil, err
		}
		c := Condition{Field: name, Op: op}
		switch v := kwargs[key].(type) {
		case nil:
		case []any:
			c.Values = v
		default:
			c.Values = []any{v}
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func (c Condition) validate() error {
	if !c.Op.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidOperator, int(c.Op))
	}
	n := len(c.Values)
	var ok bool
	switch c.Op {
	case IsNull, IsNotNull:
		ok = n == 0
	case Between:
		ok = n == 2
	case In:
		ok = n > 0
	default:
		ok = n == 1
	}
	if !ok {
		return fmt.Errorf("%w: %s %s with %d values", ErrInvalidCondition, c.Field, c.Op, n)
	}
	return nil
}

// KeyCondition is a compiled condition on one physical key column.
type KeyCondition struct {
	Op     Operator
	Values []string
}

// KeyConditions maps physical key columns to their compiled conditions.
type KeyConditions map[string]KeyCondition

// Store renders the conditions in the store's wire shape. Key columns are
// always strings.
func (kc KeyConditions) Store() map[string]types.Condition {
	out := make(map[string]types.Condition, len(kc))
	for name, c := range kc {
		values := make([]types.AttributeValue, len(c.Values))
		for i, v := range c.Values {
			values[i] = &types.AttributeValueMemberS{Value: v}
		}
		out[name] = types.Condition{
			ComparisonOperator: c.Op.ComparisonOperator(),
			AttributeValueList: values,
		}
	}
	return out
}

// Flatten renders the conditions as "column[__operator]" keys, omitting the
// suffix for exact matches. Single operands are unwrapped.
func (kc KeyConditions) Flatten() map[string]any {
	out := make(map[string]any, len(kc))
	for name, c := range kc {
		key := name
		if c.Op != Exact {
			key += ConditionSeparator + c.Op.String()
		}
		switch len(c.Values) {
		case 0:
			out[key] = nil
		case 1:
			out[key] = c.Values[0]
		default:
			out[key] = slices.Clone(c.Values)
		}
	}
	return out
}
