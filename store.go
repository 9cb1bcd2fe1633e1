package dynaschema

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Store executes requests against the physical table.
type Store interface {
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)
	Update(ctx context.Context, req *UpdateRequest) error
	CreateTable(ctx context.Context, desc *TableDescription) error
}

// QueryRequest is a key-condition query.
type QueryRequest struct {
	TableName         string                      // Physical table name
	IndexName         string                      // Secondary index, or "" for the primary index
	KeyConditions     map[string]types.Condition  // Conditions keyed by physical column
	Filter            expression.ConditionBuilder // Optional filter on non-key attributes
	Limit             int                         // Maximum number of items to evaluate
	ExclusiveStartKey Item                        // Key to continue after
	SortDescending    bool                        // If true, reads the sort axis backward
}

// QueryResponse is the raw result of a query.
type QueryResponse struct {
	Items            []Item
	Count            int
	ScannedCount     int
	LastEvaluatedKey Item
}

// UpdateRequest writes attributes to the record with the given key,
// creating it if it does not exist.
type UpdateRequest struct {
	TableName        string
	Key              Item
	UpdateExpression string
	Names            map[string]string
	Values           map[string]types.AttributeValue
}

// DynamoDBClient is the subset of the dynamodb client used by ClientStore.
type DynamoDBClient interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// ClientStore is a Store backed by the AWS SDK client. Errors returned by
// the client are passed through unchanged.
type ClientStore struct {
	Client DynamoDBClient
	logger *zap.Logger
}

// NewClientStore wraps client. A nil logger discards output.
func NewClientStore(client DynamoDBClient, logger *zap.Logger) *ClientStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientStore{Client: client, logger: logger}
}

// Query implements Store.
func (s *ClientStore) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	input, err := s.MarshalQuery(req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("query",
		zap.String("table", req.TableName),
		zap.String("index", req.IndexName),
		zap.Stringp("key_condition", input.KeyConditionExpression))

	out, err := s.Client.Query(ctx, input)
	if err != nil {
		s.logger.Error("query failed", zap.String("table", req.TableName), zap.Error(err))
		return nil, err
	}

	return &QueryResponse{
		Items:            out.Items,
		Count:            int(out.Count),
		ScannedCount:     int(out.ScannedCount),
		LastEvaluatedKey: out.LastEvaluatedKey,
	}, nil
}

// MarshalQuery converts req into a dynamodb query. Conditions the key
// condition grammar supports (EQ, LE, LT, GE, GT, BEGINS_WITH, BETWEEN)
// form the key condition; the rest join the request's filter.
func (s *ClientStore) MarshalQuery(req *QueryRequest) (*dynamodb.QueryInput, error) {
	var (
		keyCondition expression.KeyConditionBuilder
		filter       = req.Filter
	)

	for _, name := range slices.Sorted(maps.Keys(req.KeyConditions)) {
		cond := req.KeyConditions[name]
		values, err := plainValues(cond.AttributeValueList)
		if err != nil {
			return nil, fmt.Errorf("condition on %s: %w", name, err)
		}

		if kc, ok := keyConditionOf(name, cond.ComparisonOperator, values); ok {
			if keyCondition.IsSet() {
				keyCondition = keyCondition.And(kc)
			} else {
				keyCondition = kc
			}
			continue
		}

		fc, err := filterConditionOf(name, cond.ComparisonOperator, values)
		if err != nil {
			return nil, err
		}
		if filter.IsSet() {
			filter = filter.And(fc)
		} else {
			filter = fc
		}
	}

	if !keyCondition.IsSet() {
		return nil, ErrMissingPartitionValue
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCondition)
	if filter.IsSet() {
		builder = builder.WithFilter(filter)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(req.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!req.SortDescending),
	}

	if req.IndexName != "" {
		input.IndexName = aws.String(req.IndexName)
	}
	if filter.IsSet() {
		input.FilterExpression = expr.Filter()
	}
	if req.Limit > 0 {
		input.Limit = aws.Int32(int32(req.Limit))
	}
	if req.ExclusiveStartKey != nil {
		input.ExclusiveStartKey = req.ExclusiveStartKey
	}

	return input, nil
}

func keyConditionOf(name string, op types.ComparisonOperator, values []any) (expression.KeyConditionBuilder, bool) {
	key := expression.Key(name)
	switch {
	case op == types.ComparisonOperatorEq && len(values) == 1:
		return key.Equal(expression.Value(values[0])), true
	case op == types.ComparisonOperatorLe && len(values) == 1:
		return key.LessThanEqual(expression.Value(values[0])), true
	case op == types.ComparisonOperatorLt && len(values) == 1:
		return key.LessThan(expression.Value(values[0])), true
	case op == types.ComparisonOperatorGe && len(values) == 1:
		return key.GreaterThanEqual(expression.Value(values[0])), true
	case op == types.ComparisonOperatorGt && len(values) == 1:
		return key.GreaterThan(expression.Value(values[0])), true
	case op == types.ComparisonOperatorBetween && len(values) == 2:
		return key.Between(expression.Value(values[0]), expression.Value(values[1])), true
	case op == types.ComparisonOperatorBeginsWith && len(values) == 1:
		if prefix, ok := values[0].(string); ok {
			return key.BeginsWith(prefix), true
		}
	}
	return expression.KeyConditionBuilder{}, false
}

func filterConditionOf(name string, op types.ComparisonOperator, values []any) (expression.ConditionBuilder, error) {
	attr := expression.Name(name)
	arity := func(n int) error {
		if len(values) != n {
			return fmt.Errorf("%w: %s %s with %d values", ErrInvalidCondition, name, op, len(values))
		}
		return nil
	}

	switch op {
	case types.ComparisonOperatorNe:
		if err := arity(1); err != nil {
			return expression.ConditionBuilder{}, err
		}
		return attr.NotEqual(expression.Value(values[0])), nil
	case types.ComparisonOperatorNull:
		return expression.AttributeNotExists(attr), nil
	case types.ComparisonOperatorNotNull:
		return expression.AttributeExists(attr), nil
	case types.ComparisonOperatorContains, types.ComparisonOperatorNotContains:
		if err := arity(1); err != nil {
			return expression.ConditionBuilder{}, err
		}
		cond := attr.Contains(fmt.Sprint(values[0]))
		if op == types.ComparisonOperatorNotContains {
			cond = expression.Not(cond)
		}
		return cond, nil
	case types.ComparisonOperatorIn:
		if len(values) == 0 {
			return expression.ConditionBuilder{}, arity(1)
		}
		rest := make([]expression.OperandBuilder, 0, len(values)-1)
		for _, v := range values[1:] {
			rest = append(rest, expression.Value(v))
		}
		return attr.In(expression.Value(values[0]), rest...), nil
	case types.ComparisonOperatorBeginsWith:
		if err := arity(1); err != nil {
			return expression.ConditionBuilder{}, err
		}
		return attr.BeginsWith(fmt.Sprint(values[0])), nil
	}
	return expression.ConditionBuilder{}, fmt.Errorf("%w: %s on %s", ErrInvalidOperator, op, name)
}

// plainValues unwraps attribute values so the expression builder can
// re-encode them.
func plainValues(avs []types.AttributeValue) ([]any, error) {
	out := make([]any, len(avs))
	for i, av := range avs {
		if err := attributevalue.Unmarshal(av, &out[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal condition value: %w", err)
		}
	}
	return out, nil
}

// Update implements Store.
func (s *ClientStore) Update(ctx context.Context, req *UpdateRequest) error {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(req.TableName),
		Key:       req.Key,
	}
	if req.UpdateExpression != "" {
		input.UpdateExpression = aws.String(req.UpdateExpression)
	}
	if len(req.Names) > 0 {
		input.ExpressionAttributeNames = req.Names
	}
	if len(req.Values) > 0 {
		input.ExpressionAttributeValues = req.Values
	}

	s.logger.Debug("update",
		zap.String("table", req.TableName),
		zap.String("update_expression", req.UpdateExpression))

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		s.logger.Error("update failed", zap.String("table", req.TableName), zap.Error(err))
		return err
	}
	return nil
}

// CreateTable implements Store.
func (s *ClientStore) CreateTable(ctx context.Context, desc *TableDescription) error {
	s.logger.Info("creating table", zap.String("table", desc.TableName), zap.Int("indexes", len(desc.Indexes)))
	if _, err := s.Client.CreateTable(ctx, desc.CreateTableInput()); err != nil {
		s.logger.Error("create table failed", zap.String("table", desc.TableName), zap.Error(err))
		return err
	}
	return nil
}
