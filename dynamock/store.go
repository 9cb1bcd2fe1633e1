package dynamock

import (
	"bytes"
	"cmp"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
	"github.com/nisimpson/dynaschema"
	"go.uber.org/zap"
)

// ErrUnsupportedFilter is returned by LocalStore for queries carrying a
// filter expression, which it cannot evaluate.
var ErrUnsupportedFilter = errors.New("dynamock: filter expressions are not supported")

// LocalStore is a dynaschema.Store backed by an embedded badger database.
// It evaluates every comparison operator a compiled key condition can carry,
// on the primary key and on secondary indexes, so schemas can be exercised
// end to end without DynamoDB Local.
//
// Tables must be created before use, typically with Table.CreateTable.
type LocalStore struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ dynaschema.Store = (*LocalStore)(nil)

// LocalStoreOption configures a LocalStore.
type LocalStoreOption func(*localStoreOptions)

type localStoreOptions struct {
	path   string
	logger *zap.Logger
}

// WithPath persists the store in dir instead of memory.
func WithPath(dir string) LocalStoreOption {
	return func(o *localStoreOptions) { o.path = dir }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) LocalStoreOption {
	return func(o *localStoreOptions) { o.logger = l }
}

// NewLocalStore opens a store, in memory unless WithPath is given.
func NewLocalStore(opts ...LocalStoreOption) (*LocalStore, error) {
	o := localStoreOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	badgerOpts := badger.DefaultOptions(o.path).WithLogger(nil)
	if o.path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &LocalStore{db: db, logger: o.logger}, nil
}

// Close releases the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

func tableKey(name string) []byte {
	return []byte("table\x00" + name)
}

func itemPrefix(table string) []byte {
	return []byte("item\x00" + table + "\x00")
}

func itemKey(table string, key dynaschema.Item) ([]byte, error) {
	pk, ok := key[dynaschema.PartitionKeyName].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("dynamock: key attribute %s must be a string", dynaschema.PartitionKeyName)
	}
	sk, ok := key[dynaschema.SortKeyName].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("dynamock: key attribute %s must be a string", dynaschema.SortKeyName)
	}
	return append(itemPrefix(table), pk.Value+"\x00"+sk.Value...), nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (s *LocalStore) describe(txn *badger.Txn, name string) (*dynaschema.TableDescription, error) {
	entry, err := txn.Get(tableKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + name)}
	}
	if err != nil {
		return nil, err
	}
	var desc dynaschema.TableDescription
	if err := entry.Value(func(val []byte) error { return decode(val, &desc) }); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", name, err)
	}
	return &desc, nil
}

// CreateTable implements dynaschema.Store.
func (s *LocalStore) CreateTable(_ context.Context, desc *dynaschema.TableDescription) error {
	data, err := encode(desc)
	if err != nil {
		return fmt.Errorf("encode table %s: %w", desc.TableName, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(tableKey(desc.TableName))
		if err == nil {
			return &types.ResourceInUseException{Message: aws.String("table already exists: " + desc.TableName)}
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		s.logger.Debug("create table", zap.String("table", desc.TableName), zap.Int("indexes", len(desc.Indexes)))
		return txn.Set(tableKey(desc.TableName), data)
	})
}

// Update implements dynaschema.Store. It applies SET expressions of the
// form produced by dynaschema, creating the record when it does not exist.
func (s *LocalStore) Update(_ context.Context, req *dynaschema.UpdateRequest) error {
	key, err := itemKey(req.TableName, req.Key)
	if err != nil {
		return err
	}

	assignments, err := parseSet(req.UpdateExpression)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.describe(txn, req.TableName); err != nil {
			return err
		}

		item := dynaschema.Item{}
		entry, err := txn.Get(key)
		switch {
		case err == nil:
			if err := entry.Value(func(val []byte) error { return decode(val, &item) }); err != nil {
				return fmt.Errorf("decode item: %w", err)
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		for k, v := range req.Key {
			item[k] = v
		}
		for _, a := range assignments {
			column := a.column
			if strings.HasPrefix(column, "#") {
				name, ok := req.Names[column]
				if !ok {
					return fmt.Errorf("dynamock: undefined attribute name %s", column)
				}
				column = name
			}
			value, ok := req.Values[a.value]
			if !ok {
				return fmt.Errorf("dynamock: undefined attribute value %s", a.value)
			}
			item[column] = value
		}

		data, err := encode(item)
		if err != nil {
			return fmt.Errorf("encode item: %w", err)
		}
		return txn.Set(key, data)
	})
}

type assignment struct {
	column string
	value  string
}

func parseSet(expr string) ([]assignment, error) {
	if expr == "" {
		return nil, nil
	}
	body, ok := strings.CutPrefix(expr, "SET ")
	if !ok {
		return nil, fmt.Errorf("dynamock: unsupported update expression %q", expr)
	}
	var out []assignment
	for _, part := range strings.Split(body, ",") {
		lhs, rhs, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("dynamock: malformed assignment %q", part)
		}
		out = append(out, assignment{column: strings.TrimSpace(lhs), value: strings.TrimSpace(rhs)})
	}
	return out, nil
}

// Put writes a full record, replacing any existing one.
func (s *LocalStore) Put(tableName string, item dynaschema.Item) error {
	key, err := itemKey(tableName, item)
	if err != nil {
		return err
	}
	data, err := encode(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.describe(txn, tableName); err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// Items returns every record of the table in primary key order.
func (s *LocalStore) Items(tableName string) ([]dynaschema.Item, error) {
	var items []dynaschema.Item
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := s.describe(txn, tableName); err != nil {
			return err
		}
		var err error
		items, err = scan(txn, itemPrefix(tableName))
		return err
	})
	return items, err
}

func scan(txn *badger.Txn, prefix []byte) ([]dynaschema.Item, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var items []dynaschema.Item
	for it.Rewind(); it.Valid(); it.Next() {
		var item dynaschema.Item
		if err := it.Item().Value(func(val []byte) error { return decode(val, &item) }); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Query implements dynaschema.Store.
func (s *LocalStore) Query(_ context.Context, req *dynaschema.QueryRequest) (*dynaschema.QueryResponse, error) {
	if req.Filter.IsSet() {
		return nil, ErrUnsupportedFilter
	}

	var resp *dynaschema.QueryResponse
	err := s.db.View(func(txn *badger.Txn) error {
		desc, err := s.describe(txn, req.TableName)
		if err != nil {
			return err
		}
		pkName, skName, err := indexKeys(desc, req.IndexName)
		if err != nil {
			return err
		}
		if cond, ok := req.KeyConditions[pkName]; !ok || cond.ComparisonOperator != types.ComparisonOperatorEq {
			return fmt.Errorf("dynamock: query on %s: %w", pkName, dynaschema.ErrMissingPartitionValue)
		}

		items, err := scan(txn, itemPrefix(req.TableName))
		if err != nil {
			return err
		}

		var matched []dynaschema.Item
		for _, item := range items {
			if _, ok := item[pkName]; !ok {
				continue
			}
			if _, ok := item[skName]; !ok {
				continue
			}
			ok, err := matchAll(item, req.KeyConditions)
			if err != nil {
				return err
			}
			if ok {
				matched = append(matched, item)
			}
		}

		order := func(a, b dynaschema.Item) int {
			c := compareValues(a[skName], b[skName])
			if c == 0 {
				c = compareValues(a[dynaschema.PartitionKeyName], b[dynaschema.PartitionKeyName])
			}
			if c == 0 {
				c = compareValues(a[dynaschema.SortKeyName], b[dynaschema.SortKeyName])
			}
			if req.SortDescending {
				c = -c
			}
			return c
		}
		slices.SortFunc(matched, order)

		if req.ExclusiveStartKey != nil {
			i := 0
			for i < len(matched) && order(matched[i], req.ExclusiveStartKey) <= 0 {
				i++
			}
			matched = matched[i:]
		}

		resp = &dynaschema.QueryResponse{}
		if req.Limit > 0 && len(matched) > req.Limit {
			matched = matched[:req.Limit]
			last := matched[len(matched)-1]
			resp.LastEvaluatedKey = dynaschema.Item{
				dynaschema.PartitionKeyName: last[dynaschema.PartitionKeyName],
				dynaschema.SortKeyName:      last[dynaschema.SortKeyName],
				pkName:                      last[pkName],
				skName:                      last[skName],
			}
		}
		resp.Items = matched
		resp.Count = len(matched)
		resp.ScannedCount = len(matched)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("query",
		zap.String("table", req.TableName),
		zap.String("index", req.IndexName),
		zap.Int("count", resp.Count))
	return resp, nil
}

func indexKeys(desc *dynaschema.TableDescription, index string) (string, string, error) {
	if index == "" {
		return dynaschema.PartitionKeyName, dynaschema.SortKeyName, nil
	}
	for _, idx := range desc.Indexes {
		if idx.IndexName != index {
			continue
		}
		var pk, sk string
		for _, k := range idx.KeySchema {
			switch types.KeyType(k.KeyType) {
			case types.KeyTypeHash:
				pk = k.AttributeName
			case types.KeyTypeRange:
				sk = k.AttributeName
			}
		}
		return pk, sk, nil
	}
	return "", "", &types.ResourceNotFoundException{Message: aws.String("index not found: " + index)}
}

func matchAll(item dynaschema.Item, conds map[string]types.Condition) (bool, error) {
	for name, cond := range conds {
		ok, err := match(item[name], cond)
		if err != nil {
			return false, fmt.Errorf("condition on %s: %w", name, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// match evaluates one condition against an attribute, which is nil when
// the record does not carry it.
func match(av types.AttributeValue, cond types.Condition) (bool, error) {
	operands := cond.AttributeValueList
	arity := func(n int) error {
		if len(operands) != n {
			return fmt.Errorf("%w: %s with %d values", dynaschema.ErrInvalidCondition, cond.ComparisonOperator, len(operands))
		}
		return nil
	}
	orderable := func(n int) bool {
		if av == nil {
			return false
		}
		for _, op := range operands[:n] {
			if _, ok := ordered(av, op); !ok {
				return false
			}
		}
		return true
	}

	switch cond.ComparisonOperator {
	case types.ComparisonOperatorNull:
		return av == nil, arity(0)
	case types.ComparisonOperatorNotNull:
		return av != nil, arity(0)
	case types.ComparisonOperatorIn:
		if len(operands) == 0 {
			return false, arity(1)
		}
		for _, op := range operands {
			if c, ok := ordered(av, op); ok && c == 0 {
				return true, nil
			}
		}
		return false, nil
	case types.ComparisonOperatorBetween:
		if err := arity(2); err != nil {
			return false, err
		}
		if !orderable(2) {
			return false, nil
		}
		lo, _ := ordered(av, operands[0])
		hi, _ := ordered(av, operands[1])
		return lo >= 0 && hi <= 0, nil
	}

	if err := arity(1); err != nil {
		return false, err
	}
	operand := operands[0]

	switch cond.ComparisonOperator {
	case types.ComparisonOperatorEq:
		c, ok := ordered(av, operand)
		return ok && c == 0, nil
	case types.ComparisonOperatorNe:
		c, ok := ordered(av, operand)
		return !ok || c != 0, nil
	case types.ComparisonOperatorLt:
		c, _ := ordered(av, operand)
		return orderable(1) && c < 0, nil
	case types.ComparisonOperatorLe:
		c, _ := ordered(av, operand)
		return orderable(1) && c <= 0, nil
	case types.ComparisonOperatorGt:
		c, _ := ordered(av, operand)
		return orderable(1) && c > 0, nil
	case types.ComparisonOperatorGe:
		c, _ := ordered(av, operand)
		return orderable(1) && c >= 0, nil
	case types.ComparisonOperatorBeginsWith:
		s, ok := av.(*types.AttributeValueMemberS)
		prefix, pok := operand.(*types.AttributeValueMemberS)
		return ok && pok && strings.HasPrefix(s.Value, prefix.Value), nil
	case types.ComparisonOperatorContains:
		return contains(av, operand), nil
	case types.ComparisonOperatorNotContains:
		return !contains(av, operand), nil
	}
	return false, fmt.Errorf("%w: %s", dynaschema.ErrInvalidOperator, cond.ComparisonOperator)
}

// ordered compares two scalars of the same type. Numbers compare by value.
func ordered(a, b types.AttributeValue) (int, bool) {
	switch x := a.(type) {
	case *types.AttributeValueMemberS:
		if y, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(x.Value, y.Value), true
		}
	case *types.AttributeValueMemberN:
		if y, ok := b.(*types.AttributeValueMemberN); ok {
			xf, xok := new(big.Float).SetString(x.Value)
			yf, yok := new(big.Float).SetString(y.Value)
			if xok && yok {
				return xf.Cmp(yf), true
			}
		}
	case *types.AttributeValueMemberB:
		if y, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(x.Value, y.Value), true
		}
	case *types.AttributeValueMemberBOOL:
		if y, ok := b.(*types.AttributeValueMemberBOOL); ok && x.Value == y.Value {
			return 0, true
		}
	}
	return 0, false
}

// compareValues orders sort key values; missing values sort first.
func compareValues(a, b types.AttributeValue) int {
	if c, ok := ordered(a, b); ok {
		return c
	}
	return cmp.Compare(valueString(a), valueString(b))
}

func valueString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func contains(av, operand types.AttributeValue) bool {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		sub, ok := operand.(*types.AttributeValueMemberS)
		return ok && strings.Contains(v.Value, sub.Value)
	case *types.AttributeValueMemberSS:
		sub, ok := operand.(*types.AttributeValueMemberS)
		return ok && slices.Contains(v.Value, sub.Value)
	case *types.AttributeValueMemberNS:
		sub, ok := operand.(*types.AttributeValueMemberN)
		return ok && slices.Contains(v.Value, sub.Value)
	case *types.AttributeValueMemberL:
		for _, elem := range v.Value {
			if c, ok := ordered(elem, operand); ok && c == 0 {
				return true
			}
		}
	}
	return false
}
