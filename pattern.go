package dynaschema

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"
)

// Cardinality describes how a pattern's query response is shaped.
type Cardinality int

const (
	CardinalityOne  Cardinality = iota + 1 // Exactly one record
	CardinalityMany                        // An ordered collection
	CardinalityRaw                         // The undecoded response
)

func (c Cardinality) String() string {
	switch c {
	case CardinalityOne:
		return "one"
	case CardinalityMany:
		return "many"
	case CardinalityRaw:
		return "raw"
	}
	return fmt.Sprintf("Cardinality(%d)", int(c))
}

// AccessPattern is a named query shape bound to one entity type, its home.
//
// Targets name the key fields or the secondary index the pattern reads
// through. A secondary index target supplies both the partition and sort
// fields and cannot be combined with other targets.
type AccessPattern struct {
	Name        string
	Cardinality Cardinality
	Targets     []string

	entity    *EntityType
	partition *Field
	sort      *Field
	index     *Field
}

func (*AccessPattern) declaration() {}

// One declares a pattern that expects a single record.
func One(name string, targets ...string) *AccessPattern {
	return &AccessPattern{Name: name, Cardinality: CardinalityOne, Targets: targets}
}

// Many declares a pattern that returns a collection.
func Many(name string, targets ...string) *AccessPattern {
	return &AccessPattern{Name: name, Cardinality: CardinalityMany, Targets: targets}
}

// Raw declares a pattern that returns the undecoded store response.
func Raw(name string, targets ...string) *AccessPattern {
	return &AccessPattern{Name: name, Cardinality: CardinalityRaw, Targets: targets}
}

type binding struct {
	partition *Field
	sort      *Field
	index     *Field
}

func (et *EntityType) resolve(p *AccessPattern) (binding, error) {
	var b binding
	for _, name := range p.Targets {
		f, ok := et.fields[name]
		if !ok {
			return b, newFieldNotFound(et.Name, name)
		}
		switch f.Kind {
		case KindPartitionKey, KindForeignKey:
			if b.partition != nil {
				return b, fmt.Errorf("%w: %s is a second partition target", ErrInvalidTarget, name)
			}
			b.partition = f
		case KindSortKey, KindForeignSortKey:
			if b.sort != nil {
				return b, fmt.Errorf("%w: %s is a second sort target", ErrInvalidTarget, name)
			}
			b.sort = f
		case KindSecondaryIndex:
			if len(p.Targets) > 1 {
				return b, fmt.Errorf("%w: index %s cannot be combined with other targets", ErrInvalidTarget, name)
			}
			b.index = f
			b.partition = et.fields[f.PartitionField]
			b.sort = et.fields[f.SortField]
		case KindAttribute:
			return b, fmt.Errorf("%w: attribute %s", ErrInvalidTarget, name)
		}
	}
	if b.partition == nil {
		return b, ErrMissingPartition
	}
	return b, nil
}

func (p *AccessPattern) bind(et *EntityType, b binding) {
	p.entity = et
	p.partition = b.partition
	p.sort = b.sort
	p.index = b.index
}

// Entity returns the pattern's home entity, or nil before registration.
func (p *AccessPattern) Entity() *EntityType { return p.entity }

// IndexName returns the secondary index the pattern reads, or "" for the primary index.
func (p *AccessPattern) IndexName() string {
	if p.index == nil {
		return ""
	}
	return p.index.Name
}

func (p *AccessPattern) bound() error {
	if p.entity == nil {
		return fmt.Errorf("access pattern %s is not bound to an entity", p.Name)
	}
	return nil
}

// Keys returns the physical partition and sort columns the pattern reads.
// Sort is "" when the pattern carries no sort field.
func (p *AccessPattern) Keys() (partition, sort string, err error) {
	if err := p.bound(); err != nil {
		return "", "", err
	}
	if partition, err = p.entity.physicalKeyName(p.partition, p.index); err != nil {
		return "", "", err
	}
	if p.sort != nil {
		if sort, err = p.entity.physicalKeyName(p.sort, p.index); err != nil {
			return "", "", err
		}
	}
	return partition, sort, nil
}

// Compile builds the key conditions for a call with positional args and
// keyword conditions. args[0] is the partition value and args[1] the sort
// value. Conditions on fields other than the pattern's partition and sort
// fields are dropped.
func (p *AccessPattern) Compile(args []any, conds ...Condition) (KeyConditions, error) {
	pk, sk, err := p.Keys()
	if err != nil {
		return nil, err
	}

	home := p.entity
	kc := make(KeyConditions)

	if len(args) > 0 {
		v, err := home.keyString(p.partition, args[0])
		if err != nil {
			return nil, err
		}
		kc[pk] = KeyCondition{Op: Exact, Values: []string{v}}
	}

	switch {
	case p.sort == nil && p.Cardinality == CardinalityOne:
		kc[SortKeyName] = KeyCondition{Op: Exact, Values: []string{SentinelSortValue}}
	case p.sort == nil && p.Cardinality == CardinalityMany && home.sort != nil:
		prefix := home.sort.prefixEntity().KeyPrefix()
		kc[SortKeyName] = KeyCondition{Op: BeginsWith, Values: []string{prefix}}
	case p.sort != nil && len(args) > 1:
		v, err := home.keyString(p.sort, args[1])
		if err != nil {
			return nil, err
		}
		kc[sk] = KeyCondition{Op: Exact, Values: []string{v}}
	case p.index != nil:
		kc[sk] = KeyCondition{Op: BeginsWith, Values: []string{home.KeyPrefix()}}
	}

	for _, c := range conds {
		if err := c.validate(); err != nil {
			return nil, err
		}

		var (
			column string
			field  *Field
		)
		switch {
		case c.Field == p.partition.Name:
			column, field = pk, p.partition
		case p.sort != nil && c.Field == p.sort.Name:
			column, field = sk, p.sort
		default:
			home.table.logger.Debug("dropping condition on non-key field",
				zap.String("pattern", p.Name),
				zap.String("field", c.Field),
				zap.Stringer("op", c.Op))
			continue
		}

		values := make([]string, len(c.Values))
		for i, raw := range c.Values {
			if values[i], err = home.keyString(field, raw); err != nil {
				return nil, err
			}
		}
		kc[column] = KeyCondition{Op: c.Op, Values: values}
	}

	return kc, nil
}

// Query starts a call of the pattern with positional args.
func (p *AccessPattern) Query(args ...any) *Query {
	return &Query{Pattern: p, Args: args}
}

// Get runs a single-record call.
func (p *AccessPattern) Get(ctx context.Context, args ...any) (*Instance, error) {
	return p.Query(args...).Get(ctx)
}

// List runs a collection call.
func (p *AccessPattern) List(ctx context.Context, args ...any) ([]*Instance, error) {
	return p.Query(args...).List(ctx)
}

// Raw runs a call and returns the undecoded response.
func (p *AccessPattern) Raw(ctx context.Context, args ...any) (*QueryResponse, error) {
	return p.Query(args...).Raw(ctx)
}

// Query is a single call of an access pattern.
type Query struct {
	Pattern        *AccessPattern              // The pattern being called
	Args           []any                       // Partition value, then sort value
	Conditions     []Condition                 // Keyword conditions on the key fields
	Filter         expression.ConditionBuilder // Optional filter on non-key attributes
	Limit          int                         // Maximum number of items to evaluate
	Cursor         string                      // Page cursor from a previous call
	SortDescending bool                        // If true, reads the sort axis backward
}

// QueryOption configures a Query.
type QueryOption func(*Query)

// WithLimit caps the number of items evaluated.
func WithLimit(n int) QueryOption { return func(q *Query) { q.Limit = n } }

// WithCursor continues from a page cursor.
func WithCursor(cursor string) QueryOption { return func(q *Query) { q.Cursor = cursor } }

// WithDescending reads the sort axis backward.
func WithDescending() QueryOption { return func(q *Query) { q.SortDescending = true } }

// WithFilter adds a filter on non-key attributes.
func WithFilter(cond expression.ConditionBuilder) QueryOption {
	return func(q *Query) { q.Filter = cond }
}

// WithConditions adds keyword conditions.
func WithConditions(conds ...Condition) QueryOption {
	return func(q *Query) { q.Conditions = append(q.Conditions, conds...) }
}

// Where adds a keyword condition.
func (q *Query) Where(field string, op Operator, values ...any) *Query {
	q.Conditions = append(q.Conditions, Where(field, op, values...))
	return q
}

// Apply applies opts to the query.
func (q *Query) Apply(opts ...QueryOption) *Query {
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Compile returns the query's key conditions.
func (q *Query) Compile() (KeyConditions, error) {
	return q.Pattern.Compile(q.Args, q.Conditions...)
}

// Request builds the store request for the query.
func (q *Query) Request(ctx context.Context) (*QueryRequest, error) {
	kc, err := q.Compile()
	if err != nil {
		return nil, err
	}
	pk, _, err := q.Pattern.Keys()
	if err != nil {
		return nil, err
	}
	if _, ok := kc[pk]; !ok {
		return nil, fmt.Errorf("%s: %w", q.Pattern.Name, ErrMissingPartitionValue)
	}

	table := q.Pattern.entity.table
	req := &QueryRequest{
		TableName:      table.Name,
		IndexName:      q.Pattern.IndexName(),
		KeyConditions:  kc.Store(),
		Filter:         q.Filter,
		Limit:          q.Limit,
		SortDescending: q.SortDescending,
	}
	if q.Cursor != "" {
		if req.ExclusiveStartKey, err = table.paginator.StartKey(ctx, q.Cursor); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Raw runs the query and returns the undecoded response.
func (q *Query) Raw(ctx context.Context) (*QueryResponse, error) {
	req, err := q.Request(ctx)
	if err != nil {
		return nil, err
	}
	store, err := q.Pattern.entity.table.Store(ctx)
	if err != nil {
		return nil, err
	}
	return store.Query(ctx, req)
}

// Get runs the query and decodes its first record. It returns an error
// wrapping ErrItemNotFound when nothing matches.
func (q *Query) Get(ctx context.Context) (*Instance, error) {
	resp, err := q.Raw(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", q.Pattern.Name, ErrItemNotFound)
	}
	return q.Pattern.entity.Decode(resp.Items[0])
}

// List runs the query and decodes every record in order. No matches is an
// empty list, not an error.
func (q *Query) List(ctx context.Context) ([]*Instance, error) {
	resp, err := q.Raw(ctx)
	if err != nil {
		return nil, err
	}
	return q.Pattern.entity.DecodeAll(resp.Items)
}

// Page is one page of a collection call.
type Page struct {
	Items  []*Instance // Decoded records
	Cursor string      // Cursor for the next page; empty on the last page
}

// Page runs the query and returns the decoded records with a cursor for
// the next page.
func (q *Query) Page(ctx context.Context) (*Page, error) {
	resp, err := q.Raw(ctx)
	if err != nil {
		return nil, err
	}
	items, err := q.Pattern.entity.DecodeAll(resp.Items)
	if err != nil {
		return nil, err
	}
	cursor, err := q.Pattern.entity.table.paginator.PageCursor(ctx, resp.LastEvaluatedKey)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Cursor: cursor}, nil
}

// Result is the outcome of Do, shaped by the pattern's cardinality.
type Result struct {
	One      *Instance      // Set for CardinalityOne
	Many     []*Instance    // Set for CardinalityMany
	Response *QueryResponse // The raw response, always set
}

// Do runs the query and shapes the response by the pattern's cardinality.
func (q *Query) Do(ctx context.Context) (*Result, error) {
	resp, err := q.Raw(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Response: resp}
	et := q.Pattern.entity
	switch q.Pattern.Cardinality {
	case CardinalityOne:
		if len(resp.Items) == 0 {
			return nil, fmt.Errorf("%s: %w", q.Pattern.Name, ErrItemNotFound)
		}
		res.One, err = et.Decode(resp.Items[0])
	case CardinalityMany:
		res.Many, err = et.DecodeAll(resp.Items)
	case CardinalityRaw:
	default:
		err = errors.New("unknown cardinality " + q.Pattern.Cardinality.String())
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
