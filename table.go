package dynaschema

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Table is the catalog of entity types sharing one physical table.
//
// Entities are defined during startup, before any query traffic; defining
// entities concurrently with queries is not supported. Call Freeze once the
// schema is complete to cache the index ordinals and reject later changes.
type Table struct {
	Name          string        // Physical table name
	PaginationTTL time.Duration // Lifetime of cursors stored by TablePaginator

	config    Config
	logger    *zap.Logger
	lenient   bool
	paginator Paginator

	entities map[string]*EntityType
	frozen   bool
	ordinals map[string]int

	mu    sync.Mutex
	store Store
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithRegion sets the region used when the table creates its own store.
func WithRegion(region string) TableOption {
	return func(t *Table) { t.config.Region = region }
}

// WithConfig sets the client configuration used when the table creates its own store.
func WithConfig(cfg Config) TableOption {
	return func(t *Table) { t.config = cfg }
}

// WithStore injects the store; the table then never creates a client.
func WithStore(s Store) TableOption {
	return func(t *Table) { t.store = s }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) TableOption {
	return func(t *Table) { t.logger = l }
}

// WithLenientDecode disables the type token check when decoding keys.
func WithLenientDecode() TableOption {
	return func(t *Table) { t.lenient = true }
}

// WithPaginator sets how page cursors are produced. The default encodes the
// last evaluated key into the cursor itself.
func WithPaginator(p Paginator) TableOption {
	return func(t *Table) { t.paginator = p }
}

// NewTable creates an empty catalog for the named table.
func NewTable(name string, opts ...TableOption) *Table {
	t := &Table{
		Name:          name,
		PaginationTTL: 24 * time.Hour,
		config:        Config{TableName: name},
		entities:      make(map[string]*EntityType),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.config.validate()
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.paginator == nil {
		t.paginator = TokenPaginator{}
	}
	return t
}

// Define builds an entity type from decls and registers it under name.
// Defining a name again replaces the previous entity type.
func (t *Table) Define(name string, decls ...Declaration) (*EntityType, error) {
	if t.frozen {
		return nil, &SchemaError{Entity: name, Err: ErrTableFrozen}
	}
	et, err := t.build(name, decls)
	if err != nil {
		return nil, err
	}
	if _, ok := t.entities[name]; ok {
		t.logger.Debug("replacing entity definition", zap.String("table", t.Name), zap.String("entity", name))
	}
	t.entities[name] = et
	return et, nil
}

// MustDefine is like Define but panics on error. It is intended for
// package-level schema declarations.
func (t *Table) MustDefine(name string, decls ...Declaration) *EntityType {
	et, err := t.Define(name, decls...)
	if err != nil {
		panic(err)
	}
	return et
}

// Entity looks up a registered entity type.
func (t *Table) Entity(name string) (*EntityType, bool) {
	et, ok := t.entities[name]
	return et, ok
}

// Entities returns the registered entity types ordered by name.
func (t *Table) Entities() []*EntityType {
	out := make([]*EntityType, 0, len(t.entities))
	for _, name := range slices.Sorted(maps.Keys(t.entities)) {
		out = append(out, t.entities[name])
	}
	return out
}

// Freeze caches the index ordinals and rejects further definitions.
func (t *Table) Freeze() {
	if t.frozen {
		return
	}
	t.ordinals = t.computeOrdinals()
	t.frozen = true
}

// Frozen reports whether Freeze has been called.
func (t *Table) Frozen() bool { return t.frozen }

func (t *Table) computeOrdinals() map[string]int {
	seen := make(map[string]struct{})
	for _, et := range t.entities {
		for _, idx := range et.indexes {
			seen[idx.Name] = struct{}{}
		}
	}
	ordinals := make(map[string]int, len(seen))
	for i, name := range slices.Sorted(maps.Keys(seen)) {
		ordinals[name] = i
	}
	return ordinals
}

// Indexes returns the secondary index names of every registered entity in
// ordinal order.
func (t *Table) Indexes() []string {
	ordinals := t.ordinals
	if !t.frozen {
		ordinals = t.computeOrdinals()
	}
	names := make([]string, len(ordinals))
	for name, i := range ordinals {
		names[i] = name
	}
	return names
}

// OrdinalOf returns the slot of a secondary index: its position among the
// sorted, de-duplicated index names of all registered entities. The index
// must be declared on an entity registered to this table.
func (t *Table) OrdinalOf(index *Field) (int, error) {
	if index == nil || index.Kind != KindSecondaryIndex {
		return 0, fmt.Errorf("%w: not a secondary index", ErrIndexNotRegistered)
	}
	et := index.entity
	if et == nil || t.entities[et.Name] != et {
		owner := "<nil>"
		if et != nil {
			owner = et.Name
		}
		return 0, fmt.Errorf("%w: %s on %s in table %s", ErrIndexNotRegistered, index.Name, owner, t.Name)
	}
	ordinals := t.ordinals
	if !t.frozen {
		ordinals = t.computeOrdinals()
	}
	return ordinals[index.Name], nil
}

// Store returns the table's store, creating an SDK-backed one from the
// table's configuration on first use.
func (t *Table) Store(ctx context.Context) (Store, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store != nil {
		return t.store, nil
	}

	client, err := t.config.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for table %s: %w", t.Name, err)
	}
	t.logger.Debug("created store client", zap.String("table", t.Name), zap.String("region", t.config.Region))
	t.store = NewClientStore(client, t.logger)
	return t.store, nil
}

// Logger returns the table's logger.
func (t *Table) Logger() *zap.Logger { return t.logger }
