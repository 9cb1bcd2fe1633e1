package dynamock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nisimpson/dynaschema"
	"gopkg.in/yaml.v3"
)

// Fixture is one record of seed data: the entity type name and its logical
// field values.
type Fixture struct {
	Type       string         `json:"type" yaml:"type"`
	Attributes map[string]any `json:"attributes" yaml:"attributes"`
}

// Seeder writes fixtures through a table's store.
type Seeder struct {
	table *dynaschema.Table
}

// NewSeeder creates a seeder for the entities registered on table.
func NewSeeder(table *dynaschema.Table) *Seeder {
	return &Seeder{table: table}
}

// SeedFromJSON reads a JSON array of fixtures and saves them.
// Returns the number of items saved and any errors generated.
func (s *Seeder) SeedFromJSON(ctx context.Context, r io.Reader) (int, error) {
	var fixtures []Fixture
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&fixtures); err != nil {
		return 0, fmt.Errorf("failed to parse JSON fixtures: %w", err)
	}
	return s.SeedFixtures(ctx, fixtures)
}

// SeedFromYAML reads a YAML sequence of fixtures and saves them.
func (s *Seeder) SeedFromYAML(ctx context.Context, r io.Reader) (int, error) {
	var fixtures []Fixture
	if err := yaml.NewDecoder(r).Decode(&fixtures); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to parse YAML fixtures: %w", err)
	}
	return s.SeedFixtures(ctx, fixtures)
}

// SeedFixtures converts every fixture before saving any of them, so a
// malformed fixture writes nothing.
func (s *Seeder) SeedFixtures(ctx context.Context, fixtures []Fixture) (int, error) {
	instances, err := s.Instances(fixtures)
	if err != nil {
		return 0, err
	}
	return s.SeedInstances(ctx, instances...)
}

// SeedInstances saves instances in order and stops at the first failure.
func (s *Seeder) SeedInstances(ctx context.Context, instances ...*dynaschema.Instance) (int, error) {
	count := 0
	for _, inst := range instances {
		if err := inst.Save(ctx); err != nil {
			return count, fmt.Errorf("failed to seed %s: %w", inst.Type.Name, err)
		}
		count++
	}
	return count, nil
}

// Instances converts fixtures into instances. Attribute values are rendered
// as text and run through the field parsers, so fixtures may spell numbers
// and dates either as scalars or as strings.
func (s *Seeder) Instances(fixtures []Fixture) ([]*dynaschema.Instance, error) {
	out := make([]*dynaschema.Instance, 0, len(fixtures))
	for i, fx := range fixtures {
		if fx.Type == "" {
			return nil, fmt.Errorf("fixture %d: missing required 'type' field", i)
		}
		et, ok := s.table.Entity(fx.Type)
		if !ok {
			return nil, fmt.Errorf("fixture %d: unknown entity type %q", i, fx.Type)
		}

		values := make(map[string]any, len(fx.Attributes))
		for name, raw := range fx.Attributes {
			v, err := et.ParseValue(name, fixtureString(raw))
			if err != nil {
				return nil, fmt.Errorf("fixture %d: %s.%s: %w", i, fx.Type, name, err)
			}
			values[name] = v
		}

		inst, err := et.New(values)
		if err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func fixtureString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Equal(x.Truncate(24 * time.Hour)) {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
