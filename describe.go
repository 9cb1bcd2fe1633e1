package dynaschema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"
)

// TableDescription is the physical layout derived from a table's catalog.
type TableDescription struct {
	TableName            string                `yaml:"tableName" json:"tableName"`
	BillingMode          string                `yaml:"billingMode" json:"billingMode"`
	KeySchema            []KeyElement          `yaml:"keySchema" json:"keySchema"`
	AttributeDefinitions []AttributeDefinition `yaml:"attributeDefinitions" json:"attributeDefinitions"`
	Indexes              []IndexDescription    `yaml:"globalSecondaryIndexes,omitempty" json:"globalSecondaryIndexes,omitempty"`
	Entities             []EntityDescription   `yaml:"entities,omitempty" json:"entities,omitempty"`
}

type KeyElement struct {
	AttributeName string `yaml:"attributeName" json:"attributeName"`
	KeyType       string `yaml:"keyType" json:"keyType"`
}

type AttributeDefinition struct {
	AttributeName string `yaml:"attributeName" json:"attributeName"`
	AttributeType string `yaml:"attributeType" json:"attributeType"`
}

type IndexDescription struct {
	IndexName      string       `yaml:"indexName" json:"indexName"`
	Ordinal        int          `yaml:"ordinal" json:"ordinal"`
	KeySchema      []KeyElement `yaml:"keySchema" json:"keySchema"`
	ProjectionType string       `yaml:"projectionType" json:"projectionType"`
}

// EntityDescription documents how one entity maps onto the table.
type EntityDescription struct {
	Name     string               `yaml:"name" json:"name"`
	Fields   []FieldDescription   `yaml:"fields" json:"fields"`
	Patterns []PatternDescription `yaml:"accessPatterns,omitempty" json:"accessPatterns,omitempty"`
}

type FieldDescription struct {
	Name      string `yaml:"name" json:"name"`
	Kind      string `yaml:"kind" json:"kind"`
	Attribute string `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Ref       string `yaml:"ref,omitempty" json:"ref,omitempty"`
}

type PatternDescription struct {
	Name         string `yaml:"name" json:"name"`
	Cardinality  string `yaml:"cardinality" json:"cardinality"`
	Index        string `yaml:"index,omitempty" json:"index,omitempty"`
	PartitionKey string `yaml:"partitionKey" json:"partitionKey"`
	SortKey      string `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
}

// Describe derives the table layout: pk/sk as the primary key and one
// index per ordinal keyed on pk<i>/sk<i>, all string typed, projecting all
// attributes, billed on demand.
func (t *Table) Describe() (*TableDescription, error) {
	d := &TableDescription{
		TableName:   t.Name,
		BillingMode: string(types.BillingModePayPerRequest),
		KeySchema: []KeyElement{
			{AttributeName: PartitionKeyName, KeyType: string(types.KeyTypeHash)},
			{AttributeName: SortKeyName, KeyType: string(types.KeyTypeRange)},
		},
		AttributeDefinitions: []AttributeDefinition{
			{AttributeName: PartitionKeyName, AttributeType: string(types.ScalarAttributeTypeS)},
			{AttributeName: SortKeyName, AttributeType: string(types.ScalarAttributeTypeS)},
		},
	}

	for i, name := range t.Indexes() {
		pk, sk := IndexPartitionKeyName(i), IndexSortKeyName(i)
		d.AttributeDefinitions = append(d.AttributeDefinitions,
			AttributeDefinition{AttributeName: pk, AttributeType: string(types.ScalarAttributeTypeS)},
			AttributeDefinition{AttributeName: sk, AttributeType: string(types.ScalarAttributeTypeS)},
		)
		d.Indexes = append(d.Indexes, IndexDescription{
			IndexName: name,
			Ordinal:   i,
			KeySchema: []KeyElement{
				{AttributeName: pk, KeyType: string(types.KeyTypeHash)},
				{AttributeName: sk, KeyType: string(types.KeyTypeRange)},
			},
			ProjectionType: string(types.ProjectionTypeAll),
		})
	}

	for _, et := range t.Entities() {
		ed, err := et.describe()
		if err != nil {
			return nil, err
		}
		d.Entities = append(d.Entities, ed)
	}
	return d, nil
}

func (et *EntityType) describe() (EntityDescription, error) {
	ed := EntityDescription{Name: et.Name}
	for _, f := range et.order {
		fd := FieldDescription{Name: f.Name, Kind: f.Kind.String(), Attribute: f.physical}
		if f.Ref != nil {
			fd.Ref = f.Ref.Name
		}
		ed.Fields = append(ed.Fields, fd)
	}
	for _, p := range et.declared {
		pk, sk, err := p.Keys()
		if err != nil {
			return ed, err
		}
		ed.Patterns = append(ed.Patterns, PatternDescription{
			Name:         p.Name,
			Cardinality:  p.Cardinality.String(),
			Index:        p.IndexName(),
			PartitionKey: pk,
			SortKey:      sk,
		})
	}
	return ed, nil
}

// CreateTableInput converts the description into a create table request.
func (d *TableDescription) CreateTableInput() *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(d.TableName),
		BillingMode: types.BillingMode(d.BillingMode),
	}
	input.KeySchema = keySchema(d.KeySchema)
	for _, a := range d.AttributeDefinitions {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(a.AttributeName),
			AttributeType: types.ScalarAttributeType(a.AttributeType),
		})
	}
	for _, idx := range d.Indexes {
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.IndexName),
			KeySchema:  keySchema(idx.KeySchema),
			Projection: &types.Projection{ProjectionType: types.ProjectionType(idx.ProjectionType)},
		})
	}
	return input
}

func keySchema(elems []KeyElement) []types.KeySchemaElement {
	out := make([]types.KeySchemaElement, len(elems))
	for i, e := range elems {
		out[i] = types.KeySchemaElement{
			AttributeName: aws.String(e.AttributeName),
			KeyType:       types.KeyType(e.KeyType),
		}
	}
	return out
}

// WriteYAML writes the description as YAML.
func (d *TableDescription) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode table description: %w", err)
	}
	return enc.Close()
}

// WriteJSON writes the description as indented JSON.
func (d *TableDescription) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode table description: %w", err)
	}
	return nil
}

// CreateTable creates the physical table through the table's store.
func (t *Table) CreateTable(ctx context.Context) error {
	d, err := t.Describe()
	if err != nil {
		return err
	}
	store, err := t.Store(ctx)
	if err != nil {
		return err
	}
	return store.CreateTable(ctx, d)
}
