package dynaschema

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAttributes(t *testing.T) {
	schema := newTestSchema(t)

	t.Run("attributes and index shadows", func(t *testing.T) {
		inst := schema.test.MustNew(map[string]any{"id": 1, "date_created": "2022-11-24"})

		attrs, err := inst.UpdateAttributes()
		require.NoError(t, err)

		assert.Equal(t, map[string]types.AttributeValue{
			":pk0":          str("2022-11-24"),
			":sk0":          str("Test#1"),
			":date_created": str("2022-11-24"),
		}, attrs.Values)
		assert.Equal(t, map[string]string{
			"pk0":           ":pk0",
			"sk0":           ":sk0",
			"#date_created": ":date_created",
		}, attrs.Assignments)
		assert.Equal(t, map[string]string{"#date_created": "date_created"}, attrs.Names)
		assert.Equal(t, "SET #date_created = :date_created, pk0 = :pk0, sk0 = :sk0", attrs.Expression())

		key, err := inst.UpdateKey()
		require.NoError(t, err)
		assert.Equal(t, Item{"pk": str("Test#1"), "sk": str("$")}, key)
	})

	t.Run("numeric attribute on a child", func(t *testing.T) {
		inst := schema.testItem.MustNew(map[string]any{"test_id": 1, "id": "1", "quantity": 1})

		attrs, err := inst.UpdateAttributes()
		require.NoError(t, err)
		assert.Equal(t, map[string]types.AttributeValue{":quantity": num("1")}, attrs.Values)
		assert.Equal(t, map[string]string{"#quantity": ":quantity"}, attrs.Assignments)
		assert.Equal(t, map[string]string{"#quantity": "quantity"}, attrs.Names)

		key, err := inst.UpdateKey()
		require.NoError(t, err)
		assert.Equal(t, Item{"pk": str("Test#1"), "sk": str("TestItem#1")}, key)
	})

	t.Run("index shadows need both members", func(t *testing.T) {
		inst := schema.test.MustNew(map[string]any{"id": 1})
		attrs, err := inst.UpdateAttributes()
		require.NoError(t, err)
		assert.Empty(t, attrs.Values)
		assert.Empty(t, attrs.Expression())
	})

	t.Run("unsupported value", func(t *testing.T) {
		inst := schema.testItem.MustNew(map[string]any{"test_id": 1, "id": "1", "quantity": []int{1}})
		_, err := inst.UpdateAttributes()
		assert.ErrorIs(t, err, ErrUnsupportedValue)
	})

	t.Run("update request", func(t *testing.T) {
		inst := schema.testItem.MustNew(map[string]any{"test_id": 1, "id": "a", "quantity": 2})
		req, err := inst.UpdateRequest()
		require.NoError(t, err)
		assert.Equal(t, "TestTable", req.TableName)
		assert.Equal(t, "SET #quantity = :quantity", req.UpdateExpression)
		assert.Equal(t, Item{"pk": str("Test#1"), "sk": str("TestItem#a")}, req.Key)

		_, err = schema.testItem.MustNew(map[string]any{"id": "a"}).UpdateRequest()
		assert.ErrorIs(t, err, ErrMissingKeyValue)
	})
}

func TestMarshalValue(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name string
		in   any
		want types.AttributeValue
	}{
		{"string", "abc", str("abc")},
		{"named string", status("open"), str("open")},
		{"int", 3, num("3")},
		{"uint8", uint8(7), num("7")},
		{"float", 2.5, num("2.5")},
		{"bool", true, &types.AttributeValueMemberBOOL{Value: true}},
		{"text marshaler", id, str("6ba7b810-9dad-11d1-80b4-00c04fd430c8")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unsupported kinds", func(t *testing.T) {
		for _, v := range []any{nil, []string{"a"}, map[string]int{}, struct{}{}} {
			_, err := MarshalValue(v)
			assert.ErrorIs(t, err, ErrUnsupportedValue)
		}
	})
}

func TestDecode(t *testing.T) {
	schema := newTestSchema(t)

	t.Run("strips type tokens and parses values", func(t *testing.T) {
		inst, err := schema.test.Decode(Item{
			"pk":           str("Test#1"),
			"sk":           str("$"),
			"date_created": str("2022-11-24"),
			"pk0":          str("2022-11-24"),
			"sk0":          str("Test#1"),
		})
		require.NoError(t, err)
		assert.Same(t, schema.test, inst.Type)
		assert.Equal(t, map[string]any{"id": 1, "date_created": "2022-11-24"}, inst.Values())
	})

	t.Run("child record", func(t *testing.T) {
		inst, err := schema.testItem.Decode(Item{
			"pk":       str("Test#1"),
			"sk":       str("TestItem#a#b"),
			"quantity": num("3"),
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"test_id": 1, "id": "a#b", "quantity": 3}, inst.Values())
	})

	t.Run("boolean attribute", func(t *testing.T) {
		table := NewTable("t")
		et := table.MustDefine("Flag", PartitionKey("id", nil), Attribute("on", Bool))
		inst, err := et.Decode(Item{"pk": str("Flag#x"), "on": &types.AttributeValueMemberBOOL{Value: true}})
		require.NoError(t, err)
		v, _ := inst.Get("on")
		assert.Equal(t, true, v)
	})

	t.Run("type token mismatch", func(t *testing.T) {
		_, err := schema.test.Decode(Item{"pk": str("Bar#1"), "sk": str("$")})
		require.ErrorIs(t, err, ErrTypeMismatch)

		var mismatch *TypeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "pk", mismatch.Attribute)
		assert.Equal(t, "Test", mismatch.Want)
		assert.Equal(t, "Bar", mismatch.Got)

		_, err = schema.testItem.Decode(Item{"pk": str("Test#1"), "sk": str("$")})
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("lenient decode ignores the type token", func(t *testing.T) {
		lenient := newTestSchema(t, WithLenientDecode())
		inst, err := lenient.test.Decode(Item{"pk": str("Bar#1"), "sk": str("$")})
		require.NoError(t, err)
		v, _ := inst.Get("id")
		assert.Equal(t, 1, v)
	})

	t.Run("parse failure", func(t *testing.T) {
		_, err := schema.test.Decode(Item{"pk": str("Test#abc")})
		assert.Error(t, err)
	})

	t.Run("unsupported attribute type", func(t *testing.T) {
		_, err := schema.test.Decode(Item{"pk": str("Test#1"), "date_created": &types.AttributeValueMemberL{}})
		assert.ErrorIs(t, err, ErrUnsupportedValue)
	})

	t.Run("decode all keeps order", func(t *testing.T) {
		list, err := schema.testItem.DecodeAll([]Item{
			{"pk": str("Test#1"), "sk": str("TestItem#b")},
			{"pk": str("Test#1"), "sk": str("TestItem#a")},
		})
		require.NoError(t, err)
		require.Len(t, list, 2)
		first, _ := list[0].Get("id")
		assert.Equal(t, "b", first)

		empty, err := schema.testItem.DecodeAll(nil)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})
}

func TestRoundTrip(t *testing.T) {
	schema := newTestSchema(t)

	tests := []struct {
		name   string
		entity *EntityType
		values map[string]any
	}{
		{"indexed entity", schema.test, map[string]any{"id": 1, "date_created": "2022-11-24"}},
		{"child entity", schema.testItem, map[string]any{"test_id": 1, "id": "x", "quantity": 4}},
		{"foreign sort key", schema.testBar, map[string]any{"test_id": 1, "bar_id": 2, "quantity": 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := tt.entity.MustNew(tt.values)
			record, err := inst.Item()
			require.NoError(t, err)

			decoded, err := tt.entity.Decode(record)
			require.NoError(t, err)
			assert.Equal(t, tt.values, decoded.Values())
		})
	}
}

func TestInstanceUnmarshal(t *testing.T) {
	schema := newTestSchema(t)

	var out struct {
		TestID   int    `dynamodbav:"test_id"`
		ID       string `dynamodbav:"id"`
		Quantity int    `dynamodbav:"quantity"`
	}
	inst := schema.testItem.MustNew(map[string]any{"test_id": 1, "id": "x", "quantity": 4})
	require.NoError(t, inst.Unmarshal(&out))
	assert.Equal(t, 1, out.TestID)
	assert.Equal(t, "x", out.ID)
	assert.Equal(t, 4, out.Quantity)
}
