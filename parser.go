package dynaschema

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"golang.org/x/exp/constraints"
)

// ValueParser turns the string form of a stored value back into a typed value.
type ValueParser func(string) (any, error)

// String returns the stored value unchanged.
func String(s string) (any, error) { return s, nil }

// Int parses a base 10 integer into an int.
func Int(s string) (any, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("parse int: %w", err)
	}
	return v, nil
}

// Float parses a float64.
func Float(s string) (any, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse float: %w", err)
	}
	return v, nil
}

// Bool parses a boolean.
func Bool(s string) (any, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("parse bool: %w", err)
	}
	return v, nil
}

// UUID parses a UUID in any of the forms accepted by uuid.Parse.
func UUID(s string) (any, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse uuid: %w", err)
	}
	return v, nil
}

// DateTime parses an ISO 8601 timestamp into a strfmt.DateTime.
func DateTime(s string) (any, error) {
	v, err := strfmt.ParseDateTime(s)
	if err != nil {
		return nil, fmt.Errorf("parse date-time: %w", err)
	}
	return v, nil
}

// Integer returns a parser producing values of the integer type T.
// Values that do not fit in T are rejected.
func Integer[T constraints.Integer]() ValueParser {
	return func(s string) (any, error) {
		if ^T(0) < 0 {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse integer: %w", err)
			}
			if int64(T(v)) != v {
				return nil, fmt.Errorf("parse integer: %s overflows %T", s, T(0))
			}
			return T(v), nil
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse integer: %w", err)
		}
		if uint64(T(v)) != v {
			return nil, fmt.Errorf("parse integer: %s overflows %T", s, T(0))
		}
		return T(v), nil
	}
}

// Decimal returns a parser producing values of the float type T.
func Decimal[T constraints.Float]() ValueParser {
	return func(s string) (any, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse decimal: %w", err)
		}
		return T(v), nil
	}
}

// formatValue renders a raw value the way it appears inside a key string.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case encoding.TextMarshaler:
		if b, err := x.MarshalText(); err == nil {
			return string(b)
		}
	case fmt.Stringer:
		return x.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	}
	return fmt.Sprint(v)
}
