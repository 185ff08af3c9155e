package avro

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Encode writes record in Avro binary encoding for schema. Fields are taken
// by name; a field missing from record falls back to its schema default.
// Integer fields accept any Go integer type that fits the declared width.
func Encode(schema *SchemaDefinition, record Record) ([]byte, error) {
	if schema == nil {
		return nil, fmt.Errorf("avro: encode: nil schema")
	}

	out := make([]byte, 0, 64)
	for _, f := range schema.Fields {
		v, ok := record.Get(f.Name)
		if !ok {
			if !f.HasDefault {
				return nil, fmt.Errorf("avro: encode %s: field %q missing and has no default", schema.Name, f.Name)
			}
			v = f.Default
		}
		var err error
		out, err = appendField(out, f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("avro: encode %s.%s: %w", schema.Name, f.Name, err)
		}
	}
	return out, nil
}

func appendField(out []byte, t FieldType, v any) ([]byte, error) {
	if t.Nullable {
		if v == nil {
			return appendLong(out, 0), nil
		}
		out = appendLong(out, 1)
	} else if v == nil {
		return nil, fmt.Errorf("null value for non-nullable %s", t)
	}

	switch t.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		if !utf8.ValidString(s) {
			return nil, ErrInvalidUTF8
		}
		out = appendLong(out, int64(len(s)))
		return append(out, s...), nil
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		if b {
			return append(out, 1), nil
		}
		return append(out, 0), nil
	case KindInt:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, ErrIntOverflow
		}
		return appendLong(out, n), nil
	case KindLong:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return appendLong(out, n), nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", t.Kind)
	}
}

// appendLong appends v as a zig-zag varint.
func appendLong(out []byte, v int64) []byte {
	u := uint64(v<<1) ^ uint64(v>>63)
	for u >= 0x80 {
		out = append(out, byte(u)|0x80)
		u >>= 7
	}
	return append(out, byte(u))
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
