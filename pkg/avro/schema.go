package avro

import (
	"fmt"

	havro "github.com/hamba/avro/v2"
)

// Constants for common type names
const (
	stringTypeName  = "string"
	booleanTypeName = "boolean"
	intTypeName     = "int"
	longTypeName    = "long"
	nullTypeName    = "null"
	uuidTypeName    = "uuid"
)

// Kind is the primitive wire type of a field.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindBoolean
	KindInt
	KindLong
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return stringTypeName
	case KindBoolean:
		return booleanTypeName
	case KindInt:
		return intTypeName
	case KindLong:
		return longTypeName
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FieldType describes how a single field is laid out on the wire.
// Nullable is the ["null", T] union with null at branch 0. Logical is
// metadata only (e.g. "uuid") and never changes the bytes.
type FieldType struct {
	Kind     Kind
	Nullable bool
	Logical  string
}

func (t FieldType) String() string {
	name := t.Kind.String()
	if t.Logical != "" {
		name += "." + t.Logical
	}
	if t.Nullable {
		return "[null," + name + "]"
	}
	return name
}

type Field struct {
	Name       string
	Type       FieldType
	Default    any
	HasDefault bool
}

// SchemaDefinition is the compiled, immutable form of an Avro record schema.
// It must not be modified after Compile returns it.
type SchemaDefinition struct {
	Name   string
	Fields []Field
	raw    string
}

// Raw returns the Avro JSON the definition was compiled from.
func (s *SchemaDefinition) Raw() string { return s.raw }

// FieldNames returns the field names in declaration order.
func (s *SchemaDefinition) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Compile parses an Avro record schema and lowers it to a SchemaDefinition.
// Only the shapes the decoder understands are accepted: string, boolean,
// int and long, optionally annotated with a logical type, and the nullable
// union ["null", T] of those.
func Compile(schemaJSON string) (*SchemaDefinition, error) {
	// A private cache keeps same-named records (key and value are both
	// "reviews") from replacing each other in the global cache.
	parsed, err := havro.ParseWithCache(schemaJSON, "", &havro.SchemaCache{})
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	rec, ok := parsed.(*havro.RecordSchema)
	if !ok {
		return nil, fmt.Errorf("expected record schema, got %s", parsed.Type())
	}

	def := &SchemaDefinition{
		Name:   rec.Name(),
		Fields: make([]Field, 0, len(rec.Fields())),
		raw:    schemaJSON,
	}
	for _, f := range rec.Fields() {
		ft, err := lowerType(f.Type())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name(), err)
		}
		field := Field{Name: f.Name(), Type: ft}
		if f.HasDefault() {
			field.HasDefault = true
			field.Default = f.Default()
		}
		def.Fields = append(def.Fields, field)
	}
	return def, nil
}

// MustCompile is like Compile but panics if the schema cannot be compiled.
// It is meant for schema literals baked into the program.
func MustCompile(schemaJSON string) *SchemaDefinition {
	def, err := Compile(schemaJSON)
	if err != nil {
		panic(fmt.Sprintf("avro: compile schema: %v", err))
	}
	return def
}

// lowerType maps a hamba schema node onto a FieldType.
func lowerType(s havro.Schema) (FieldType, error) {
	if u, ok := s.(*havro.UnionSchema); ok {
		return lowerUnion(u)
	}
	kind, err := primitiveKind(s)
	if err != nil {
		return FieldType{}, err
	}
	return FieldType{Kind: kind, Logical: logicalName(s)}, nil
}

// lowerUnion accepts exactly ["null", T]; branch order matters because the
// wire carries the branch index.
func lowerUnion(u *havro.UnionSchema) (FieldType, error) {
	types := u.Types()
	if len(types) != 2 || types[0].Type() != nullTypeName {
		return FieldType{}, fmt.Errorf("unsupported union %s: only [\"null\", T] is allowed", u.String())
	}
	inner := types[1]
	if _, nested := inner.(*havro.UnionSchema); nested {
		return FieldType{}, fmt.Errorf("nested unions are not allowed")
	}
	kind, err := primitiveKind(inner)
	if err != nil {
		return FieldType{}, err
	}
	return FieldType{Kind: kind, Nullable: true, Logical: logicalName(inner)}, nil
}

func primitiveKind(s havro.Schema) (Kind, error) {
	switch s.Type() {
	case havro.String:
		return KindString, nil
	case havro.Boolean:
		return KindBoolean, nil
	case havro.Int:
		return KindInt, nil
	case havro.Long:
		return KindLong, nil
	default:
		return 0, fmt.Errorf("unsupported type %s", s.Type())
	}
}

// logicalName returns the logical type annotation of s, if any.
func logicalName(s havro.Schema) string {
	if ls, ok := s.(havro.LogicalTypeSchema); ok {
		if l := ls.Logical(); l != nil {
			return string(l.Type())
		}
	}
	return ""
}
