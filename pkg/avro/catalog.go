package avro

import "fmt"

// KeySchemaJSON is the schema of the CDC key half (the primary key columns),
// carried in the message partition key.
const KeySchemaJSON = `{
  "type": "record",
  "name": "reviews",
  "fields": [
    {"name": "hotel", "type": "string"},
    {
      "name": "id",
      "type": ["null", {"type": "string", "logicalType": "uuid"}],
      "default": null
    }
  ]
}`

// ValueSchemaJSON is the schema of the CDC value half (the changed columns),
// carried in the message body.
const ValueSchemaJSON = `{
  "type": "record",
  "name": "reviews",
  "fields": [
    {"name": "body", "type": ["null", "string"], "default": null},
    {"name": "reviewer", "type": ["null", "string"], "default": null},
    {"name": "is_valid", "type": ["null", "boolean"], "default": null},
    {"name": "score", "type": ["null", "int"], "default": null}
  ]
}`

var (
	keySchema   = MustCompile(KeySchemaJSON)
	valueSchema = MustCompile(ValueSchemaJSON)
)

// KeySchema returns the process-wide key schema. Every call returns the same
// instance; callers must treat it as read-only.
func KeySchema() *SchemaDefinition { return keySchema }

// ValueSchema returns the process-wide value schema.
func ValueSchema() *SchemaDefinition { return valueSchema }

// Catalog pairs the schema used for the key half with the one used for the
// value half of a CDC message.
type Catalog struct {
	Key   *SchemaDefinition
	Value *SchemaDefinition
}

// DefaultCatalog returns the built-in reviews catalog.
func DefaultCatalog() Catalog {
	return Catalog{Key: keySchema, Value: valueSchema}
}

// NewCatalog compiles a catalog from two schema literals.
func NewCatalog(keyJSON, valueJSON string) (Catalog, error) {
	k, err := Compile(keyJSON)
	if err != nil {
		return Catalog{}, fmt.Errorf("key schema: %w", err)
	}
	v, err := Compile(valueJSON)
	if err != nil {
		return Catalog{}, fmt.Errorf("value schema: %w", err)
	}
	return Catalog{Key: k, Value: v}, nil
}
