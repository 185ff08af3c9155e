package avro

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/riferrei/srclient"
	"golang.org/x/sync/singleflight"
)

// jsonStd sorts map keys on Marshal, which the normalised comparison relies on.
var jsonStd = jsoniter.ConfigCompatibleWithStandardLibrary

// SchemaRegistrar is the part of the schema registry client used to publish
// the fixed schemas. *srclient.SchemaRegistryClient satisfies it.
type SchemaRegistrar interface {
	GetLatestSchema(subject string) (*srclient.Schema, error)
	CreateSchema(subject string, schema string, schemaType srclient.SchemaType, references ...srclient.Reference) (*srclient.Schema, error)
}

// SchemaIDs are the registry ids of the key and value schemas.
type SchemaIDs struct {
	Key   int
	Value int
}

// Registry publishes catalog schemas through one registrar and remembers the
// ids it was handed. It is safe for concurrent use.
type Registry struct {
	client SchemaRegistrar

	ids    sync.Map // registryKey -> int
	flight singleflight.Group
}

type registryKey struct {
	subject string
	schema  string
}

// NewRegistry returns a Registry backed by client.
func NewRegistry(client SchemaRegistrar) *Registry {
	return &Registry{client: client}
}

// RegisterCatalog makes sure both catalog schemas exist in the registry under
// the given subjects and returns their ids. The schemas themselves never come
// from the registry; it only hands out the ids used in Confluent framing.
func (r *Registry) RegisterCatalog(cat Catalog, keySubject, valueSubject string) (SchemaIDs, error) {
	keyID, err := r.register(keySubject, cat.Key.Raw())
	if err != nil {
		return SchemaIDs{}, err
	}
	valueID, err := r.register(valueSubject, cat.Value.Raw())
	if err != nil {
		return SchemaIDs{}, err
	}
	return SchemaIDs{Key: keyID, Value: valueID}, nil
}

func (r *Registry) register(subject, schemaJSON string) (int, error) {
	key := registryKey{subject: subject, schema: schemaJSON}
	if v, ok := r.ids.Load(key); ok {
		return v.(int), nil
	}
	val, err, _ := r.flight.Do(subject+"\x00"+schemaJSON, func() (any, error) {
		s, err := CreateSchemaIfNotExists(r.client, subject, schemaJSON)
		if err != nil {
			return nil, fmt.Errorf("register schema %s: %w", subject, err)
		}
		r.ids.Store(key, s.ID())
		return s.ID(), nil
	})
	if err != nil {
		return 0, err
	}
	return val.(int), nil
}

// CreateSchemaIfNotExists returns the latest schema registered for subject
// when it matches schemaJSON after normalisation, and registers schemaJSON
// when the subject is empty. A subject holding a different schema is an
// error: the local schema is fixed and cannot evolve.
func CreateSchemaIfNotExists(client SchemaRegistrar, subject, schemaJSON string) (*srclient.Schema, error) {
	existing, err := client.GetLatestSchema(subject)
	if err != nil || existing == nil {
		return client.CreateSchema(subject, schemaJSON, srclient.Avro)
	}

	same, err := sameSchema(existing.Schema(), schemaJSON)
	if err != nil {
		return nil, err
	}
	if !same {
		return nil, fmt.Errorf("subject %s holds a different schema (id %d)", subject, existing.ID())
	}
	return existing, nil
}

func sameSchema(a, b string) (bool, error) {
	na, err := normalizeSchemaJSON(a)
	if err != nil {
		return false, err
	}
	nb, err := normalizeSchemaJSON(b)
	if err != nil {
		return false, err
	}
	return na == nb, nil
}

// normalizeSchemaJSON re-marshals a schema with object keys in sorted order.
// Arrays keep their order: record fields are the binary layout and union
// branches are indexed by position.
func normalizeSchemaJSON(schemaJSON string) (string, error) {
	var schema any
	if err := jsonStd.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return "", fmt.Errorf("failed to parse schema JSON: %w", err)
	}
	out, err := jsonStd.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal normalized schema: %w", err)
	}
	return string(out), nil
}
