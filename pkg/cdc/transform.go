package cdc

import (
	"errors"
	"fmt"

	"github.com/siqueiraa/deschemaer/pkg/avro"
)

const (
	partKey   = "key"
	partValue = "value"
)

// Transformer turns one CDC message (key half, value half) into one JSON
// document. It holds no per-message state and is safe for concurrent use.
type Transformer struct {
	catalog  avro.Catalog
	framed   bool
	checkIDs bool
	ids      avro.SchemaIDs
	trailing bool
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithFraming makes the transformer strip the Confluent magic byte and
// schema id from both halves before decoding.
func WithFraming() Option {
	return func(t *Transformer) { t.framed = true }
}

// WithSchemaIDs implies WithFraming and additionally rejects payloads whose
// framed schema id differs from ids.
func WithSchemaIDs(ids avro.SchemaIDs) Option {
	return func(t *Transformer) {
		t.framed = true
		t.checkIDs = true
		t.ids = ids
	}
}

// WithTrailingBytes accepts payloads that carry bytes after the last field
// and ignores them. Without it such payloads fail with avro.ErrTrailingBytes.
func WithTrailingBytes() Option {
	return func(t *Transformer) { t.trailing = true }
}

// NewTransformer validates the catalog and returns a transformer for it. A
// catalog whose key and value schemas share a field name is rejected here
// with a *SchemaConflictError.
func NewTransformer(cat avro.Catalog, opts ...Option) (*Transformer, error) {
	if cat.Key == nil || cat.Value == nil {
		return nil, errors.New("cdc: catalog needs both a key and a value schema")
	}
	if err := CheckDisjoint(cat.Key, cat.Value); err != nil {
		return nil, err
	}
	t := &Transformer{catalog: cat}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

var defaultTransformer = mustTransformer(avro.DefaultCatalog())

func mustTransformer(cat avro.Catalog) *Transformer {
	t, err := NewTransformer(cat)
	if err != nil {
		panic(fmt.Sprintf("cdc: default catalog: %v", err))
	}
	return t
}

// Transform decodes both halves with the default catalog, merges them and
// returns the JSON document.
func Transform(key, value Payload) (string, error) {
	return defaultTransformer.Transform(key, value)
}

// Transform decodes, merges and serialises one message. Decode and merge
// errors are returned as *avro.DecodeError and *SchemaConflictError.
func (t *Transformer) Transform(key, value Payload) (string, error) {
	doc, err := t.TransformBytes(key, value)
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

// TransformBytes is Transform without the final string conversion.
func (t *Transformer) TransformBytes(key, value Payload) ([]byte, error) {
	rec, err := t.Record(key, value)
	if err != nil {
		return nil, err
	}
	return MarshalRecord(rec)
}

// Record decodes and merges one message without serialising it.
func (t *Transformer) Record(key, value Payload) (avro.Record, error) {
	k, err := t.decodeHalf(partKey, t.catalog.Key, t.ids.Key, key)
	if err != nil {
		return nil, err
	}
	v, err := t.decodeHalf(partValue, t.catalog.Value, t.ids.Value, value)
	if err != nil {
		return nil, err
	}
	return Merge(k, v)
}

func (t *Transformer) decodeHalf(part string, schema *avro.SchemaDefinition, wantID int, p Payload) (avro.Record, error) {
	rec, err := t.decodePayload(schema, wantID, p)
	if err != nil {
		var de *avro.DecodeError
		if errors.As(err, &de) {
			de.Part = part
		}
		return nil, err
	}
	return rec, nil
}

func (t *Transformer) decodePayload(schema *avro.SchemaDefinition, wantID int, p Payload) (avro.Record, error) {
	body, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	if t.framed {
		var id int
		id, body, err = avro.StripFraming(body)
		if err != nil {
			return nil, err
		}
		if t.checkIDs && id != wantID {
			return nil, &avro.DecodeError{
				Schema: schema.Name,
				Err:    fmt.Errorf("%w: schema id %d, want %d", avro.ErrInvalidFraming, id, wantID),
			}
		}
	}
	if t.trailing {
		rec, _, err := avro.DecodePrefix(schema, body)
		return rec, err
	}
	return avro.Decode(schema, body)
}
