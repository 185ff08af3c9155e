package faker

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand" // Using weak random for test data generation only

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/avro"
	"github.com/siqueiraa/deschemaer/pkg/cdc"
	"github.com/siqueiraa/deschemaer/pkg/kafka"
)

const (
	maxScore    = 5  // Review scores run from 1 to maxScore
	nullPercent = 20 // Chance in percent that a nullable field is null
)

var (
	hotels    = []string{"Grand", "Ritz", "Savoy", "Plaza", "Negresco", "Adlon"}
	reviewers = []string{"ana", "bruno", "carla", "diego", "eva", "fabio"}
	bodies    = []string{
		"Great stay",
		"Room was small but clean",
		"Breakfast could be better",
		"Would come back",
		"Noisy at night",
	}
)

// Publisher is the part of kafka.Producer the generator needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// Generator produces fake hotel review CDC messages encoded the way the
// pipeline expects them on the input topic.
type Generator struct {
	rng           *rand.Rand
	keyEncoding   cdc.Encoding
	valueEncoding cdc.Encoding
	ids           *avro.SchemaIDs
}

// NewGenerator returns a generator seeded with seed. When ids is not nil,
// both halves are Confluent-framed with those schema ids.
func NewGenerator(seed int64, keyEnc, valueEnc cdc.Encoding, ids *avro.SchemaIDs) *Generator {
	return &Generator{
		rng:           rand.New(rand.NewSource(seed)), //nolint:gosec // Using weak random for test data generation only
		keyEncoding:   keyEnc,
		valueEncoding: valueEnc,
		ids:           ids,
	}
}

// Review returns one random key record and value record.
func (g *Generator) Review() (key, value avro.Record) {
	key = avro.Record{
		{Name: "hotel", Value: pick(g.rng, hotels)},
		{Name: "id", Value: g.maybe(func() any { return uuid.NewString() })},
	}
	value = avro.Record{
		{Name: "body", Value: g.maybe(func() any { return pick(g.rng, bodies) })},
		{Name: "reviewer", Value: g.maybe(func() any { return pick(g.rng, reviewers) })},
		{Name: "is_valid", Value: g.maybe(func() any { return g.rng.Intn(2) == 1 })},
		{Name: "score", Value: g.maybe(func() any { return int32(1 + g.rng.Intn(maxScore)) })},
	}
	return key, value
}

// Next returns an encoded key and value ready to publish.
func (g *Generator) Next() (key, value []byte, err error) {
	k, v := g.Review()
	key, err = g.encode(avro.KeySchema(), k, g.keyEncoding, idOf(g.ids, true))
	if err != nil {
		return nil, nil, fmt.Errorf("encode key: %w", err)
	}
	value, err = g.encode(avro.ValueSchema(), v, g.valueEncoding, idOf(g.ids, false))
	if err != nil {
		return nil, nil, fmt.Errorf("encode value: %w", err)
	}
	return key, value, nil
}

func (g *Generator) encode(schema *avro.SchemaDefinition, rec avro.Record, enc cdc.Encoding, id int) ([]byte, error) {
	body, err := avro.Encode(schema, rec)
	if err != nil {
		return nil, err
	}
	if g.ids != nil {
		if body, err = avro.AppendFraming(id, body); err != nil {
			return nil, err
		}
	}
	if enc == cdc.EncodingBase64 {
		out := make([]byte, base64.StdEncoding.EncodedLen(len(body)))
		base64.StdEncoding.Encode(out, body)
		return out, nil
	}
	return body, nil
}

// Publish generates one message and sends it to topic.
func (g *Generator) Publish(ctx context.Context, p Publisher, topic string, logger *zap.Logger) error {
	key, value, err := g.Next()
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, topic, key, value); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	logger.Debug("published fake review", zap.String("topic", topic), zap.ByteString("key", key))
	return nil
}

func (g *Generator) maybe(gen func() any) any {
	if g.rng.Intn(100) < nullPercent {
		return nil
	}
	return gen()
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.Intn(len(from))] //nolint:gosec // Using weak random for test data generation only
}

func idOf(ids *avro.SchemaIDs, key bool) int {
	if ids == nil {
		return 0
	}
	if key {
		return ids.Key
	}
	return ids.Value
}
