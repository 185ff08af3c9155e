package faker

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/avro"
	"github.com/siqueiraa/deschemaer/pkg/cdc"
	"github.com/siqueiraa/deschemaer/pkg/kafka"
)

type capture struct {
	topic      string
	key, value []byte
}

func (c *capture) Publish(_ context.Context, topic string, key, value []byte, _ ...kafka.Header) error {
	c.topic, c.key, c.value = topic, key, value
	return nil
}

func TestGeneratedMessagesTransform(t *testing.T) {
	tests := []struct {
		name     string
		keyEnc   cdc.Encoding
		valueEnc cdc.Encoding
		ids      *avro.SchemaIDs
	}{
		{"base64 key raw value", cdc.EncodingBase64, cdc.EncodingRaw, nil},
		{"raw both", cdc.EncodingRaw, cdc.EncodingRaw, nil},
		{"framed", cdc.EncodingBase64, cdc.EncodingRaw, &avro.SchemaIDs{Key: 7, Value: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []cdc.Option
			if tt.ids != nil {
				opts = append(opts, cdc.WithSchemaIDs(*tt.ids))
			}
			tr, err := cdc.NewTransformer(avro.DefaultCatalog(), opts...)
			if err != nil {
				t.Fatalf("NewTransformer() error = %v", err)
			}

			g := NewGenerator(42, tt.keyEnc, tt.valueEnc, tt.ids)
			for range 50 {
				key, value, err := g.Next()
				if err != nil {
					t.Fatalf("Next() error = %v", err)
				}
				doc, err := tr.Transform(cdc.NewPayload(key, tt.keyEnc), cdc.NewPayload(value, tt.valueEnc))
				if err != nil {
					t.Fatalf("Transform() error = %v", err)
				}
				if !strings.HasPrefix(doc, `{"hotel":"`) {
					t.Errorf("doc = %s", doc)
				}
			}
		})
	}
}

func TestReviewShape(t *testing.T) {
	g := NewGenerator(1, cdc.EncodingRaw, cdc.EncodingRaw, nil)
	sawNull, sawValue := false, false
	for range 200 {
		key, value := g.Review()
		if _, ok := key.Get("hotel"); !ok {
			t.Fatal("key has no hotel")
		}
		if v, _ := value.Get("score"); v == nil {
			sawNull = true
		} else if s := v.(int32); s < 1 || s > maxScore {
			t.Fatalf("score %d out of range", s)
		} else {
			sawValue = true
		}
	}
	if !sawNull || !sawValue {
		t.Errorf("expected both null and present scores (null=%v value=%v)", sawNull, sawValue)
	}
}

func TestPublish(t *testing.T) {
	g := NewGenerator(3, cdc.EncodingBase64, cdc.EncodingRaw, nil)
	c := &capture{}
	if err := g.Publish(context.Background(), c, "reviews", zap.NewNop()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if c.topic != "reviews" || len(c.key) == 0 || len(c.value) == 0 {
		t.Errorf("captured %+v", c)
	}
}
