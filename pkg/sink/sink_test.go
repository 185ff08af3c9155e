package sink

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/config"
	"github.com/siqueiraa/deschemaer/pkg/kafka"
)

type published struct {
	topic   string
	key     []byte
	value   []byte
	headers []kafka.Header
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, key: key, value: value, headers: headers})
	return nil
}

func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)

	docs := []string{`{"hotel":"Grand"}`, `{"hotel":"Ritz"}`}
	for _, d := range docs {
		if err := s.Publish(context.Background(), []byte("k"), []byte(d)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	want := "{\"hotel\":\"Grand\"}\n{\"hotel\":\"Ritz\"}\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestKafkaSink(t *testing.T) {
	pub := &fakePublisher{}
	s := NewKafka(pub, "reviews-json")

	if err := s.Publish(context.Background(), []byte("CkdyYW5kAA=="), []byte(`{}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("sent %d messages", len(pub.sent))
	}
	got := pub.sent[0]
	if got.topic != "reviews-json" || string(got.key) != "CkdyYW5kAA==" || string(got.value) != `{}` {
		t.Errorf("sent = %+v", got)
	}

	pub.err = errors.New("broker down")
	if err := s.Publish(context.Background(), nil, []byte(`{}`)); err == nil {
		t.Error("expected publish error to propagate")
	}
}

func TestDeadLetter(t *testing.T) {
	pub := &fakePublisher{}
	dl := NewDeadLetter(pub, "reviews-dlq")

	msg := &kafka.Message{Topic: "reviews", Partition: 3, Offset: 99, Key: []byte("key"), Value: []byte{0x0a}}
	if err := dl.Send(context.Background(), msg, "truncated", errors.New("unexpected end of data")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := pub.sent[0]
	if got.topic != "reviews-dlq" || !bytes.Equal(got.value, msg.Value) || !bytes.Equal(got.key, msg.Key) {
		t.Errorf("sent = %+v", got)
	}
	headers := make(map[string]string)
	for _, h := range got.headers {
		headers[h.Key] = string(h.Value)
	}
	want := map[string]string{
		HeaderError:     "unexpected end of data",
		HeaderReason:    "truncated",
		HeaderTopic:     "reviews",
		HeaderPartition: "3",
		HeaderOffset:    "99",
	}
	for k, v := range want {
		if headers[k] != v {
			t.Errorf("header %s = %q, want %q", k, headers[k], v)
		}
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	logger := zap.NewNop()

	cfg.Sink.Type = config.SinkStdout
	s, err := New(cfg, nil, logger)
	if err != nil || s.Name() != "stdout" {
		t.Fatalf("New(stdout) = %v, %v", s, err)
	}

	cfg.Sink.Type = config.SinkKafka
	if _, err := New(cfg, nil, logger); err == nil {
		t.Error("kafka sink without producer should fail")
	}
	s, err = New(cfg, &fakePublisher{}, logger)
	if err != nil || s.Name() != "kafka" {
		t.Fatalf("New(kafka) = %v, %v", s, err)
	}

	cfg.Sink.Type = config.SinkNATS
	if _, err := New(cfg, nil, logger); err == nil {
		t.Error("nats sink without subject should fail")
	}

	cfg.Sink.Type = config.SinkMQTT
	if _, err := New(cfg, nil, logger); err == nil {
		t.Error("mqtt sink without broker should fail")
	}

	cfg.Sink.Type = "carrier-pigeon"
	if _, err := New(cfg, nil, logger); err == nil {
		t.Error("unknown sink type should fail")
	}
}
