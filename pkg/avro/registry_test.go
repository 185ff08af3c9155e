package avro

import (
	"strings"
	"sync"
	"testing"

	"github.com/riferrei/srclient"
)

func TestNormalizeSchemaJSON(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		same    bool
		wantErr bool
	}{
		{
			name: "key order",
			a:    `{"name":"test","type":"record","fields":[]}`,
			b:    `{"type":"record","fields":[],"name":"test"}`,
			same: true,
		},
		{
			name: "field order",
			a:    `{"type":"record","name":"r","fields":[{"name":"a","type":"int"},{"name":"b","type":"string"}]}`,
			b:    `{"type":"record","name":"r","fields":[{"name":"b","type":"string"},{"name":"a","type":"int"}]}`,
			same: false,
		},
		{
			name: "union branch order is significant",
			a:    `{"type":"record","name":"r","fields":[{"name":"a","type":["null","int"]}]}`,
			b:    `{"type":"record","name":"r","fields":[{"name":"a","type":["int","null"]}]}`,
			same: false,
		},
		{
			name: "whitespace",
			a:    KeySchemaJSON,
			b:    `{"type":"record","name":"reviews","fields":[{"name":"hotel","type":"string"},{"name":"id","type":["null",{"type":"string","logicalType":"uuid"}],"default":null}]}`,
			same: true,
		},
		{
			name:    "invalid JSON",
			a:       `{"name":"test",}`,
			b:       `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			same, err := sameSchema(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if same != tt.same {
				t.Errorf("sameSchema() = %v, want %v", same, tt.same)
			}
		})
	}
}

func TestNormalizeSchemaJSONConsistency(t *testing.T) {
	first, err := normalizeSchemaJSON(ValueSchemaJSON)
	if err != nil {
		t.Fatalf("First normalization failed: %v", err)
	}
	second, err := normalizeSchemaJSON(first)
	if err != nil {
		t.Fatalf("Second normalization failed: %v", err)
	}
	if first != second {
		t.Errorf("Normalization is not idempotent.\nFirst: %s\nSecond: %s", first, second)
	}
}

// reorderedValueSchemaJSON declares the value columns with reviewer ahead of
// body. The bytes of a record written with it land in the wrong fields when
// read with ValueSchemaJSON.
const reorderedValueSchemaJSON = `{
  "type": "record",
  "name": "reviews",
  "fields": [
    {"name": "reviewer", "type": ["null", "string"], "default": null},
    {"name": "body", "type": ["null", "string"], "default": null},
    {"name": "is_valid", "type": ["null", "boolean"], "default": null},
    {"name": "score", "type": ["null", "int"], "default": null}
  ]
}`

func TestCreateSchemaIfNotExists(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		wantID   int
		wantErr  bool
	}{
		{name: "empty subject registers", wantID: 1},
		{name: "same schema reuses id", existing: ValueSchemaJSON, wantID: 42},
		{name: "reordered fields rejected", existing: reorderedValueSchemaJSON, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := srclient.CreateMockSchemaRegistryClient("mock://registry")
			if tt.existing != "" {
				if _, err := client.SetSchema(42, "reviews-value", tt.existing, srclient.Avro, -1); err != nil {
					t.Fatalf("SetSchema: %v", err)
				}
			}

			s, err := CreateSchemaIfNotExists(client, "reviews-value", ValueSchemaJSON)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got schema id %d", s.ID())
				}
				if !strings.Contains(err.Error(), "different schema") {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.ID() != tt.wantID {
				t.Errorf("id = %d, want %d", s.ID(), tt.wantID)
			}
		})
	}
}

func TestRegistryRegisterCatalog(t *testing.T) {
	client := srclient.CreateMockSchemaRegistryClient("mock://registry")
	reg := NewRegistry(client)

	ids, err := reg.RegisterCatalog(DefaultCatalog(), "reviews-key", "reviews-value")
	if err != nil {
		t.Fatalf("RegisterCatalog: %v", err)
	}
	if ids.Key == ids.Value {
		t.Errorf("key and value share id %d", ids.Key)
	}

	again, err := reg.RegisterCatalog(DefaultCatalog(), "reviews-key", "reviews-value")
	if err != nil {
		t.Fatalf("second RegisterCatalog: %v", err)
	}
	if again != ids {
		t.Errorf("second call = %+v, want %+v", again, ids)
	}

	other, err := reg.RegisterCatalog(DefaultCatalog(), "audit-key", "audit-value")
	if err != nil {
		t.Fatalf("RegisterCatalog other subjects: %v", err)
	}
	if other == ids {
		t.Errorf("distinct subjects share ids %+v", other)
	}
}

func TestRegistryIsolation(t *testing.T) {
	first := srclient.CreateMockSchemaRegistryClient("mock://first")
	if _, err := first.SetSchema(7, "reviews-value", ValueSchemaJSON, srclient.Avro, -1); err != nil {
		t.Fatalf("SetSchema: %v", err)
	}
	second := srclient.CreateMockSchemaRegistryClient("mock://second")
	if _, err := second.SetSchema(9, "reviews-value", reorderedValueSchemaJSON, srclient.Avro, -1); err != nil {
		t.Fatalf("SetSchema: %v", err)
	}

	if _, err := NewRegistry(first).RegisterCatalog(DefaultCatalog(), "reviews-key", "reviews-value"); err != nil {
		t.Fatalf("first registry: %v", err)
	}
	// An id cached by the first registry must not mask the conflict held by
	// the second one.
	if _, err := NewRegistry(second).RegisterCatalog(DefaultCatalog(), "reviews-key", "reviews-value"); err == nil {
		t.Fatal("expected conflict from second registry")
	}
}

// lockedRegistrar serialises access to the mock client and counts creates.
type lockedRegistrar struct {
	mu      sync.Mutex
	client  *srclient.MockSchemaRegistryClient
	creates int
}

func (l *lockedRegistrar) GetLatestSchema(subject string) (*srclient.Schema, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client.GetLatestSchema(subject)
}

func (l *lockedRegistrar) CreateSchema(subject, schema string, schemaType srclient.SchemaType, refs ...srclient.Reference) (*srclient.Schema, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creates++
	return l.client.CreateSchema(subject, schema, schemaType, refs...)
}

func TestRegistryConcurrent(t *testing.T) {
	client := &lockedRegistrar{client: srclient.CreateMockSchemaRegistryClient("mock://registry")}
	reg := NewRegistry(client)

	var wg sync.WaitGroup
	results := make([]SchemaIDs, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = reg.RegisterCatalog(DefaultCatalog(), "reviews-key", "reviews-value")
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("call %d = %+v, want %+v", i, results[i], results[0])
		}
	}
	if client.creates != 2 {
		t.Errorf("CreateSchema called %d times, want 2", client.creates)
	}
}
