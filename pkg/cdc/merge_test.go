package cdc

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/siqueiraa/deschemaer/pkg/avro"
)

func TestMerge(t *testing.T) {
	key := avro.Record{{Name: "hotel", Value: "Grand"}, {Name: "id", Value: nil}}
	value := avro.Record{{Name: "body", Value: "ok"}, {Name: "score", Value: int32(3)}}

	got, err := Merge(key, value)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if names := strings.Join(got.Names(), ","); names != "hotel,id,body,score" {
		t.Errorf("names = %s", names)
	}
	if v, ok := got.Get("id"); !ok || v != nil {
		t.Errorf("id = %v (present=%v), want null", v, ok)
	}
	if v, _ := got.Get("score"); v != int32(3) {
		t.Errorf("score = %v", v)
	}
}

func TestMergeFieldSetIsCommutative(t *testing.T) {
	key := avro.Record{{Name: "hotel", Value: "Grand"}, {Name: "id", Value: nil}}
	value := avro.Record{{Name: "body", Value: nil}, {Name: "reviewer", Value: "Bo"}}

	kv, err := Merge(key, value)
	if err != nil {
		t.Fatalf("Merge(key, value) error = %v", err)
	}
	vk, err := Merge(value, key)
	if err != nil {
		t.Fatalf("Merge(value, key) error = %v", err)
	}

	a, b := kv.Names(), vk.Names()
	sort.Strings(a)
	sort.Strings(b)
	if strings.Join(a, ",") != strings.Join(b, ",") {
		t.Errorf("field sets differ: %v vs %v", a, b)
	}
	am, bm := kv.Map(), vk.Map()
	for k, v := range am {
		if bm[k] != v {
			t.Errorf("field %s: %v vs %v", k, v, bm[k])
		}
	}
}

func TestMergeConflict(t *testing.T) {
	key := avro.Record{{Name: "hotel", Value: "Grand"}, {Name: "id", Value: "a"}}
	value := avro.Record{{Name: "id", Value: "b"}, {Name: "body", Value: nil}, {Name: "hotel", Value: "Ritz"}}

	for i := 0; i < 3; i++ {
		got, err := Merge(key, value)
		if got != nil {
			t.Fatalf("Merge() returned a record on conflict: %v", got)
		}
		var conflict *SchemaConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("Merge() error = %v, want *SchemaConflictError", err)
		}
		if strings.Join(conflict.Fields, ",") != "id,hotel" {
			t.Errorf("conflict fields = %v", conflict.Fields)
		}
		if !strings.Contains(err.Error(), "id, hotel") {
			t.Errorf("error message = %s", err)
		}
	}
}

func TestCheckDisjointDefaultCatalog(t *testing.T) {
	if err := CheckDisjoint(avro.KeySchema(), avro.ValueSchema()); err != nil {
		t.Errorf("default catalog must be disjoint: %v", err)
	}
	if err := CheckDisjoint(avro.KeySchema(), avro.KeySchema()); err == nil {
		t.Error("expected conflict when a schema is paired with itself")
	}
}
