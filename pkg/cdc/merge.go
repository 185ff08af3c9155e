package cdc

import (
	"fmt"
	"strings"

	"github.com/siqueiraa/deschemaer/pkg/avro"
)

// SchemaConflictError reports field names present in both the key and the
// value half. It signals a broken schema pair, not a bad message.
type SchemaConflictError struct {
	Fields []string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("cdc: key and value share field(s): %s", strings.Join(e.Fields, ", "))
}

// Merge returns the key fields followed by the value fields. Values are not
// touched. Any shared field name fails the merge.
func Merge(key, value avro.Record) (avro.Record, error) {
	if shared := sharedNames(key.Names(), value.Names()); len(shared) > 0 {
		return nil, &SchemaConflictError{Fields: shared}
	}
	out := make(avro.Record, 0, len(key)+len(value))
	out = append(out, key...)
	out = append(out, value...)
	return out, nil
}

// CheckDisjoint applies the Merge rule to a schema pair so a conflicting
// catalog is rejected before any message is read.
func CheckDisjoint(key, value *avro.SchemaDefinition) error {
	if shared := sharedNames(key.FieldNames(), value.FieldNames()); len(shared) > 0 {
		return &SchemaConflictError{Fields: shared}
	}
	return nil
}

// sharedNames returns the names of b that also appear in a, in b's order.
func sharedNames(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	for _, n := range a {
		seen[n] = struct{}{}
	}
	var shared []string
	for _, n := range b {
		if _, ok := seen[n]; ok {
			shared = append(shared, n)
		}
	}
	return shared
}
