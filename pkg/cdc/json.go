package cdc

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/siqueiraa/deschemaer/pkg/avro"
)

var json = jsoniter.ConfigFastest

// MarshalRecord writes rec as one JSON object, keeping field order. Null
// values become JSON null.
func MarshalRecord(rec avro.Record) ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, e := range rec {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(e.Name)
		switch v := e.Value.(type) {
		case nil:
			stream.WriteNil()
		case string:
			stream.WriteString(v)
		case bool:
			stream.WriteBool(v)
		case int32:
			stream.WriteInt32(v)
		case int64:
			stream.WriteInt64(v)
		default:
			return nil, fmt.Errorf("cdc: field %s: unsupported value type %T", e.Name, e.Value)
		}
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, fmt.Errorf("cdc: marshal record: %w", stream.Error)
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}
