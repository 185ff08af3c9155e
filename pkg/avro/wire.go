package avro

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Constants for Confluent wire format
const (
	confluentMagicByte            = 0
	confluentWireFormatHeaderSize = 5 // Magic byte (1) + Schema ID (4)
)

// StripFraming splits a Confluent-framed payload into its schema ID and the
// bare Avro body.
func StripFraming(payload []byte) (int, []byte, error) {
	if len(payload) < confluentWireFormatHeaderSize || payload[0] != confluentMagicByte {
		return 0, nil, &DecodeError{Err: fmt.Errorf("%w: missing magic byte or too short", ErrInvalidFraming)}
	}
	schemaID := int(binary.BigEndian.Uint32(payload[1:confluentWireFormatHeaderSize]))
	return schemaID, payload[confluentWireFormatHeaderSize:], nil
}

// AppendFraming prepends the magic byte and schema ID to body.
func AppendFraming(schemaID int, body []byte) ([]byte, error) {
	if schemaID < 0 || int64(schemaID) > math.MaxUint32 {
		return nil, fmt.Errorf("schema ID %d out of uint32 range", schemaID)
	}
	out := make([]byte, confluentWireFormatHeaderSize+len(body))
	out[0] = confluentMagicByte
	binary.BigEndian.PutUint32(out[1:confluentWireFormatHeaderSize], uint32(schemaID))
	copy(out[confluentWireFormatHeaderSize:], body)
	return out, nil
}
