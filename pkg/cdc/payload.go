package cdc

import (
	"encoding/base64"
	"fmt"

	"github.com/siqueiraa/deschemaer/pkg/avro"
)

// Encoding says how a payload arrived.
type Encoding uint8

const (
	// EncodingRaw is a payload that is already Avro binary.
	EncodingRaw Encoding = iota
	// EncodingBase64 is Avro binary wrapped in base64 text, the convention for
	// fields restricted to printable text such as a partition key.
	EncodingBase64
)

func (e Encoding) String() string {
	if e == EncodingBase64 {
		return "base64"
	}
	return "raw"
}

// ParseEncoding maps a config value onto an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "raw":
		return EncodingRaw, nil
	case "base64":
		return EncodingBase64, nil
	default:
		return EncodingRaw, fmt.Errorf("unknown payload encoding %q", s)
	}
}

// Payload is one half of a CDC message, either raw bytes or base64 text.
type Payload struct {
	data     []byte
	encoding Encoding
}

// Raw wraps Avro binary bytes.
func Raw(b []byte) Payload { return Payload{data: b, encoding: EncodingRaw} }

// Base64 wraps base64 text.
func Base64(s string) Payload { return Payload{data: []byte(s), encoding: EncodingBase64} }

// Base64Bytes wraps base64 text held in a byte slice.
func Base64Bytes(b []byte) Payload { return Payload{data: b, encoding: EncodingBase64} }

// NewPayload wraps b according to enc.
func NewPayload(b []byte, enc Encoding) Payload { return Payload{data: b, encoding: enc} }

func (p Payload) Encoding() Encoding { return p.encoding }

// Bytes returns the Avro binary carried by the payload. Base64 text is
// decoded with the standard alphabet; padding is optional.
func (p Payload) Bytes() ([]byte, error) {
	if p.encoding != EncodingBase64 {
		return p.data, nil
	}
	out := make([]byte, len(p.data))
	n, err := base64.StdEncoding.Decode(out, p.data)
	if err != nil {
		n, err = base64.RawStdEncoding.Decode(out, p.data)
		if err != nil {
			return nil, &avro.DecodeError{Err: fmt.Errorf("base64: %w", err)}
		}
	}
	return out[:n], nil
}
