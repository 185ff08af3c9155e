package avro

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated       = errors.New("payload truncated")
	ErrBadUnionIndex   = errors.New("union branch index out of range")
	ErrLengthOverrun   = errors.New("length exceeds remaining payload")
	ErrIntOverflow     = errors.New("value overflows int")
	ErrMalformedVarint = errors.New("malformed varint")
	ErrInvalidUTF8     = errors.New("string is not valid UTF-8")
	ErrTrailingBytes   = errors.New("trailing bytes after record")
	ErrInvalidFraming  = errors.New("invalid wire format")
)

// DecodeError reports a payload that does not match its schema. Offset is the
// byte position at which decoding gave up. Part names the message half
// ("key" or "value") when the error comes out of a CDC transform.
type DecodeError struct {
	Part   string
	Schema string
	Field  string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	prefix := "avro: decode"
	if e.Part != "" {
		prefix += " " + e.Part
	}
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s %s.%s at byte %d: %v", prefix, e.Schema, e.Field, e.Offset, e.Err)
	case e.Schema != "":
		return fmt.Sprintf("%s %s at byte %d: %v", prefix, e.Schema, e.Offset, e.Err)
	default:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Reason is a short label for the underlying failure, suitable for metrics.
func (e *DecodeError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrTruncated):
		return "truncated"
	case errors.Is(e.Err, ErrBadUnionIndex):
		return "union_index"
	case errors.Is(e.Err, ErrLengthOverrun):
		return "length_overrun"
	case errors.Is(e.Err, ErrIntOverflow):
		return "int_overflow"
	case errors.Is(e.Err, ErrMalformedVarint):
		return "varint"
	case errors.Is(e.Err, ErrInvalidUTF8):
		return "utf8"
	case errors.Is(e.Err, ErrTrailingBytes):
		return "trailing_bytes"
	case errors.Is(e.Err, ErrInvalidFraming):
		return "framing"
	default:
		return "other"
	}
}
