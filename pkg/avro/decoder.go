package avro

import (
	"errors"
	"math"
	"unicode/utf8"
)

// maxVarintLen is the longest zig-zag varint a 64-bit value can need.
const maxVarintLen = 10

// Decode reads one record laid out by schema from payload. The payload must
// hold exactly one record in Avro binary encoding with no header or framing.
// On failure it returns a *DecodeError and no record.
func Decode(schema *SchemaDefinition, payload []byte) (Record, error) {
	rec, n, err := DecodePrefix(schema, payload)
	if err != nil {
		return nil, err
	}
	if n != len(payload) {
		return nil, &DecodeError{Schema: schema.Name, Offset: n, Err: ErrTrailingBytes}
	}
	return rec, nil
}

// DecodePrefix reads one record from the start of payload and reports how
// many bytes it consumed. Bytes after the last field are left unread.
func DecodePrefix(schema *SchemaDefinition, payload []byte) (Record, int, error) {
	if schema == nil {
		return nil, 0, &DecodeError{Err: errors.New("nil schema")}
	}

	r := &reader{buf: payload}
	rec := make(Record, 0, len(schema.Fields))
	for i := range schema.Fields {
		f := &schema.Fields[i]
		v, err := r.readField(f.Type)
		if err != nil {
			return nil, 0, &DecodeError{Schema: schema.Name, Field: f.Name, Offset: r.pos, Err: err}
		}
		rec = append(rec, Entry{Name: f.Name, Value: v})
	}
	return rec, r.pos, nil
}

// reader walks a byte slice; pos never moves past len(buf).
type reader struct {
	buf []byte
	pos int
}

func (r *reader) readField(t FieldType) (any, error) {
	if t.Nullable {
		branch, err := r.readLong()
		if err != nil {
			return nil, err
		}
		switch branch {
		case 0:
			return nil, nil
		case 1:
		default:
			return nil, ErrBadUnionIndex
		}
	}
	return r.readValue(t.Kind)
}

func (r *reader) readValue(k Kind) (any, error) {
	switch k {
	case KindString:
		return r.readString()
	case KindBoolean:
		return r.readBool()
	case KindInt:
		return r.readInt()
	case KindLong:
		return r.readLong()
	default:
		return nil, errors.New("unsupported kind " + k.String())
	}
}

// readLong reads a zig-zag encoded variable-length integer.
func (r *reader) readLong() (int64, error) {
	var u uint64
	var shift uint
	for i := 0; i < maxVarintLen; i++ {
		if r.pos >= len(r.buf) {
			return 0, ErrTruncated
		}
		b := r.buf[r.pos]
		r.pos++
		if i == maxVarintLen-1 && b > 1 {
			return 0, ErrMalformedVarint
		}
		u |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return int64(u>>1) ^ -int64(u&1), nil
		}
		shift += 7
	}
	return 0, ErrMalformedVarint
}

func (r *reader) readInt() (int32, error) {
	v, err := r.readLong()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, ErrIntOverflow
	}
	return int32(v), nil
}

func (r *reader) readBool() (bool, error) {
	if r.pos >= len(r.buf) {
		return false, ErrTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b != 0, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readLong()
	if err != nil {
		return "", err
	}
	if n < 0 || n > int64(len(r.buf)-r.pos) {
		return "", ErrLengthOverrun
	}
	b := r.buf[r.pos : r.pos+int(n)]
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	r.pos += int(n)
	return string(b), nil
}
