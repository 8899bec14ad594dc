package values

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pgnative/pgnative/wireoid"
)

// FormatCode is a wire format code: 0 for text, 1 for binary.
type FormatCode int16

const (
	TextFormat   FormatCode = 0
	BinaryFormat FormatCode = 1
)

// Encode produces the Bind-frame representation of v for parameter type
// oid: the bytes to send (nil means SQL NULL, encoded by the caller as
// length -1) and the format code to declare for it. Per spec, textual
// types are sent as text; everything else this codec supports is sent
// binary.
func Encode(oid wireoid.OID, v any) ([]byte, FormatCode, error) {
	if v == nil {
		return nil, BinaryFormat, nil
	}

	switch oid {
	case wireoid.Text, wireoid.Varchar, wireoid.BPChar, wireoid.Name, wireoid.Unknown, wireoid.JSON:
		s, err := asString(v)
		if err != nil {
			return nil, TextFormat, err
		}
		return []byte(s), TextFormat, nil
	case wireoid.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, BinaryFormat, fmt.Errorf("values: encode bool: got %T", v)
		}
		if b {
			return []byte{1}, BinaryFormat, nil
		}
		return []byte{0}, BinaryFormat, nil
	case wireoid.Int2:
		i, err := asInt64(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(i)))
		return buf, BinaryFormat, nil
	case wireoid.Int4:
		i, err := asInt64(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(i)))
		return buf, BinaryFormat, nil
	case wireoid.Int8:
		i, err := asInt64(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(i))
		return buf, BinaryFormat, nil
	case wireoid.Float4:
		f, err := asFloat64(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, BinaryFormat, nil
	case wireoid.Float8:
		f, err := asFloat64(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
		return buf, BinaryFormat, nil
	case wireoid.Bytea:
		b, ok := v.([]byte)
		if !ok {
			return nil, BinaryFormat, fmt.Errorf("values: encode bytea: got %T", v)
		}
		return b, BinaryFormat, nil
	case wireoid.Date:
		t, err := asTime(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		days := int32(t.UTC().Sub(pgEpoch).Hours() / 24)
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(days))
		return buf, BinaryFormat, nil
	case wireoid.Timestamp, wireoid.TimestampTZ:
		t, err := asTime(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		micros := t.UTC().Sub(pgEpoch).Microseconds()
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(micros))
		return buf, BinaryFormat, nil
	case wireoid.Time:
		d, err := asDuration(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(d.Microseconds()))
		return buf, BinaryFormat, nil
	case wireoid.Interval:
		iv, ok := v.(Interval)
		if !ok {
			return nil, BinaryFormat, fmt.Errorf("values: encode interval: got %T, want values.Interval", v)
		}
		buf := make([]byte, 16)
		binary.BigEndian.PutUint64(buf[0:8], uint64(iv.Microseconds))
		binary.BigEndian.PutUint32(buf[8:12], uint32(iv.Days))
		binary.BigEndian.PutUint32(buf[12:16], uint32(iv.Months))
		return buf, BinaryFormat, nil
	case wireoid.UUID:
		u, err := asUUID(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		return u[:], BinaryFormat, nil
	}

	if wireoid.IsOIDClass(oid) {
		i, err := asInt64(v)
		if err != nil {
			return nil, BinaryFormat, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(i))
		return buf, BinaryFormat, nil
	}

	return nil, BinaryFormat, fmt.Errorf("values: encoding for type oid %d is not supported", oid)
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("values: encode text: got %T, want string", v)
	}
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("values: encode int: got %T, want an integer", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	default:
		return 0, fmt.Errorf("values: encode float: got %T, want a float", v)
	}
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("values: encode date/timestamp: got %T, want time.Time", v)
	}
}

func asDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	default:
		return 0, fmt.Errorf("values: encode time: got %T, want time.Duration", v)
	}
}

func asUUID(v any) (uuid.UUID, error) {
	switch u := v.(type) {
	case uuid.UUID:
		return u, nil
	case string:
		return uuid.Parse(u)
	default:
		return uuid.UUID{}, fmt.Errorf("values: encode uuid: got %T, want uuid.UUID", v)
	}
}
