package values

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgnative/pgnative/pkg/buffer"
	"github.com/pgnative/pgnative/registry"
	"github.com/pgnative/pgnative/wireoid"
)

// pgEpoch is the PostgreSQL binary epoch: 2000-01-01 00:00:00 UTC.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Decode interprets raw as the binary representation of a value whose
// server-reported type is oid. data == nil denotes SQL NULL and always
// decodes to Null() regardless of oid. reg resolves OIDs the static table
// below does not cover (array/composite/enum types learned at connect
// time); it may be nil, in which case only the static table applies.
func Decode(oid wireoid.OID, data []byte, reg *registry.Registry) (Value, error) {
	if data == nil {
		return Null(), nil
	}

	switch oid {
	case wireoid.Bool:
		if len(data) != 1 {
			return Value{}, fmt.Errorf("values: bool: expected 1 byte, got %d", len(data))
		}
		return NewBool(data[0] != 0), nil
	case wireoid.Bytea:
		return NewBytes(append([]byte(nil), data...)), nil
	case wireoid.Char:
		if len(data) != 1 {
			return Value{}, fmt.Errorf("values: char: expected 1 byte, got %d", len(data))
		}
		return NewString(string(data)), nil
	case wireoid.Name, wireoid.Text, wireoid.Unknown, wireoid.BPChar, wireoid.Varchar, wireoid.JSON:
		return NewString(string(data)), nil
	case wireoid.Int2:
		v, err := readInt(data, 2)
		return NewInt(v), err
	case wireoid.Int4:
		v, err := readInt(data, 4)
		return NewInt(v), err
	case wireoid.Int8:
		v, err := readInt(data, 8)
		return NewInt(v), err
	case wireoid.Float4:
		if len(data) != 4 {
			return Value{}, fmt.Errorf("values: float4: expected 4 bytes, got %d", len(data))
		}
		f, err := (&buffer.Reader{Msg: data}).GetFloat32()
		if err != nil {
			return Value{}, fmt.Errorf("values: float4: %w", err)
		}
		return NewFloat(float64(f)), nil
	case wireoid.Float8:
		if len(data) != 8 {
			return Value{}, fmt.Errorf("values: float8: expected 8 bytes, got %d", len(data))
		}
		f, err := (&buffer.Reader{Msg: data}).GetFloat64()
		if err != nil {
			return Value{}, fmt.Errorf("values: float8: %w", err)
		}
		return NewFloat(f), nil
	case wireoid.Date:
		if len(data) != 4 {
			return Value{}, fmt.Errorf("values: date: expected 4 bytes, got %d", len(data))
		}
		t, err := (&buffer.Reader{Msg: data}).GetDate()
		if err != nil {
			return Value{}, fmt.Errorf("values: date: %w", err)
		}
		return NewDate(t), nil
	case wireoid.Time:
		if len(data) != 8 {
			return Value{}, fmt.Errorf("values: time: expected 8 bytes, got %d", len(data))
		}
		d, err := (&buffer.Reader{Msg: data}).GetTimeOfDay()
		if err != nil {
			return Value{}, fmt.Errorf("values: time: %w", err)
		}
		return NewTime(d), nil
	case wireoid.Timestamp, wireoid.TimestampTZ:
		if len(data) != 8 {
			return Value{}, fmt.Errorf("values: timestamp: expected 8 bytes, got %d", len(data))
		}
		t, err := (&buffer.Reader{Msg: data}).GetTimestamp()
		if err != nil {
			return Value{}, fmt.Errorf("values: timestamp: %w", err)
		}
		return NewTimestamp(t), nil
	case wireoid.Interval:
		if len(data) != 16 {
			return Value{}, fmt.Errorf("values: interval: expected 16 bytes, got %d", len(data))
		}
		micros, days, months, err := (&buffer.Reader{Msg: data}).GetInterval()
		if err != nil {
			return Value{}, fmt.Errorf("values: interval: %w", err)
		}
		return NewInterval(Interval{Microseconds: micros, Days: days, Months: months}), nil
	case wireoid.TimeTZ:
		if len(data) != 12 {
			return Value{}, fmt.Errorf("values: timetz: expected 12 bytes, got %d", len(data))
		}
		micros := int64(binary.BigEndian.Uint64(data[0:8]))
		zoneOffset := int32(binary.BigEndian.Uint32(data[8:12]))
		return NewTimeTZ(time.Duration(micros)*time.Microsecond, -zoneOffset), nil
	case wireoid.UUID:
		if len(data) != 16 {
			return Value{}, fmt.Errorf("values: uuid: expected 16 bytes, got %d", len(data))
		}
		u, err := uuid.FromBytes(data)
		if err != nil {
			return Value{}, fmt.Errorf("values: uuid: %w", err)
		}
		return NewUUID(u), nil
	case wireoid.Record:
		return decodeComposite(data, reg, nil)
	case wireoid.RecordArray:
		return decodeArray(data, reg)
	}

	if wireoid.IsOIDClass(oid) {
		if len(data) != 4 {
			return Value{}, fmt.Errorf("values: oid: expected 4 bytes, got %d", len(data))
		}
		return NewInt(int64(binary.BigEndian.Uint32(data))), nil
	}

	if reg != nil {
		if reg.IsArrayType(oid) {
			return decodeArray(data, reg)
		}
		if reg.IsCompositeType(oid) {
			members, _ := reg.CompositeMembers(oid)
			return decodeComposite(data, reg, members)
		}
		if reg.IsEnumType(oid) {
			return NewString(string(data)), nil
		}
	}

	return Value{}, fmt.Errorf("values: unsupported type oid %d", oid)
}

func readInt(data []byte, width int) (int64, error) {
	if len(data) != width {
		return 0, fmt.Errorf("expected %d bytes, got %d", width, len(data))
	}
	switch width {
	case 2:
		return int64(int16(binary.BigEndian.Uint16(data))), nil
	case 4:
		return int64(int32(binary.BigEndian.Uint32(data))), nil
	case 8:
		return int64(binary.BigEndian.Uint64(data)), nil
	default:
		return 0, fmt.Errorf("unsupported integer width %d", width)
	}
}

// decodeArray parses the binary array layout: i32 dims, i32 hasNulls,
// u32 elementOid, per-dim (i32 length, i32 lowerBound), then elements in
// row-major order.
func decodeArray(data []byte, reg *registry.Registry) (Value, error) {
	r := newCursor(data)
	dims, err := r.int32()
	if err != nil {
		return Value{}, fmt.Errorf("values: array: dims: %w", err)
	}
	hasNulls, err := r.int32()
	if err != nil {
		return Value{}, fmt.Errorf("values: array: hasNulls: %w", err)
	}
	elemOID32, err := r.uint32()
	if err != nil {
		return Value{}, fmt.Errorf("values: array: elementOid: %w", err)
	}
	elemOID := wireoid.OID(elemOID32)

	if dims == 0 {
		return NewArray(&Array{ElementOID: elemOID}), nil
	}
	if dims < 0 {
		return Value{}, fmt.Errorf("values: array: negative dims %d", dims)
	}

	dimInfo := make([]ArrayDim, dims)
	total := 1
	for i := range dimInfo {
		length, err := r.int32()
		if err != nil {
			return Value{}, fmt.Errorf("values: array: dim %d length: %w", i, err)
		}
		lower, err := r.int32()
		if err != nil {
			return Value{}, fmt.Errorf("values: array: dim %d lowerBound: %w", i, err)
		}
		dimInfo[i] = ArrayDim{Length: length, LowerBound: lower}
		total *= int(length)
	}

	elements := make([]Value, 0, total)
	for i := 0; i < total; i++ {
		length, err := r.int32()
		if err != nil {
			return Value{}, fmt.Errorf("values: array: element %d length: %w", i, err)
		}
		if length == -1 {
			elements = append(elements, Null())
			continue
		}
		raw, err := r.bytes(int(length))
		if err != nil {
			return Value{}, fmt.Errorf("values: array: element %d: %w", i, err)
		}
		v, err := Decode(elemOID, raw, reg)
		if err != nil {
			return Value{}, fmt.Errorf("values: array: element %d: %w", i, err)
		}
		elements = append(elements, v)
	}

	_ = hasNulls
	return NewArray(&Array{ElementOID: elemOID, Dims: dimInfo, Elements: elements}), nil
}

// decodeComposite parses the binary composite layout: i32 fieldCount, then
// per field u32 fieldOid, i32 fieldLen (-1 = NULL), fieldLen bytes.
// members, when non-nil, supplies the field names by position.
func decodeComposite(data []byte, reg *registry.Registry, members []registry.CompositeMember) (Value, error) {
	r := newCursor(data)
	count, err := r.int32()
	if err != nil {
		return Value{}, fmt.Errorf("values: composite: fieldCount: %w", err)
	}
	if count < 0 {
		return Value{}, fmt.Errorf("values: composite: negative fieldCount %d", count)
	}

	fields := make([]CompositeField, 0, count)
	for i := 0; i < int(count); i++ {
		fieldOID32, err := r.uint32()
		if err != nil {
			return Value{}, fmt.Errorf("values: composite: field %d oid: %w", i, err)
		}
		length, err := r.int32()
		if err != nil {
			return Value{}, fmt.Errorf("values: composite: field %d length: %w", i, err)
		}

		var raw []byte
		if length != -1 {
			raw, err = r.bytes(int(length))
			if err != nil {
				return Value{}, fmt.Errorf("values: composite: field %d: %w", i, err)
			}
		}

		fieldOID := wireoid.OID(fieldOID32)
		v, err := Decode(fieldOID, raw, reg)
		if err != nil {
			return Value{}, fmt.Errorf("values: composite: field %d: %w", i, err)
		}
		name := ""
		if i < len(members) {
			name = members[i].Name
		}
		fields = append(fields, CompositeField{Name: name, OID: fieldOID, Value: v})
	}

	return NewComposite(&Composite{Fields: fields}), nil
}

// cursor is a small forward-only byte reader used only by the array and
// composite decoders, which recurse back into Decode per element/field and
// so need a cursor they can advance across a sequence of nested values
// rather than a single Get* call consuming the whole buffer at once.
type cursor struct {
	data []byte
}

func newCursor(data []byte) *cursor { return &cursor{data: data} }

func (c *cursor) int32() (int32, error) {
	v, err := c.uint32()
	return int32(v), err
}

func (c *cursor) uint32() (uint32, error) {
	if len(c.data) < 4 {
		return 0, fmt.Errorf("insufficient data: need 4 bytes, have %d", len(c.data))
	}
	v := binary.BigEndian.Uint32(c.data[:4])
	c.data = c.data[4:]
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if len(c.data) < n {
		return nil, fmt.Errorf("insufficient data: need %d bytes, have %d", n, len(c.data))
	}
	v := c.data[:n]
	c.data = c.data[n:]
	return v, nil
}
