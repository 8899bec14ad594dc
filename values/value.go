// Package values implements the dynamic "any value" container and the
// binary encode/decode rules for every scalar, array, and composite type
// the connection core supports.
package values

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgnative/pgnative/wireoid"
)

// Kind identifies which alternative of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindDate
	KindTime
	KindTimestamp
	KindInterval
	KindUUID
	KindArray
	KindComposite
)

// String renders the Kind's name, used in type-mismatch error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindTimestamp:
		return "timestamp"
	case KindInterval:
		return "interval"
	case KindUUID:
		return "uuid"
	case KindArray:
		return "array"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Interval is a PostgreSQL interval value. Unlike time.Duration it keeps
// the calendar components (days, months) distinct from elapsed time, since
// "1 month" has no fixed length in microseconds.
type Interval struct {
	Microseconds int64
	Days         int32
	Months       int32
}

// Array is a decoded PostgreSQL array: one or more dimensions of Value
// elements in row-major order, plus the element type OID the server sent.
type Array struct {
	ElementOID wireoid.OID
	Dims       []ArrayDim
	Elements   []Value
}

// ArrayDim is one dimension of an Array, as sent on the wire.
type ArrayDim struct {
	Length      int32
	LowerBound  int32
}

// Composite is a decoded composite (row) value: ordered fields, each
// carrying its own type OID, plus field names when the type registry knew
// them.
type Composite struct {
	Fields []CompositeField
}

// CompositeField is one member of a Composite value.
type CompositeField struct {
	Name  string // empty when the registry has no attribute-name mapping
	OID   wireoid.OID
	Value Value
}

// Value is a tagged union over every shape the value codec can decode.
// The zero Value is Null.
type Value struct {
	kind      Kind
	boolVal   bool
	intVal    int64
	floatVal  float64
	strVal    string
	bytesVal  []byte
	dateVal   time.Time
	timeVal   time.Duration
	tsVal     time.Time
	tzOffset  int32
	hasTZ     bool
	interval  Interval
	uuidVal   uuid.UUID
	arrayVal  *Array
	compVal   *Composite
}

// Kind reports which alternative is populated.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the SQL NULL value.
func (v Value) IsNull() bool { return v.kind == KindNull }

func Null() Value { return Value{kind: KindNull} }

func NewBool(b bool) Value   { return Value{kind: KindBool, boolVal: b} }
func NewInt(i int64) Value   { return Value{kind: KindInt, intVal: i} }
func NewFloat(f float64) Value { return Value{kind: KindFloat, floatVal: f} }
func NewString(s string) Value { return Value{kind: KindString, strVal: s} }
func NewBytes(b []byte) Value  { return Value{kind: KindBytes, bytesVal: b} }
func NewDate(t time.Time) Value { return Value{kind: KindDate, dateVal: t} }
func NewTime(d time.Duration) Value { return Value{kind: KindTime, timeVal: d} }
func NewTimestamp(t time.Time) Value { return Value{kind: KindTimestamp, tsVal: t} }

// NewTimeTZ builds a Value carrying a time-of-day plus a UTC zone offset
// in seconds, as decoded from a timetz column.
func NewTimeTZ(d time.Duration, zoneOffsetSeconds int32) Value {
	return Value{kind: KindTime, timeVal: d, tzOffset: zoneOffsetSeconds, hasTZ: true}
}

func NewInterval(i Interval) Value { return Value{kind: KindInterval, interval: i} }
func NewUUID(u uuid.UUID) Value    { return Value{kind: KindUUID, uuidVal: u} }
func NewArray(a *Array) Value      { return Value{kind: KindArray, arrayVal: a} }
func NewComposite(c *Composite) Value { return Value{kind: KindComposite, compVal: c} }

// downcastError reports a mismatch between the requested accessor and the
// value's actual kind.
func downcastError(want string, v Value) error {
	return fmt.Errorf("values: value holds %s, not %s", v.kindName(), want)
}

func (v Value) kindName() string { return v.kind.String() }

// Bool returns v as a bool. ok is false if v is not a bool.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.boolVal, true
}

// Int returns v as an int64. ok is false if v is not an int.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.intVal, true
}

// Float returns v as a float64. ok is false if v is not a float.
func (v Value) Float() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.floatVal, true
}

// String returns v as a string. ok is false if v is not a string.
func (v Value) String() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.strVal, true
}

// Bytes returns v as a byte slice. ok is false if v is not bytes.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.bytesVal, true
}

// Date returns v as a time.Time truncated to a calendar day. ok is false if
// v is not a date.
func (v Value) Date() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.dateVal, true
}

// Time returns v as a time.Duration since midnight, plus the UTC zone
// offset in seconds when the source column was timetz (hasTZ).
func (v Value) Time() (d time.Duration, zoneOffsetSeconds int32, hasTZ bool, ok bool) {
	if v.kind != KindTime {
		return 0, 0, false, false
	}
	return v.timeVal, v.tzOffset, v.hasTZ, true
}

// Timestamp returns v as a time.Time. ok is false if v is not a timestamp.
func (v Value) Timestamp() (time.Time, bool) {
	if v.kind != KindTimestamp {
		return time.Time{}, false
	}
	return v.tsVal, true
}

// IntervalValue returns v as an Interval. ok is false if v is not an interval.
func (v Value) IntervalValue() (Interval, bool) {
	if v.kind != KindInterval {
		return Interval{}, false
	}
	return v.interval, true
}

// UUID returns v as a uuid.UUID. ok is false if v is not a uuid.
func (v Value) UUID() (uuid.UUID, bool) {
	if v.kind != KindUUID {
		return uuid.UUID{}, false
	}
	return v.uuidVal, true
}

// ArrayValue returns v as an *Array. ok is false if v is not an array.
func (v Value) ArrayValue() (*Array, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arrayVal, true
}

// CompositeValue returns v as a *Composite. ok is false if v is not a composite.
func (v Value) CompositeValue() (*Composite, bool) {
	if v.kind != KindComposite {
		return nil, false
	}
	return v.compVal, true
}

// MustString panics if v is not a string.
func (v Value) MustString() string {
	s, ok := v.String()
	if !ok {
		panic(downcastError("string", v))
	}
	return s
}

// MustInt panics if v is not an int.
func (v Value) MustInt() int64 {
	i, ok := v.Int()
	if !ok {
		panic(downcastError("int", v))
	}
	return i
}
