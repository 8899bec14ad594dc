package pgnative

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgnative/pgnative/pkg/buffer"
	"github.com/pgnative/pgnative/registry"
	"github.com/pgnative/pgnative/values"
)

// Row is one decoded DataRow, exposed three ways: by position and name for
// callers that want the dynamic values.Value container, Scan for
// positional assignment into known-type destinations (database/sql's
// convention), and ScanStruct for named assignment into a tagged struct.
// Go has no built-in generic row shape, so all three are offered rather
// than picking one.
type Row struct {
	fields []FieldDescriptor
	values []values.Value
}

func newRow(fields []FieldDescriptor, body []byte, reg *registry.Registry) (*Row, error) {
	vals, err := decodeDataRow(fields, body, reg)
	if err != nil {
		return nil, err
	}
	return &Row{fields: fields, values: vals}, nil
}

// decodeDataRow parses a DataRow body: i16 fieldCount, then per field
// i32 length (-1 = NULL) followed by length bytes.
func decodeDataRow(fields []FieldDescriptor, body []byte, reg *registry.Registry) ([]values.Value, error) {
	r := &buffer.Reader{Msg: body}
	count, err := r.GetInt16()
	if err != nil {
		return nil, err
	}
	if int(count) != len(fields) {
		return nil, &ProtocolError{Message: fmt.Sprintf("DataRow: expected %d columns, got %d", len(fields), count)}
	}

	vals := make([]values.Value, count)
	for i := 0; i < int(count); i++ {
		length, err := r.GetInt32()
		if err != nil {
			return nil, err
		}

		var raw []byte
		if length != -1 {
			raw, err = r.GetBytes(int(length))
			if err != nil {
				return nil, err
			}
		}

		v, err := values.Decode(fields[i].TypeOID, raw, reg)
		if err != nil {
			return nil, &TypeError{Message: fmt.Sprintf("decoding column %q: %v", fields[i].Name, err)}
		}
		vals[i] = v
	}

	return vals, nil
}

// Values returns every column of the row in positional order.
func (r *Row) Values() []values.Value { return r.values }

// ByName returns the value of the column named name, if the result set
// carried a column by that name. Column names may repeat; occurrence
// selects the 0-based duplicate and defaults to the first.
func (r *Row) ByName(name string, occurrence ...int) (values.Value, bool) {
	want := 0
	if len(occurrence) > 0 {
		want = occurrence[0]
	}
	for i, f := range r.fields {
		if f.Name == name {
			if want == 0 {
				return r.values[i], true
			}
			want--
		}
	}
	return values.Value{}, false
}

// Scan assigns each column to the corresponding destination pointer in
// dest, in positional order. NULL assigns the destination's zero value,
// except through a **T destination, which is set to nil instead.
func (r *Row) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return &ParameterError{Message: fmt.Sprintf("Scan: expected %d destinations, got %d", len(r.values), len(dest))}
	}
	for i, d := range dest {
		if err := assignValue(r.values[i], d); err != nil {
			return fmt.Errorf("pgnative: scanning column %q: %w", r.fields[i].Name, err)
		}
	}
	return nil
}

// ScanStruct assigns columns to the exported fields of the struct pointed
// to by dest, matched by a `db:"..."` tag or, absent a tag, the
// lowercased field name. A column with no matching field, or a field with
// no matching column, is left untouched.
func (r *Row) ScanStruct(dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return &ParameterError{Message: fmt.Sprintf("ScanStruct requires a non-nil pointer to a struct, got %T", dest)}
	}

	sv := rv.Elem()
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}

		tag := field.Tag.Get("db")
		if tag == "-" {
			continue
		}
		name := tag
		if name == "" {
			name = strings.ToLower(field.Name)
		}

		v, ok := r.ByName(name)
		if !ok {
			continue
		}
		if err := assignValue(v, sv.Field(i).Addr().Interface()); err != nil {
			return fmt.Errorf("pgnative: scanning column %q into field %s: %w", name, field.Name, err)
		}
	}
	return nil
}

func typeMismatch(v values.Value, want string) error {
	return &TypeError{Message: fmt.Sprintf("cannot scan %s into %s", v.Kind(), want)}
}

// assignValue is the shared core of Scan and ScanStruct: it dispatches on
// the destination's concrete type for the common cases and falls back to
// reflection for anything else, including **T destinations that want to
// distinguish NULL from the zero value.
func assignValue(v values.Value, dest any) error {
	switch d := dest.(type) {
	case *bool:
		if v.IsNull() {
			*d = false
			return nil
		}
		b, ok := v.Bool()
		if !ok {
			return typeMismatch(v, "bool")
		}
		*d = b
		return nil
	case *int:
		if v.IsNull() {
			*d = 0
			return nil
		}
		i, ok := v.Int()
		if !ok {
			return typeMismatch(v, "int")
		}
		*d = int(i)
		return nil
	case *int16:
		if v.IsNull() {
			*d = 0
			return nil
		}
		i, ok := v.Int()
		if !ok {
			return typeMismatch(v, "int16")
		}
		*d = int16(i)
		return nil
	case *int32:
		if v.IsNull() {
			*d = 0
			return nil
		}
		i, ok := v.Int()
		if !ok {
			return typeMismatch(v, "int32")
		}
		*d = int32(i)
		return nil
	case *int64:
		if v.IsNull() {
			*d = 0
			return nil
		}
		i, ok := v.Int()
		if !ok {
			return typeMismatch(v, "int64")
		}
		*d = i
		return nil
	case *float32:
		if v.IsNull() {
			*d = 0
			return nil
		}
		f, ok := v.Float()
		if !ok {
			return typeMismatch(v, "float32")
		}
		*d = float32(f)
		return nil
	case *float64:
		if v.IsNull() {
			*d = 0
			return nil
		}
		f, ok := v.Float()
		if !ok {
			return typeMismatch(v, "float64")
		}
		*d = f
		return nil
	case *string:
		if v.IsNull() {
			*d = ""
			return nil
		}
		s, ok := v.String()
		if !ok {
			return typeMismatch(v, "string")
		}
		*d = s
		return nil
	case *[]byte:
		if v.IsNull() {
			*d = nil
			return nil
		}
		b, ok := v.Bytes()
		if !ok {
			return typeMismatch(v, "[]byte")
		}
		*d = b
		return nil
	case *time.Time:
		if v.IsNull() {
			*d = time.Time{}
			return nil
		}
		switch v.Kind() {
		case values.KindDate:
			t, _ := v.Date()
			*d = t
		case values.KindTimestamp:
			t, _ := v.Timestamp()
			*d = t
		default:
			return typeMismatch(v, "time.Time")
		}
		return nil
	case *time.Duration:
		if v.IsNull() {
			*d = 0
			return nil
		}
		dur, _, _, ok := v.Time()
		if !ok {
			return typeMismatch(v, "time.Duration")
		}
		*d = dur
		return nil
	case *values.Interval:
		if v.IsNull() {
			*d = values.Interval{}
			return nil
		}
		iv, ok := v.IntervalValue()
		if !ok {
			return typeMismatch(v, "values.Interval")
		}
		*d = iv
		return nil
	case *uuid.UUID:
		if v.IsNull() {
			*d = uuid.UUID{}
			return nil
		}
		u, ok := v.UUID()
		if !ok {
			return typeMismatch(v, "uuid.UUID")
		}
		*d = u
		return nil
	case *values.Value:
		*d = v
		return nil
	default:
		return assignReflect(v, dest)
	}
}

// assignReflect handles **T destinations (nil on NULL, a freshly allocated
// T otherwise) and named types whose underlying kind matches a supported
// scalar.
func assignReflect(v values.Value, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &TypeError{Message: fmt.Sprintf("Scan destination must be a non-nil pointer, got %T", dest)}
	}

	elem := rv.Elem()
	if elem.Kind() == reflect.Ptr {
		if v.IsNull() {
			elem.Set(reflect.Zero(elem.Type()))
			return nil
		}
		inner := reflect.New(elem.Type().Elem())
		if err := assignValue(v, inner.Interface()); err != nil {
			return err
		}
		elem.Set(inner)
		return nil
	}

	if v.IsNull() {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}

	switch elem.Kind() {
	case reflect.Bool:
		b, ok := v.Bool()
		if !ok {
			return typeMismatch(v, elem.Type().String())
		}
		elem.SetBool(b)
	case reflect.String:
		s, ok := v.String()
		if !ok {
			return typeMismatch(v, elem.Type().String())
		}
		elem.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := v.Int()
		if !ok {
			return typeMismatch(v, elem.Type().String())
		}
		elem.SetInt(i)
	case reflect.Float32, reflect.Float64:
		f, ok := v.Float()
		if !ok {
			return typeMismatch(v, elem.Type().String())
		}
		elem.SetFloat(f)
	case reflect.Slice:
		if elem.Type().Elem().Kind() != reflect.Uint8 {
			return &TypeError{Message: fmt.Sprintf("cannot scan into slice type %s", elem.Type())}
		}
		b, ok := v.Bytes()
		if !ok {
			return typeMismatch(v, elem.Type().String())
		}
		elem.SetBytes(b)
	default:
		return &TypeError{Message: fmt.Sprintf("cannot scan into %s", elem.Type())}
	}
	return nil
}
