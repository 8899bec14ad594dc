package values

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgnative/pgnative/wireoid"
	"github.com/stretchr/testify/require"
)

func TestDecode_Null(t *testing.T) {
	t.Parallel()

	v, err := Decode(wireoid.Int4, nil, nil)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestDecode_Scalars(t *testing.T) {
	t.Parallel()

	t.Run("bool", func(t *testing.T) {
		v, err := Decode(wireoid.Bool, []byte{1}, nil)
		require.NoError(t, err)
		b, ok := v.Bool()
		require.True(t, ok)
		require.True(t, b)
	})

	t.Run("int4", func(t *testing.T) {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(-42)))
		v, err := Decode(wireoid.Int4, buf, nil)
		require.NoError(t, err)
		i, ok := v.Int()
		require.True(t, ok)
		require.Equal(t, int64(-42), i)
	})

	t.Run("float8", func(t *testing.T) {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(3.5))
		v, err := Decode(wireoid.Float8, buf, nil)
		require.NoError(t, err)
		f, ok := v.Float()
		require.True(t, ok)
		require.Equal(t, 3.5, f)
	})

	t.Run("text", func(t *testing.T) {
		v, err := Decode(wireoid.Text, []byte("hello"), nil)
		require.NoError(t, err)
		s, ok := v.String()
		require.True(t, ok)
		require.Equal(t, "hello", s)
	})

	t.Run("uuid", func(t *testing.T) {
		u := uuid.New()
		v, err := Decode(wireoid.UUID, u[:], nil)
		require.NoError(t, err)
		got, ok := v.UUID()
		require.True(t, ok)
		require.Equal(t, u, got)
	})
}

func TestDecode_DateTimeRoundTrip(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	encoded, _, err := Encode(wireoid.Date, want)
	require.NoError(t, err)

	v, err := Decode(wireoid.Date, encoded, nil)
	require.NoError(t, err)
	got, ok := v.Date()
	require.True(t, ok)
	require.True(t, want.Equal(got))
}

func TestDecode_Interval(t *testing.T) {
	t.Parallel()

	iv := Interval{Microseconds: 1_500_000, Days: 3, Months: 2}
	encoded, _, err := Encode(wireoid.Interval, iv)
	require.NoError(t, err)

	v, err := Decode(wireoid.Interval, encoded, nil)
	require.NoError(t, err)
	got, ok := v.IntervalValue()
	require.True(t, ok)
	require.Equal(t, iv, got)
}

func TestDecode_Array(t *testing.T) {
	t.Parallel()

	// one dimension, 3 int4 elements, no nulls
	buf := []byte{}
	appendInt32 := func(n int32) {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		buf = append(buf, b...)
	}
	appendUint32 := func(n uint32) {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, n)
		buf = append(buf, b...)
	}

	appendInt32(1) // dims
	appendInt32(0) // hasNulls
	appendUint32(uint32(wireoid.Int4))
	appendInt32(3) // dim length
	appendInt32(1) // lower bound
	for _, n := range []int32{10, 20, 30} {
		appendInt32(4) // element length
		appendInt32(n)
	}

	v, err := Decode(wireoid.RecordArray, buf, nil)
	require.NoError(t, err)
	arr, ok := v.ArrayValue()
	require.True(t, ok)
	require.Equal(t, wireoid.Int4, arr.ElementOID)
	require.Len(t, arr.Elements, 3)

	for i, want := range []int64{10, 20, 30} {
		got, ok := arr.Elements[i].Int()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestDecode_Composite(t *testing.T) {
	t.Parallel()

	var buf []byte
	appendInt32 := func(n int32) {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		buf = append(buf, b...)
	}
	appendUint32 := func(n uint32) {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, n)
		buf = append(buf, b...)
	}

	appendInt32(2) // fieldCount
	appendUint32(uint32(wireoid.Int4))
	appendInt32(4)
	appendInt32(99)
	appendUint32(uint32(wireoid.Text))
	appendInt32(3)
	buf = append(buf, []byte("abc")...)

	v, err := Decode(wireoid.Record, buf, nil)
	require.NoError(t, err)
	comp, ok := v.CompositeValue()
	require.True(t, ok)
	require.Len(t, comp.Fields, 2)

	i, ok := comp.Fields[0].Value.Int()
	require.True(t, ok)
	require.Equal(t, int64(99), i)

	s, ok := comp.Fields[1].Value.String()
	require.True(t, ok)
	require.Equal(t, "abc", s)
}

func TestDecode_UnsupportedOIDWithoutRegistry(t *testing.T) {
	t.Parallel()

	_, err := Decode(wireoid.OID(999999), []byte{1}, nil)
	require.Error(t, err)
}
