package values

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgnative/pgnative/wireoid"
	"github.com/stretchr/testify/require"
)

func TestEncode_Null(t *testing.T) {
	t.Parallel()

	raw, format, err := Encode(wireoid.Int4, nil)
	require.NoError(t, err)
	require.Nil(t, raw)
	require.Equal(t, BinaryFormat, format)
}

func TestEncode_TextualTypeUsesTextFormat(t *testing.T) {
	t.Parallel()

	raw, format, err := Encode(wireoid.Text, "hello")
	require.NoError(t, err)
	require.Equal(t, TextFormat, format)
	require.Equal(t, "hello", string(raw))
}

func TestEncode_BinaryScalars(t *testing.T) {
	t.Parallel()

	t.Run("int4", func(t *testing.T) {
		raw, format, err := Encode(wireoid.Int4, int32(-7))
		require.NoError(t, err)
		require.Equal(t, BinaryFormat, format)

		v, err := Decode(wireoid.Int4, raw, nil)
		require.NoError(t, err)
		i, ok := v.Int()
		require.True(t, ok)
		require.Equal(t, int64(-7), i)
	})

	t.Run("bool", func(t *testing.T) {
		raw, format, err := Encode(wireoid.Bool, true)
		require.NoError(t, err)
		require.Equal(t, BinaryFormat, format)
		require.Equal(t, []byte{1}, raw)
	})

	t.Run("uuid", func(t *testing.T) {
		u := uuid.New()
		raw, _, err := Encode(wireoid.UUID, u)
		require.NoError(t, err)

		v, err := Decode(wireoid.UUID, raw, nil)
		require.NoError(t, err)
		got, ok := v.UUID()
		require.True(t, ok)
		require.Equal(t, u, got)
	})
}

func TestEncode_TypeMismatch(t *testing.T) {
	t.Parallel()

	_, _, err := Encode(wireoid.Int4, "not an int")
	require.Error(t, err)
}

func TestEncode_DurationRoundTrip(t *testing.T) {
	t.Parallel()

	d := 3*time.Hour + 30*time.Minute
	raw, _, err := Encode(wireoid.Time, d)
	require.NoError(t, err)

	v, err := Decode(wireoid.Time, raw, nil)
	require.NoError(t, err)
	got, _, _, ok := v.Time()
	require.True(t, ok)
	require.Equal(t, d, got)
}

func TestEncode_UnsupportedOID(t *testing.T) {
	t.Parallel()

	_, _, err := Encode(wireoid.OID(999999), "x")
	require.Error(t, err)
}
