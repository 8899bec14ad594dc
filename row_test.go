package pgnative

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pgnative/pgnative/values"
	"github.com/pgnative/pgnative/wireoid"
	"github.com/stretchr/testify/require"
)

// buildDataRowBody assembles a DataRow message body (minus the type/length
// framing buffer.Reader already strips) from column bytes, nil meaning SQL
// NULL.
func buildDataRowBody(columns [][]byte) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(columns)))
	for _, col := range columns {
		lenBuf := make([]byte, 4)
		if col == nil {
			binary.BigEndian.PutUint32(lenBuf, uint32(int32(-1)))
		} else {
			binary.BigEndian.PutUint32(lenBuf, uint32(int32(len(col))))
		}
		buf = append(buf, lenBuf...)
		buf = append(buf, col...)
	}
	return buf
}

func TestRow_Scan(t *testing.T) {
	t.Parallel()

	fields := []FieldDescriptor{
		{Name: "id", TypeOID: wireoid.Int4},
		{Name: "name", TypeOID: wireoid.Text},
	}
	body := buildDataRowBody([][]byte{int4Bytes(42), []byte("ferris")})

	row, err := newRow(fields, body, nil)
	require.NoError(t, err)

	var id int32
	var name string
	require.NoError(t, row.Scan(&id, &name))
	require.Equal(t, int32(42), id)
	require.Equal(t, "ferris", name)
}

func TestRow_Scan_NullIntoPointerZeroesVsNil(t *testing.T) {
	t.Parallel()

	fields := []FieldDescriptor{{Name: "n", TypeOID: wireoid.Int4}}
	body := buildDataRowBody([][]byte{nil})

	row, err := newRow(fields, body, nil)
	require.NoError(t, err)

	var direct int32 = 9
	require.NoError(t, row.Scan(&direct))
	require.Equal(t, int32(0), direct)

	row, err = newRow(fields, body, nil)
	require.NoError(t, err)

	ptr := new(int32)
	*ptr = 9
	pp := &ptr
	require.NoError(t, row.Scan(pp))
	require.Nil(t, *pp)
}

func TestRow_Scan_WrongDestinationCount(t *testing.T) {
	t.Parallel()

	fields := []FieldDescriptor{{Name: "id", TypeOID: wireoid.Int4}}
	body := buildDataRowBody([][]byte{int4Bytes(1)})

	row, err := newRow(fields, body, nil)
	require.NoError(t, err)

	var a, b int32
	err = row.Scan(&a, &b)
	require.Error(t, err)

	var paramErr *ParameterError
	require.ErrorAs(t, err, &paramErr)
}

func TestRow_ScanStruct(t *testing.T) {
	t.Parallel()

	fields := []FieldDescriptor{
		{Name: "id", TypeOID: wireoid.Int4},
		{Name: "full_name", TypeOID: wireoid.Text},
		{Name: "ignored", TypeOID: wireoid.Text},
	}
	body := buildDataRowBody([][]byte{int4Bytes(5), []byte("Ada Lovelace"), []byte("skip me")})

	row, err := newRow(fields, body, nil)
	require.NoError(t, err)

	var dest struct {
		ID       int32  `db:"id"`
		FullName string `db:"full_name"`
		Unused   string `db:"-"`
	}
	require.NoError(t, row.ScanStruct(&dest))
	require.Equal(t, int32(5), dest.ID)
	require.Equal(t, "Ada Lovelace", dest.FullName)
	require.Equal(t, "", dest.Unused)
}

func TestRow_ScanStruct_LowercasedFieldNameFallback(t *testing.T) {
	t.Parallel()

	fields := []FieldDescriptor{{Name: "id", TypeOID: wireoid.Int4}}
	body := buildDataRowBody([][]byte{int4Bytes(12)})

	row, err := newRow(fields, body, nil)
	require.NoError(t, err)

	var dest struct {
		ID int32
	}
	require.NoError(t, row.ScanStruct(&dest))
	require.Equal(t, int32(12), dest.ID)
}

func TestRow_Scan_TimestampColumn(t *testing.T) {
	t.Parallel()

	want := time.Date(2023, time.June, 1, 12, 30, 0, 0, time.UTC)
	encoded, _, err := values.Encode(wireoid.Timestamp, want)
	require.NoError(t, err)

	fields := []FieldDescriptor{{Name: "created_at", TypeOID: wireoid.Timestamp}}
	body := buildDataRowBody([][]byte{encoded})

	row, err := newRow(fields, body, nil)
	require.NoError(t, err)

	var got time.Time
	require.NoError(t, row.Scan(&got))
	require.True(t, want.Equal(got))
}
