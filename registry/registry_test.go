package registry

import (
	"context"
	"testing"

	"github.com/pgnative/pgnative/wireoid"
	"github.com/stretchr/testify/require"
)

// fakeQuerier answers each catalog query with a canned row set, keyed by the
// exact SQL text Load sends.
type fakeQuerier struct {
	rows map[string][][]any
}

func (f *fakeQuerier) QueryCatalogRows(ctx context.Context, sql string) ([][]any, error) {
	return f.rows[sql], nil
}

func TestRegistry_Load(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{rows: map[string][][]any{
		arrayTypesQuery: {
			{int64(1007), int64(23)}, // _int4 -> int4
		},
		compositeTypesQuery: {
			{int64(20000), "id", int64(23)},
			{int64(20000), "label", int64(25)},
		},
		enumLabelsQuery: {
			{int64(30000), int64(1), "red"},
			{int64(30000), int64(2), "green"},
		},
	}}

	reg := New()
	require.NoError(t, reg.Load(context.Background(), q))

	elem, ok := reg.ElementOID(wireoid.OID(1007))
	require.True(t, ok)
	require.Equal(t, wireoid.OID(23), elem)
	require.True(t, reg.IsArrayType(wireoid.OID(1007)))
	require.False(t, reg.IsArrayType(wireoid.OID(9999)))

	members, ok := reg.CompositeMembers(wireoid.OID(20000))
	require.True(t, ok)
	require.Equal(t, []CompositeMember{
		{Name: "id", OID: wireoid.OID(23)},
		{Name: "label", OID: wireoid.OID(25)},
	}, members)
	require.True(t, reg.IsCompositeType(wireoid.OID(20000)))

	label, ok := reg.EnumLabel(wireoid.OID(30000), wireoid.OID(1))
	require.True(t, ok)
	require.Equal(t, "red", label)
	require.True(t, reg.IsEnumType(wireoid.OID(30000)))

	label, ok = reg.EnumLabelByOID(wireoid.OID(2))
	require.True(t, ok)
	require.Equal(t, "green", label)

	_, ok = reg.EnumLabelByOID(wireoid.OID(999))
	require.False(t, ok)
}

func TestRegistry_Reload_ReplacesPreviousSnapshot(t *testing.T) {
	t.Parallel()

	first := &fakeQuerier{rows: map[string][][]any{
		arrayTypesQuery:     {{int64(1007), int64(23)}},
		compositeTypesQuery: nil,
		enumLabelsQuery:     nil,
	}}
	second := &fakeQuerier{rows: map[string][][]any{
		arrayTypesQuery:     nil,
		compositeTypesQuery: nil,
		enumLabelsQuery:     nil,
	}}

	reg := New()
	require.NoError(t, reg.Load(context.Background(), first))
	require.True(t, reg.IsArrayType(wireoid.OID(1007)))

	require.NoError(t, reg.Reload(context.Background(), second))
	require.False(t, reg.IsArrayType(wireoid.OID(1007)))
}

func TestRegistry_EmptySnapshot(t *testing.T) {
	t.Parallel()

	reg := New()
	require.NotNil(t, reg.Types)
	require.False(t, reg.IsArrayType(wireoid.OID(1)))
	require.False(t, reg.IsCompositeType(wireoid.OID(1)))
	require.False(t, reg.IsEnumType(wireoid.OID(1)))
}
