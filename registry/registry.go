// Package registry holds the per-connection snapshot of server-defined
// array, composite, and enum types learned from the system catalogs at
// connect time. It embeds a pgtype.Map the same way the teacher's Server
// embeds one for its own static type table, and layers dynamic discovery
// on top for types pgtype.Map does not know about ahead of time.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgnative/pgnative/wireoid"
)

// CompositeMember is one attribute of a composite type, in declaration
// order.
type CompositeMember struct {
	Name string
	OID  wireoid.OID
}

// Querier runs the catalog queries used to populate a Registry. Connection
// implements this by driving its own extended-query path; tests can supply
// a fake.
type Querier interface {
	QueryCatalogRows(ctx context.Context, sql string) ([][]any, error)
}

// Registry is the read-after-load snapshot of dynamic type information for
// one connection.
type Registry struct {
	Types *pgtype.Map

	arrayElement map[wireoid.OID]wireoid.OID
	composite    map[wireoid.OID][]CompositeMember
	enumLabels   map[wireoid.OID]map[wireoid.OID]string
}

// New constructs an empty Registry with a fresh pgtype.Map as its static
// base table, mirroring the teacher's wire.NewServer.
func New() *Registry {
	return &Registry{
		Types:        pgtype.NewMap(),
		arrayElement: map[wireoid.OID]wireoid.OID{},
		composite:    map[wireoid.OID][]CompositeMember{},
		enumLabels:   map[wireoid.OID]map[wireoid.OID]string{},
	}
}

// arrayTypesQuery enumerates every array type and the element type it wraps.
const arrayTypesQuery = `SELECT oid, typelem FROM pg_type WHERE typelem != 0 AND typarray = 0`

// compositeTypesQuery enumerates composite-type attributes in declaration
// order, carrying both OID and name so Registry can serve name-based lookup
// as well as positional lookup.
const compositeTypesQuery = `
SELECT c.reltype, a.attname, a.atttypid
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
WHERE c.relkind = 'c' AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attrelid, a.attnum`

// enumLabelsQuery enumerates enum value OIDs and their labels, grouped by
// owning enum type.
const enumLabelsQuery = `SELECT enumtypid, oid, enumlabel FROM pg_enum ORDER BY enumtypid, enumsortorder`

// Load runs the three catalog queries via q and populates the registry.
// Load replaces any previously loaded mappings; it is safe to call again
// (Reload).
func (r *Registry) Load(ctx context.Context, q Querier) error {
	arrayRows, err := q.QueryCatalogRows(ctx, arrayTypesQuery)
	if err != nil {
		return fmt.Errorf("registry: loading array types: %w", err)
	}
	arrayElement := make(map[wireoid.OID]wireoid.OID, len(arrayRows))
	for _, row := range arrayRows {
		arrOID, elemOID, err := asOIDPair(row)
		if err != nil {
			return fmt.Errorf("registry: array type row: %w", err)
		}
		arrayElement[arrOID] = elemOID
	}

	compositeRows, err := q.QueryCatalogRows(ctx, compositeTypesQuery)
	if err != nil {
		return fmt.Errorf("registry: loading composite types: %w", err)
	}
	composite := map[wireoid.OID][]CompositeMember{}
	for _, row := range compositeRows {
		if len(row) != 3 {
			return fmt.Errorf("registry: composite row: expected 3 columns, got %d", len(row))
		}
		relOID, err := asOID(row[0])
		if err != nil {
			return fmt.Errorf("registry: composite row reltype: %w", err)
		}
		name, ok := row[1].(string)
		if !ok {
			return fmt.Errorf("registry: composite row attname: expected string, got %T", row[1])
		}
		typOID, err := asOID(row[2])
		if err != nil {
			return fmt.Errorf("registry: composite row atttypid: %w", err)
		}
		composite[relOID] = append(composite[relOID], CompositeMember{Name: name, OID: typOID})
	}

	enumRows, err := q.QueryCatalogRows(ctx, enumLabelsQuery)
	if err != nil {
		return fmt.Errorf("registry: loading enum labels: %w", err)
	}
	enumLabels := map[wireoid.OID]map[wireoid.OID]string{}
	for _, row := range enumRows {
		if len(row) != 3 {
			return fmt.Errorf("registry: enum row: expected 3 columns, got %d", len(row))
		}
		typOID, err := asOID(row[0])
		if err != nil {
			return fmt.Errorf("registry: enum row enumtypid: %w", err)
		}
		valOID, err := asOID(row[1])
		if err != nil {
			return fmt.Errorf("registry: enum row oid: %w", err)
		}
		label, ok := row[2].(string)
		if !ok {
			return fmt.Errorf("registry: enum row enumlabel: expected string, got %T", row[2])
		}
		if enumLabels[typOID] == nil {
			enumLabels[typOID] = map[wireoid.OID]string{}
		}
		enumLabels[typOID][valOID] = label
	}

	r.arrayElement = arrayElement
	r.composite = composite
	r.enumLabels = enumLabels
	return nil
}

// Reload re-runs Load, discarding the previous snapshot.
func (r *Registry) Reload(ctx context.Context, q Querier) error {
	return r.Load(ctx, q)
}

// ElementOID reports the element type of an array type OID known to the
// registry.
func (r *Registry) ElementOID(arrayOID wireoid.OID) (wireoid.OID, bool) {
	elem, ok := r.arrayElement[arrayOID]
	return elem, ok
}

// IsArrayType reports whether oid is a registered array type.
func (r *Registry) IsArrayType(oid wireoid.OID) bool {
	_, ok := r.arrayElement[oid]
	return ok
}

// CompositeMembers returns the ordered attribute list of a composite type
// OID known to the registry.
func (r *Registry) CompositeMembers(oid wireoid.OID) ([]CompositeMember, bool) {
	members, ok := r.composite[oid]
	return members, ok
}

// IsCompositeType reports whether oid is a registered composite type.
func (r *Registry) IsCompositeType(oid wireoid.OID) bool {
	_, ok := r.composite[oid]
	return ok
}

// EnumLabel resolves a specific enum value OID to its label string.
func (r *Registry) EnumLabel(enumTypeOID, valueOID wireoid.OID) (string, bool) {
	labels, ok := r.enumLabels[enumTypeOID]
	if !ok {
		return "", false
	}
	label, ok := labels[valueOID]
	return label, ok
}

// IsEnumType reports whether oid is a registered enum type.
func (r *Registry) IsEnumType(oid wireoid.OID) bool {
	_, ok := r.enumLabels[oid]
	return ok
}

// EnumLabelByOID resolves a label from the value OID alone, scanning every
// known enum type. Used when the caller only has the value OID (e.g. a
// composite field typed as some unnamed enum) and not its owning type OID.
func (r *Registry) EnumLabelByOID(valueOID wireoid.OID) (string, bool) {
	typeOIDs := make([]wireoid.OID, 0, len(r.enumLabels))
	for t := range r.enumLabels {
		typeOIDs = append(typeOIDs, t)
	}
	sort.Slice(typeOIDs, func(i, j int) bool { return typeOIDs[i] < typeOIDs[j] })
	for _, t := range typeOIDs {
		if label, ok := r.enumLabels[t][valueOID]; ok {
			return label, true
		}
	}
	return "", false
}

func asOID(v any) (wireoid.OID, error) {
	switch n := v.(type) {
	case uint32:
		return wireoid.OID(n), nil
	case int32:
		return wireoid.OID(n), nil
	case int64:
		return wireoid.OID(n), nil
	case int:
		return wireoid.OID(n), nil
	default:
		return 0, fmt.Errorf("expected an integer OID, got %T", v)
	}
}

func asOIDPair(row []any) (a, b wireoid.OID, err error) {
	if len(row) != 2 {
		return 0, 0, fmt.Errorf("expected 2 columns, got %d", len(row))
	}
	a, err = asOID(row[0])
	if err != nil {
		return 0, 0, err
	}
	b, err = asOID(row[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
