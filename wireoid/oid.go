// Package wireoid re-exports the subset of PostgreSQL catalog OIDs the value
// codec dispatches on. It wraps github.com/lib/pq/oid instead of declaring a
// parallel constant table, the same dependency the teacher's row/column code
// uses to talk about column types.
package wireoid

import "github.com/lib/pq/oid"

// OID is a PostgreSQL catalog object identifier.
type OID = oid.Oid

// Scalar and pseudo types the value codec recognizes statically. Anything
// else is resolved through the type registry at decode time.
const (
	Bool        OID = oid.T_bool
	Bytea       OID = oid.T_bytea
	Char        OID = oid.T_char
	Name        OID = oid.T_name
	Int8        OID = oid.T_int8
	Int2        OID = oid.T_int2
	Int4        OID = oid.T_int4
	Regproc     OID = oid.T_regproc
	Text        OID = oid.T_text
	OIDType     OID = oid.T_oid
	JSON        OID = oid.T_json
	Float4      OID = oid.T_float4
	Float8      OID = oid.T_float8
	Unknown     OID = oid.T_unknown
	BPChar      OID = oid.T_bpchar
	Varchar     OID = oid.T_varchar
	Date        OID = oid.T_date
	Time        OID = oid.T_time
	Timestamp   OID = oid.T_timestamp
	TimestampTZ OID = oid.T_timestamptz
	Interval    OID = oid.T_interval
	TimeTZ      OID = oid.T_timetz
	UUID        OID = oid.T_uuid

	// Record and _record are PostgreSQL's anonymous composite/array pseudo
	// types: what a bare ROW(...) or ARRAY[ROW(...), ...] expression yields
	// when it is not cast to a named type.
	Record       OID = oid.T_record
	RecordArray  OID = oid.T__record
	Regprocedure OID = oid.T_regprocedure
	Regoper      OID = oid.T_regoper
	Regoperator  OID = oid.T_regoperator
	Regclass     OID = oid.T_regclass
	Regtype      OID = oid.T_regtype
	RegprocArray OID = oid.T__regproc

	// Text-search configuration and dictionary reg* types.
	Regconfig     OID = oid.T_regconfig
	Regdictionary OID = oid.T_regdictionary
)

// IsOIDClass reports whether o is one of the OID/reg* family that the codec
// treats uniformly as an unsigned 4-byte integer (spec table row "24, 26,
// 2202-2206, 3734, 3769").
func IsOIDClass(o OID) bool {
	switch o {
	case OIDType, Regproc, Regprocedure, Regoper, Regoperator, Regclass, Regtype, Regconfig, Regdictionary:
		return true
	default:
		return false
	}
}
