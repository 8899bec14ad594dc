package pgnative

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgnative/pgnative/values"
	"github.com/pgnative/pgnative/wireoid"
)

// boundParam is one $N placeholder's bound value, plus an optional
// explicit type OID when the caller used BindValue instead of Bind.
type boundParam struct {
	oid      wireoid.OID
	value    any
	explicit bool
}

// Command is a reusable handle for the extended-query sequence against one
// SQL string: Parse, Bind, Describe, Execute, Sync. Every Exec re-sends
// Bind, since a fresh Bind is what rewinds the portal back to the first
// row; Parse and Describe are only resent when the query text or the
// inferred/declared parameter types actually changed since the last
// successful bind.
type Command struct {
	conn     *Connection
	query    string
	stmtName string

	params   map[int]boundParam
	maxParam int

	dirty     bool
	described bool
	fields    []FieldDescriptor

	lastQuery     string
	lastParamOIDs []wireoid.OID
}

// NewCommand builds a Command bound to conn for query. The statement
// starts unnamed; call Prepare to mint a persistent name before the first
// Exec if the caller wants the server to cache the plan across
// connections-worth of calls sharing this Command value.
func (c *Connection) NewCommand(query string) *Command {
	return &Command{conn: c, query: query, params: map[int]boundParam{}, dirty: true}
}

// SetQuery replaces the command's SQL text, forcing a re-Parse on the next
// Exec.
func (cmd *Command) SetQuery(query string) *Command {
	if query != cmd.query {
		cmd.query = query
		cmd.dirty = true
	}
	return cmd
}

// Bind replaces every parameter with vals, in $1..$N order, inferring each
// one's wire type from its Go type. Use BindValue instead for a parameter
// whose type cannot be inferred, or that must be sent as a specific
// PostgreSQL type.
func (cmd *Command) Bind(vals ...any) *Command {
	cmd.params = make(map[int]boundParam, len(vals))
	for i, v := range vals {
		cmd.params[i+1] = boundParam{value: v}
	}
	cmd.maxParam = len(vals)
	cmd.dirty = true
	return cmd
}

// BindValue sets the 1-based parameter index to value, sent as oid
// regardless of what Go type value's type would otherwise infer.
func (cmd *Command) BindValue(index int, oid wireoid.OID, value any) *Command {
	if cmd.params == nil {
		cmd.params = map[int]boundParam{}
	}
	cmd.params[index] = boundParam{oid: oid, value: value, explicit: true}
	if index > cmd.maxParam {
		cmd.maxParam = index
	}
	cmd.dirty = true
	return cmd
}

// Prepare explicitly sends Parse under a persistent statement name ahead
// of Exec, letting the plan survive even after BindValue/Bind make the
// command dirty again for new parameter values of the same types.
func (cmd *Command) Prepare(ctx context.Context) error {
	if cmd.conn.resultSetOpen {
		return &ProtocolError{Message: "a result set from a previous command is still open"}
	}
	if cmd.stmtName == "" {
		cmd.stmtName = cmd.conn.nextStatementName()
	}

	ordered, err := cmd.orderedParams()
	if err != nil {
		return err
	}
	oids, err := cmd.paramOIDs(ordered)
	if err != nil {
		return err
	}

	if err := cmd.conn.parse(cmd.stmtName, cmd.query, oids); err != nil {
		return err
	}
	cmd.lastQuery = cmd.query
	cmd.lastParamOIDs = oids
	return nil
}

// orderedParams validates the 1-based contiguous parameter invariant and
// returns the bound parameters in $1..$N order.
func (cmd *Command) orderedParams() ([]boundParam, error) {
	for i := range cmd.params {
		if i < 1 {
			return nil, &ParameterError{Index: i, Message: "parameter index must be 1 or greater"}
		}
	}
	ordered := make([]boundParam, cmd.maxParam)
	for i := 1; i <= cmd.maxParam; i++ {
		p, ok := cmd.params[i]
		if !ok {
			return nil, &ParameterError{Index: i, Message: "parameter was never bound"}
		}
		ordered[i-1] = p
	}
	return ordered, nil
}

func (cmd *Command) paramOIDs(ordered []boundParam) ([]wireoid.OID, error) {
	oids := make([]wireoid.OID, len(ordered))
	for i, p := range ordered {
		if p.explicit {
			oids[i] = p.oid
			continue
		}
		oid, err := inferOID(p.value)
		if err != nil {
			return nil, &ParameterError{Index: i + 1, Message: err.Error()}
		}
		oids[i] = oid
	}
	return oids, nil
}

// inferOID maps a Go value's dynamic type to the PostgreSQL type Bind
// declares it as, for parameters bound via Bind rather than BindValue.
func inferOID(v any) (wireoid.OID, error) {
	switch v.(type) {
	case nil:
		return wireoid.Unknown, nil
	case bool:
		return wireoid.Bool, nil
	case int, int8, int16, int32, int64, uint, uint32:
		return wireoid.Int8, nil
	case float32, float64:
		return wireoid.Float8, nil
	case string:
		return wireoid.Text, nil
	case []byte:
		return wireoid.Bytea, nil
	case time.Time:
		return wireoid.Timestamp, nil
	case time.Duration:
		return wireoid.Time, nil
	case values.Interval:
		return wireoid.Interval, nil
	case uuid.UUID:
		return wireoid.UUID, nil
	default:
		return 0, fmt.Errorf("cannot infer a PostgreSQL type for %T; use BindValue to specify one explicitly", v)
	}
}

// collapseFormats reduces a per-parameter format-code slice to the single
// code Bind accepts as shorthand for "every parameter uses this format",
// per spec.md §4.2: send one code when every parameter shares it (the
// common all-binary case) rather than repeating it once per parameter.
func collapseFormats(formats []int16) []int16 {
	if len(formats) <= 1 {
		return formats
	}
	for _, f := range formats[1:] {
		if f != formats[0] {
			return formats
		}
	}
	return formats[:1]
}

func (cmd *Command) needsReparse(query string, oids []wireoid.OID) bool {
	if cmd.lastQuery != query || len(cmd.lastParamOIDs) != len(oids) {
		return true
	}
	for i := range oids {
		if oids[i] != cmd.lastParamOIDs[i] {
			return true
		}
	}
	return false
}

// ensureBound runs whatever prefix of Parse/Bind/Describe is needed to
// make the command's unnamed portal ready for Execute. Bind runs every
// time; Parse and Describe are skipped when the query text and inferred
// parameter types match the last successful bind.
func (cmd *Command) ensureBound(ctx context.Context) error {
	ordered, err := cmd.orderedParams()
	if err != nil {
		return err
	}
	oids, err := cmd.paramOIDs(ordered)
	if err != nil {
		return err
	}

	reparse := cmd.needsReparse(cmd.query, oids)
	if reparse {
		if err := cmd.conn.parse(cmd.stmtName, cmd.query, oids); err != nil {
			return err
		}
		cmd.lastQuery = cmd.query
		cmd.lastParamOIDs = oids
		cmd.described = false
	}

	formats := make([]int16, len(ordered))
	paramValues := make([][]byte, len(ordered))
	for i, p := range ordered {
		raw, format, err := values.Encode(oids[i], p.value)
		if err != nil {
			return &ParameterError{Index: i + 1, Message: err.Error()}
		}
		formats[i] = int16(format)
		paramValues[i] = raw
	}
	paramFormats := collapseFormats(formats)

	if cmd.described {
		if err := cmd.conn.bindOnly("", cmd.stmtName, paramFormats, paramValues); err != nil {
			return err
		}
	} else {
		fields, err := cmd.conn.bindAndDescribe("", cmd.stmtName, paramFormats, paramValues)
		if err != nil {
			return err
		}
		cmd.fields = fields
		cmd.described = true
	}

	cmd.dirty = false
	return nil
}

// Exec runs the command and returns a ResultSet streaming whatever rows
// it produces. The caller must Close the ResultSet (directly or by
// draining it with Next) before issuing another command on the same
// Connection.
func (cmd *Command) Exec(ctx context.Context) (*ResultSet, error) {
	if cmd.conn.resultSetOpen {
		return nil, &ProtocolError{Message: "a result set from a previous command is still open"}
	}
	if err := cmd.ensureBound(ctx); err != nil {
		return nil, err
	}
	return cmd.conn.runExecute("", cmd.fields)
}

// QueryRow runs the command and returns its first row. It returns ErrNoRows
// if the command produced none.
func (cmd *Command) QueryRow(ctx context.Context) (*Row, error) {
	rs, err := cmd.Exec(ctx)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	if !rs.Next() {
		if err := rs.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoRows
	}
	return rs.Row()
}

// QueryScalar runs the command and scans its first row's single column
// into dest.
func (cmd *Command) QueryScalar(ctx context.Context, dest any) error {
	row, err := cmd.QueryRow(ctx)
	if err != nil {
		return err
	}
	return row.Scan(dest)
}
