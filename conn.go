package pgnative

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgnative/pgnative/pkg/buffer"
	"github.com/pgnative/pgnative/pkg/types"
	"github.com/pgnative/pgnative/values"
	"github.com/pgnative/pgnative/wireoid"
)

// nextMessage reads the next backend message, transparently absorbing
// ParameterStatus and NoticeResponse (per spec.md §4.3, these may arrive at
// any time and carry no data the caller needs to see directly). The
// returned body is a copy, independent of reader.Msg, which the next read
// replaces.
func (c *Connection) nextMessage() (types.ServerMessage, []byte, error) {
	for {
		typ, err := c.reader.ReadType()
		if err != nil {
			return 0, nil, fmt.Errorf("pgnative: reading message type: %w", err)
		}
		if _, err := c.reader.ReadUntypedMsg(); err != nil {
			return 0, nil, fmt.Errorf("pgnative: reading message body: %w", err)
		}

		switch typ {
		case types.ServerParameterStatus:
			key, err := c.reader.GetString()
			if err != nil {
				return 0, nil, err
			}
			value, err := c.reader.GetString()
			if err != nil {
				return 0, nil, err
			}
			c.serverParams[key] = value
			continue
		case types.ServerNoticeResponse:
			notice, err := readErrorFields(c.reader)
			if err != nil {
				return 0, nil, err
			}
			c.logger.Debug("notice", slog.String("message", notice.Message))
			continue
		}

		body := append([]byte(nil), c.reader.Msg...)
		return typ, body, nil
	}
}

// sync writes a Sync message, ending the current extended-query exchange
// and requesting ReadyForQuery.
func (c *Connection) sync() error {
	c.writer.Start(types.ClientSync)
	return c.writer.End()
}

// applyReadyForQuery records the transaction status carried by
// ReadyForQuery and marks the connection free to accept a new command.
func (c *Connection) applyReadyForQuery(body []byte) error {
	if len(body) != 1 {
		return &ProtocolError{Message: fmt.Sprintf("ReadyForQuery: expected 1 byte, got %d", len(body))}
	}
	switch body[0] {
	case byte(TxIdle), byte(TxInTransaction), byte(TxFailed):
		c.txStatus = TransactionStatus(body[0])
		return nil
	default:
		return &ProtocolError{Message: fmt.Sprintf("invalid transaction status byte %q", body[0])}
	}
}

// recoverFromError implements the Sync-on-error invariant: once the server
// reports an ErrorResponse mid-exchange, every message up to and including
// the backend's own response to our Sync is discarded, then the triggering
// error is returned to the caller.
func (c *Connection) recoverFromError(cause error) error {
	if err := c.sync(); err != nil {
		return err
	}
	for {
		typ, body, err := c.nextMessage()
		if err != nil {
			return err
		}
		if typ == types.ServerReady {
			if err := c.applyReadyForQuery(body); err != nil {
				return err
			}
			c.resultSetOpen = false
			return cause
		}
	}
}

// parse sends a Parse message naming the statement (name == "" for the
// unnamed statement) and waits for ParseComplete.
func (c *Connection) parse(name, query string, paramOIDs []wireoid.OID) error {
	c.writer.Start(types.ClientParse)
	c.writer.AddString(name)
	c.writer.AddNullTerminate()
	c.writer.AddString(query)
	c.writer.AddNullTerminate()
	c.writer.AddInt16(int16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		c.writer.AddUint32(uint32(oid))
	}
	if err := c.writer.End(); err != nil {
		return err
	}

	typ, body, err := c.nextMessage()
	if err != nil {
		return err
	}
	switch typ {
	case types.ServerParseComplete:
		return nil
	case types.ServerErrorResponse:
		serverErr, err := readErrorFields(&buffer.Reader{Msg: body})
		if err != nil {
			return err
		}
		return c.recoverFromError(serverErr)
	default:
		return &ProtocolError{Message: fmt.Sprintf("unexpected message %s after Parse", typ)}
	}
}

func (c *Connection) bind(portal, stmt string, paramFormats []int16, paramValues [][]byte, resultFormats []int16) error {
	c.writer.Start(types.ClientBind)
	c.writer.AddString(portal)
	c.writer.AddNullTerminate()
	c.writer.AddString(stmt)
	c.writer.AddNullTerminate()

	c.writer.AddInt16(int16(len(paramFormats)))
	for _, f := range paramFormats {
		c.writer.AddInt16(f)
	}

	c.writer.AddInt16(int16(len(paramValues)))
	for _, v := range paramValues {
		if v == nil {
			c.writer.AddInt32(-1)
			continue
		}
		c.writer.AddInt32(int32(len(v)))
		c.writer.AddBytes(v)
	}

	c.writer.AddInt16(int16(len(resultFormats)))
	for _, f := range resultFormats {
		c.writer.AddInt16(f)
	}

	return c.writer.End()
}

func (c *Connection) describe(target byte, name string) error {
	c.writer.Start(types.ClientDescribe)
	c.writer.AddByte(target)
	c.writer.AddString(name)
	c.writer.AddNullTerminate()
	return c.writer.End()
}

func (c *Connection) flush() error {
	c.writer.Start(types.ClientFlush)
	return c.writer.End()
}

func (c *Connection) executeMsg(portal string, maxRows int32) error {
	c.writer.Start(types.ClientExecute)
	c.writer.AddString(portal)
	c.writer.AddNullTerminate()
	c.writer.AddInt32(maxRows)
	return c.writer.End()
}

// bindOnly sends Bind and Flush against statement stmt ("" for the unnamed
// statement), reusing field descriptors obtained from a previous Describe. Used when
// the statement and its parameter types have not changed since the last
// Exec, so only the portal (which a fresh Bind always restarts from the
// first row) needs rebuilding.
func (c *Connection) bindOnly(portal, stmt string, paramFormats []int16, paramValues [][]byte) error {
	resultFormats := []int16{int16(values.BinaryFormat)}
	if err := c.bind(portal, stmt, paramFormats, paramValues, resultFormats); err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}

	typ, body, err := c.nextMessage()
	if err != nil {
		return err
	}
	switch typ {
	case types.ServerBindComplete:
		return nil
	case types.ServerErrorResponse:
		serverErr, err := readErrorFields(&buffer.Reader{Msg: body})
		if err != nil {
			return err
		}
		return c.recoverFromError(serverErr)
	default:
		return &ProtocolError{Message: fmt.Sprintf("unexpected message %s after Bind", typ)}
	}
}

// bindAndDescribe sends Bind against statement stmt ("" for the unnamed
// statement), binding
// result columns to the binary format throughout (spec.md §4.3 step 3),
// followed by Describe(Portal) and Flush so the server reports the
// portal's row shape without starting execution. It returns the resulting
// field descriptors, or nil for a command that produces no rows.
func (c *Connection) bindAndDescribe(portal, stmt string, paramFormats []int16, paramValues [][]byte) ([]FieldDescriptor, error) {
	resultFormats := []int16{int16(values.BinaryFormat)}
	if err := c.bind(portal, stmt, paramFormats, paramValues, resultFormats); err != nil {
		return nil, err
	}
	if err := c.describe(byte(buffer.PreparePortal), portal); err != nil {
		return nil, err
	}
	if err := c.flush(); err != nil {
		return nil, err
	}

	typ, body, err := c.nextMessage()
	if err != nil {
		return nil, err
	}
	if typ == types.ServerErrorResponse {
		serverErr, err := readErrorFields(&buffer.Reader{Msg: body})
		if err != nil {
			return nil, err
		}
		return nil, c.recoverFromError(serverErr)
	}
	if typ != types.ServerBindComplete {
		return nil, &ProtocolError{Message: fmt.Sprintf("unexpected message %s after Bind", typ)}
	}

	typ, body, err = c.nextMessage()
	if err != nil {
		return nil, err
	}
	switch typ {
	case types.ServerRowDescription:
		return parseRowDescription(body)
	case types.ServerNoData:
		return nil, nil
	case types.ServerErrorResponse:
		serverErr, err := readErrorFields(&buffer.Reader{Msg: body})
		if err != nil {
			return nil, err
		}
		return nil, c.recoverFromError(serverErr)
	default:
		return nil, &ProtocolError{Message: fmt.Sprintf("unexpected message %s after Describe", typ)}
	}
}

// parseRowDescription parses a RowDescription body into its field list.
func parseRowDescription(body []byte) ([]FieldDescriptor, error) {
	r := &buffer.Reader{Msg: body}
	count, err := r.GetInt16()
	if err != nil {
		return nil, err
	}

	fields := make([]FieldDescriptor, count)
	for i := range fields {
		name, err := r.GetString()
		if err != nil {
			return nil, err
		}
		tableOID, err := r.GetInt32()
		if err != nil {
			return nil, err
		}
		attrNo, err := r.GetInt16()
		if err != nil {
			return nil, err
		}
		typeOID, err := r.GetUint32()
		if err != nil {
			return nil, err
		}
		typeLen, err := r.GetInt16()
		if err != nil {
			return nil, err
		}
		typeModifier, err := r.GetInt32()
		if err != nil {
			return nil, err
		}
		format, err := r.GetInt16()
		if err != nil {
			return nil, err
		}
		if format != int16(values.BinaryFormat) {
			return nil, &ProtocolError{Message: fmt.Sprintf("RowDescription: column %q has format code %d, want binary (1)", name, format)}
		}
		fields[i] = FieldDescriptor{
			Name:         name,
			TableOID:     tableOID,
			AttrNo:       attrNo,
			TypeOID:      wireoid.OID(typeOID),
			TypeLen:      typeLen,
			TypeModifier: typeModifier,
			Format:       format,
		}
	}

	return fields, nil
}

// runExecute sends Execute (no row-count limit) and Sync against portal,
// then primes a ResultSet to stream whatever the server produces.
func (c *Connection) runExecute(portal string, fields []FieldDescriptor) (*ResultSet, error) {
	if err := c.executeMsg(portal, 0); err != nil {
		return nil, err
	}
	if err := c.sync(); err != nil {
		return nil, err
	}

	c.resultSetOpen = true
	rs := &ResultSet{conn: c, fields: fields}
	if err := rs.fill(); err != nil {
		c.resultSetOpen = false
		return nil, err
	}
	return rs, nil
}

// QueryCatalogRows implements registry.Querier by driving the same
// extended-query path user commands use. It is used only to bootstrap the
// type registry at connect time, against statically-typed catalog columns
// (oid, int4, text) the value codec already understands without a loaded
// registry.
func (c *Connection) QueryCatalogRows(ctx context.Context, sql string) ([][]any, error) {
	rs, err := c.NewCommand(sql).Exec(ctx)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var rows [][]any
	for rs.Next() {
		row, err := rs.Row()
		if err != nil {
			return nil, err
		}
		vals := row.Values()
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = valueToAny(v)
		}
		rows = append(rows, out)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func valueToAny(v values.Value) any {
	switch v.Kind() {
	case values.KindInt:
		i, _ := v.Int()
		return i
	case values.KindString:
		s, _ := v.String()
		return s
	case values.KindFloat:
		f, _ := v.Float()
		return f
	case values.KindBool:
		b, _ := v.Bool()
		return b
	default:
		return nil
	}
}

// nextStatementName mints a process-unique name for an explicitly prepared
// statement.
func (c *Connection) nextStatementName() string {
	c.stmtCounter++
	return fmt.Sprintf("pgnative_stmt_%d", c.stmtCounter)
}
