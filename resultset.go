package pgnative

import (
	"fmt"

	"github.com/pgnative/pgnative/pkg/buffer"
	"github.com/pgnative/pgnative/pkg/types"
)

// ResultSet streams the rows produced by one Command.Exec call. It reads
// one row ahead of what Row returns: the message immediately following the
// row currently exposed to the caller is already buffered, so Next reports
// availability without a network round trip. Only one ResultSet may be
// open on a Connection at a time.
type ResultSet struct {
	conn    *Connection
	fields  []FieldDescriptor
	current []byte
	pending []byte
	tag     CommandTag
	ready   bool
	err     error
}

// fill reads backend messages until the next DataRow is stashed in
// pending, or until ReadyForQuery closes out the exchange. CommandComplete
// carries no row and is absorbed transparently. EmptyQueryResponse and
// PortalSuspended are both recorded as a ProtocolError rather than silently
// absorbed: an empty query string and a suspended (row-limited) portal are
// both unsupported by this client. An ErrorResponse is recorded and
// surfaces through Err once ReadyForQuery is reached.
func (rs *ResultSet) fill() error {
	for {
		typ, body, err := rs.conn.nextMessage()
		if err != nil {
			rs.closeOut()
			return err
		}

		switch typ {
		case types.ServerDataRow:
			rs.pending = body
			return nil
		case types.ServerCommandComplete:
			tag, err := (&buffer.Reader{Msg: body}).GetString()
			if err != nil {
				rs.closeOut()
				return err
			}
			rs.tag = parseCommandTag(tag)
			rs.pending = nil
		case types.ServerEmptyQuery:
			rs.err = &ProtocolError{Message: "server reported EmptyQueryResponse for an empty query string"}
			rs.pending = nil
		case types.ServerPortalSuspended:
			rs.err = &ProtocolError{Message: "server suspended the portal after reaching a row limit, which this client never requests"}
			rs.pending = nil
		case types.ServerErrorResponse:
			serverErr, err := readErrorFields(&buffer.Reader{Msg: body})
			if err != nil {
				rs.closeOut()
				return err
			}
			rs.err = serverErr
			rs.pending = nil
		case types.ServerReady:
			if err := rs.conn.applyReadyForQuery(body); err != nil {
				rs.closeOut()
				return err
			}
			rs.closeOut()
			return nil
		default:
			rs.closeOut()
			return &ProtocolError{Message: fmt.Sprintf("unexpected message %s while streaming result set", typ)}
		}
	}
}

func (rs *ResultSet) closeOut() {
	rs.conn.resultSetOpen = false
	rs.ready = true
}

// Next advances to the next row and reports whether one is available. Once
// Next returns false, Row must not be called; check Err for the reason the
// stream ended.
func (rs *ResultSet) Next() bool {
	if rs.pending == nil {
		return false
	}
	rs.current = rs.pending
	rs.pending = nil
	if err := rs.fill(); err != nil {
		rs.err = err
	}
	return true
}

// Row decodes the row most recently made current by Next.
func (rs *ResultSet) Row() (*Row, error) {
	if rs.current == nil {
		return nil, &ProtocolError{Message: "Row called without a prior successful Next"}
	}
	return newRow(rs.fields, rs.current, rs.conn.registry)
}

// CommandTag returns the parsed CommandComplete tag. It is only meaningful
// once the result set has been fully drained.
func (rs *ResultSet) CommandTag() CommandTag { return rs.tag }

// Err returns the first error observed while streaming, if any.
func (rs *ResultSet) Err() error { return rs.err }

// Close drains any remaining rows and the final ReadyForQuery, freeing the
// connection for the next command. Close is safe to call after the result
// set has already been fully consumed.
func (rs *ResultSet) Close() error {
	for !rs.ready {
		if err := rs.fill(); err != nil {
			return err
		}
	}
	return rs.err
}
