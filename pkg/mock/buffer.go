// Package mock provides small helpers for driving the client state machine
// in tests without a real PostgreSQL server: it plays the backend side of
// the wire protocol over an io.ReadWriter (typically one half of a
// net.Pipe()).
package mock

import (
	"io"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/pgnative/pgnative/pkg/buffer"
	"github.com/pgnative/pgnative/pkg/types"
)

// Server plays the backend side of the Postgres wire protocol against a
// client under test.
type Server struct {
	t      *testing.T
	reader *buffer.Reader
	writer *buffer.Writer
}

// NewServer wraps rw as the backend end of the wire protocol.
func NewServer(t *testing.T, rw io.ReadWriter) *Server {
	t.Helper()
	logger := slogt.New(t)
	return &Server{
		t:      t,
		reader: buffer.NewReader(logger, rw, buffer.DefaultBufferSize),
		writer: buffer.NewWriter(logger, rw),
	}
}

// ReadStartup reads a raw startup-format message (no type byte) and returns
// its payload following the 4-byte length prefix.
func (s *Server) ReadStartup() []byte {
	s.t.Helper()
	n, err := s.reader.ReadUntypedMsg()
	if err != nil {
		s.t.Fatalf("mock: read startup: %v", err)
	}
	// ReadUntypedMsg already consumed the length header; Msg holds the body.
	_ = n
	return append([]byte(nil), s.reader.Msg...)
}

// ReadClientMessage reads one typed frontend message and returns its type
// alongside a reader scoped to its body.
func (s *Server) ReadClientMessage() (types.ClientMessage, *buffer.Reader) {
	s.t.Helper()
	b, err := s.reader.Buffer.ReadByte()
	if err != nil {
		s.t.Fatalf("mock: read message type: %v", err)
	}
	if _, err := s.reader.ReadUntypedMsg(); err != nil {
		s.t.Fatalf("mock: read message body: %v", err)
	}
	return types.ClientMessage(b), s.reader
}

// send starts a backend message of the given type, runs build to fill its
// body, and flushes it.
func (s *Server) send(t types.ServerMessage, build func()) {
	s.writer.StartServer(t)
	if build != nil {
		build()
	}
	if err := s.writer.End(); err != nil {
		s.t.Fatalf("mock: write %s: %v", t, err)
	}
}

// SendAuthOK writes AuthenticationOk.
func (s *Server) SendAuthOK() {
	s.send(types.ServerAuth, func() { s.writer.AddInt32(0) })
}

// SendAuthCleartext writes AuthenticationCleartextPassword.
func (s *Server) SendAuthCleartext() {
	s.send(types.ServerAuth, func() { s.writer.AddInt32(3) })
}

// SendAuthMD5 writes AuthenticationMD5Password with the given 4-byte salt.
func (s *Server) SendAuthMD5(salt [4]byte) {
	s.send(types.ServerAuth, func() {
		s.writer.AddInt32(5)
		s.writer.AddBytes(salt[:])
	})
}

// SendParameterStatus writes a ParameterStatus message.
func (s *Server) SendParameterStatus(key, value string) {
	s.send(types.ServerParameterStatus, func() {
		s.writer.AddString(key)
		s.writer.AddNullTerminate()
		s.writer.AddString(value)
		s.writer.AddNullTerminate()
	})
}

// SendBackendKeyData writes a BackendKeyData message.
func (s *Server) SendBackendKeyData(pid, secret int32) {
	s.send(types.ServerBackendKeyData, func() {
		s.writer.AddInt32(pid)
		s.writer.AddInt32(secret)
	})
}

// SendReadyForQuery writes ReadyForQuery with the given status byte
// ('I', 'T', or 'E').
func (s *Server) SendReadyForQuery(status byte) {
	s.send(types.ServerReady, func() { s.writer.AddByte(status) })
}

// SendParseComplete writes ParseComplete.
func (s *Server) SendParseComplete() {
	s.send(types.ServerParseComplete, nil)
}

// SendBindComplete writes BindComplete.
func (s *Server) SendBindComplete() {
	s.send(types.ServerBindComplete, nil)
}

// SendCloseComplete writes CloseComplete.
func (s *Server) SendCloseComplete() {
	s.send(types.ServerCloseComplete, nil)
}

// SendNoData writes NoData.
func (s *Server) SendNoData() {
	s.send(types.ServerNoData, nil)
}

// MockField describes a RowDescription field for tests.
type MockField struct {
	Name         string
	TableOID     int32
	AttrNo       int16
	TypeOID      uint32
	TypeLen      int16
	TypeModifier int32
	Format       int16
}

// SendRowDescription writes a RowDescription message for the given fields.
func (s *Server) SendRowDescription(fields []MockField) {
	s.send(types.ServerRowDescription, func() {
		s.writer.AddInt16(int16(len(fields)))
		for _, f := range fields {
			s.writer.AddString(f.Name)
			s.writer.AddNullTerminate()
			s.writer.AddInt32(f.TableOID)
			s.writer.AddInt16(f.AttrNo)
			s.writer.AddUint32(f.TypeOID)
			s.writer.AddInt16(f.TypeLen)
			s.writer.AddInt32(f.TypeModifier)
			s.writer.AddInt16(f.Format)
		}
	})
}

// SendDataRow writes a DataRow message. A nil element encodes a SQL NULL.
func (s *Server) SendDataRow(values [][]byte) {
	s.send(types.ServerDataRow, func() {
		s.writer.AddInt16(int16(len(values)))
		for _, v := range values {
			if v == nil {
				s.writer.AddInt32(-1)
				continue
			}
			s.writer.AddInt32(int32(len(v)))
			s.writer.AddBytes(v)
		}
	})
}

// SendCommandComplete writes a CommandComplete message with the given tag.
func (s *Server) SendCommandComplete(tag string) {
	s.send(types.ServerCommandComplete, func() {
		s.writer.AddString(tag)
		s.writer.AddNullTerminate()
	})
}

// SendEmptyQueryResponse writes EmptyQueryResponse.
func (s *Server) SendEmptyQueryResponse() {
	s.send(types.ServerEmptyQuery, nil)
}

// SendPortalSuspended writes PortalSuspended.
func (s *Server) SendPortalSuspended() {
	s.send(types.ServerPortalSuspended, nil)
}

// SendErrorResponse writes an ErrorResponse with the given SQLSTATE, message
// and severity.
func (s *Server) SendErrorResponse(severity, code, message string) {
	s.send(types.ServerErrorResponse, func() {
		s.writer.AddByte('S')
		s.writer.AddString(severity)
		s.writer.AddNullTerminate()
		s.writer.AddByte('C')
		s.writer.AddString(code)
		s.writer.AddNullTerminate()
		s.writer.AddByte('M')
		s.writer.AddString(message)
		s.writer.AddNullTerminate()
		s.writer.AddByte(0)
	})
}

// SendNoticeResponse writes a NoticeResponse with the given message.
func (s *Server) SendNoticeResponse(message string) {
	s.send(types.ServerNoticeResponse, func() {
		s.writer.AddByte('S')
		s.writer.AddString("NOTICE")
		s.writer.AddNullTerminate()
		s.writer.AddByte('M')
		s.writer.AddString(message)
		s.writer.AddNullTerminate()
		s.writer.AddByte(0)
	})
}
