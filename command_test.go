package pgnative

import (
	"context"
	"encoding/binary"
	"net"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/pgnative/pgnative/pkg/mock"
	"github.com/pgnative/pgnative/wireoid"
	"github.com/stretchr/testify/require"
)

// openTestConnection drives a full Open handshake (AuthOK, no server
// parameters, empty catalogs) and hands back the live connection plus its
// mock backend for the test body to script further exchanges on.
func openTestConnection(t *testing.T) (*Connection, *mock.Server) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })

	server := mock.NewServer(t, serverConn)

	startupDone := make(chan struct{})
	go func() {
		defer close(startupDone)
		server.ReadStartup()
		server.SendAuthOK()
		server.SendReadyForQuery('I')
		serveCatalogBootstrap(t, server)
	}()

	conn, err := Open(context.Background(), clientConn, Config{"user": "alice"}, slogt.New(t))
	require.NoError(t, err)
	<-startupDone

	return conn, server
}

func int4Bytes(v int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v))
	return buf
}

func TestCommand_QueryRow(t *testing.T) {
	t.Parallel()

	conn, server := openTestConnection(t)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)

		_, _ = server.ReadClientMessage() // Parse
		server.SendParseComplete()

		_, _ = server.ReadClientMessage() // Bind
		_, _ = server.ReadClientMessage() // Describe
		_, _ = server.ReadClientMessage() // Flush
		server.SendBindComplete()
		server.SendRowDescription([]mock.MockField{
			{Name: "id", TypeOID: uint32(wireoid.Int4), TypeLen: 4, Format: 1},
			{Name: "name", TypeOID: uint32(wireoid.Text), TypeLen: -1, Format: 1},
		})

		_, _ = server.ReadClientMessage() // Execute
		_, _ = server.ReadClientMessage() // Sync
		server.SendDataRow([][]byte{int4Bytes(7), []byte("ada")})
		server.SendCommandComplete("SELECT 1")
		server.SendReadyForQuery('I')
	}()

	row, err := conn.NewCommand("SELECT id, name FROM users WHERE id = $1").
		Bind(int64(7)).
		QueryRow(context.Background())
	require.NoError(t, err)

	var id int64
	var name string
	require.NoError(t, row.Scan(&id, &name))
	require.Equal(t, int64(7), id)
	require.Equal(t, "ada", name)

	<-serverDone
}

func TestCommand_QueryRow_NoRows(t *testing.T) {
	t.Parallel()

	conn, server := openTestConnection(t)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)

		_, _ = server.ReadClientMessage() // Parse
		server.SendParseComplete()

		_, _ = server.ReadClientMessage() // Bind
		_, _ = server.ReadClientMessage() // Describe
		_, _ = server.ReadClientMessage() // Flush
		server.SendBindComplete()
		server.SendRowDescription([]mock.MockField{
			{Name: "id", TypeOID: uint32(wireoid.Int4), TypeLen: 4, Format: 1},
		})

		_, _ = server.ReadClientMessage() // Execute
		_, _ = server.ReadClientMessage() // Sync
		server.SendCommandComplete("SELECT 0")
		server.SendReadyForQuery('I')
	}()

	_, err := conn.NewCommand("SELECT id FROM users WHERE id = $1").
		Bind(int64(999)).
		QueryRow(context.Background())
	require.ErrorIs(t, err, ErrNoRows)

	<-serverDone
}

func TestCommand_ServerErrorDuringBind(t *testing.T) {
	t.Parallel()

	conn, server := openTestConnection(t)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)

		_, _ = server.ReadClientMessage() // Parse
		server.SendParseComplete()

		_, _ = server.ReadClientMessage() // Bind
		_, _ = server.ReadClientMessage() // Describe
		_, _ = server.ReadClientMessage() // Flush
		server.SendErrorResponse("ERROR", "42703", "column \"missing\" does not exist")

		_, _ = server.ReadClientMessage() // Sync (client recovery)
		server.SendReadyForQuery('I')
	}()

	_, err := conn.NewCommand("SELECT missing FROM users").Exec(context.Background())
	require.Error(t, err)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "column \"missing\" does not exist", serverErr.Message)

	<-serverDone
	require.False(t, conn.resultSetOpen)
}

func TestCommand_RepeatedExecSkipsReparse(t *testing.T) {
	t.Parallel()

	conn, server := openTestConnection(t)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)

		// First Exec: full Parse/Bind/Describe/Execute/Sync.
		_, _ = server.ReadClientMessage() // Parse
		server.SendParseComplete()
		_, _ = server.ReadClientMessage() // Bind
		_, _ = server.ReadClientMessage() // Describe
		_, _ = server.ReadClientMessage() // Flush
		server.SendBindComplete()
		server.SendRowDescription([]mock.MockField{
			{Name: "id", TypeOID: uint32(wireoid.Int4), TypeLen: 4, Format: 1},
		})
		_, _ = server.ReadClientMessage() // Execute
		_, _ = server.ReadClientMessage() // Sync
		server.SendDataRow([][]byte{int4Bytes(1)})
		server.SendCommandComplete("SELECT 1")
		server.SendReadyForQuery('I')

		// Second Exec with identical query and parameter types: Bind still
		// runs (it rewinds the portal), but Parse and Describe are skipped.
		_, _ = server.ReadClientMessage() // Bind
		_, _ = server.ReadClientMessage() // Flush
		server.SendBindComplete()
		_, _ = server.ReadClientMessage() // Execute
		_, _ = server.ReadClientMessage() // Sync
		server.SendDataRow([][]byte{int4Bytes(1)})
		server.SendCommandComplete("SELECT 1")
		server.SendReadyForQuery('I')
	}()

	cmd := conn.NewCommand("SELECT id FROM users WHERE id = $1").Bind(int64(1))

	row, err := cmd.QueryRow(context.Background())
	require.NoError(t, err)
	var id int64
	require.NoError(t, row.Scan(&id))
	require.Equal(t, int64(1), id)

	require.False(t, cmd.dirty)

	row, err = cmd.QueryRow(context.Background())
	require.NoError(t, err)
	require.NoError(t, row.Scan(&id))
	require.Equal(t, int64(1), id)

	<-serverDone
}
