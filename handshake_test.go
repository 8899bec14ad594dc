package pgnative

import (
	"context"
	"net"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/pgnative/pgnative/pkg/mock"
	"github.com/stretchr/testify/require"
)

// serveCatalogBootstrap answers the three catalog queries Open issues to
// populate the type registry, each with zero rows.
func serveCatalogBootstrap(t *testing.T, server *mock.Server) {
	t.Helper()
	for i := 0; i < 3; i++ {
		_, _ = server.ReadClientMessage() // Parse
		server.SendParseComplete()

		_, _ = server.ReadClientMessage() // Bind
		_, _ = server.ReadClientMessage() // Describe
		_, _ = server.ReadClientMessage() // Flush
		server.SendBindComplete()
		server.SendRowDescription(nil)

		_, _ = server.ReadClientMessage() // Execute
		_, _ = server.ReadClientMessage() // Sync
		server.SendCommandComplete("SELECT 0")
		server.SendReadyForQuery('I')
	}
}

func TestOpen_AuthOKHandshake(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })

	server := mock.NewServer(t, serverConn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ReadStartup()
		server.SendAuthOK()
		server.SendParameterStatus("server_version", "16.2")
		server.SendBackendKeyData(1234, 5678)
		server.SendReadyForQuery('I')
		serveCatalogBootstrap(t, server)
	}()

	conn, err := Open(context.Background(), clientConn, Config{"user": "alice", "database": "app"}, slogt.New(t))
	require.NoError(t, err)
	require.NotNil(t, conn)

	<-done

	require.Equal(t, int32(1234), conn.BackendPID())
	require.Equal(t, int32(5678), conn.BackendSecretKey())
	require.Equal(t, TxIdle, conn.TransactionStatus())

	version, ok := conn.ServerParameter("server_version")
	require.True(t, ok)
	require.Equal(t, "16.2", version)
}

func TestOpen_MD5Auth(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })

	server := mock.NewServer(t, serverConn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ReadStartup()
		server.SendAuthMD5([4]byte{0x01, 0x02, 0x03, 0x04})

		typ, reader := server.ReadClientMessage()
		require.Equal(t, byte('p'), byte(typ))
		password, err := reader.GetString()
		require.NoError(t, err)
		require.Equal(t, hashMD5Password("alice", "s3cret", []byte{0x01, 0x02, 0x03, 0x04}), password)

		server.SendAuthOK()
		server.SendReadyForQuery('I')
		serveCatalogBootstrap(t, server)
	}()

	conn, err := Open(context.Background(), clientConn, Config{"user": "alice", "password": "s3cret"}, slogt.New(t))
	require.NoError(t, err)
	require.NotNil(t, conn)

	<-done
}

func TestOpen_CleartextAuthWithoutPassword(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })

	server := mock.NewServer(t, serverConn)

	go func() {
		server.ReadStartup()
		server.SendAuthCleartext()
	}()

	_, err := Open(context.Background(), clientConn, Config{"user": "alice"}, slogt.New(t))
	require.Error(t, err)

	var paramErr *ParameterError
	require.ErrorAs(t, err, &paramErr)
}

func TestOpen_StartupErrorResponse(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })

	server := mock.NewServer(t, serverConn)

	go func() {
		server.ReadStartup()
		server.SendErrorResponse("FATAL", "28000", "invalid authorization specification")
	}()

	_, err := Open(context.Background(), clientConn, Config{"user": "alice"}, slogt.New(t))
	require.Error(t, err)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "invalid authorization specification", serverErr.Message)
}
