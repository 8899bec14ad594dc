package pgnative

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgnative/pgnative/pkg/buffer"
	"github.com/pgnative/pgnative/pkg/types"
	"github.com/pgnative/pgnative/registry"
)

// TransactionStatus mirrors the single-byte status ReadyForQuery carries.
type TransactionStatus byte

const (
	TxIdle          TransactionStatus = 'I'
	TxInTransaction TransactionStatus = 'T'
	TxFailed        TransactionStatus = 'E'
)

// Connection owns one PostgreSQL wire-protocol session: the framed stream,
// server-assigned parameters, the type registry, and the extended-query
// state machine. A Connection is a sequential resource: exactly one
// command may be in flight, and exactly one result set may be open, at any
// time. Sharing a Connection across goroutines requires external mutual
// exclusion.
type Connection struct {
	transport Transport
	reader    *buffer.Reader
	writer    *buffer.Writer
	logger    *slog.Logger

	config Config

	serverParams map[string]string
	backendPID   int32
	backendKey   int32
	txStatus     TransactionStatus

	stmtCounter uint64
	registry    *registry.Registry

	resultSetOpen bool
}

// Open performs the full startup sequence over transport: StartupMessage,
// authentication, ParameterStatus/BackendKeyData accumulation, and the
// catalog bootstrap that fills the type registry. logger may be nil, in
// which case slog.Default() is used. Establishing transport itself (TCP
// dial, DNS, TLS) is the caller's responsibility.
func Open(ctx context.Context, transport Transport, config Config, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		transport:    transport,
		reader:       buffer.NewReader(logger, transport, buffer.DefaultBufferSize),
		writer:       buffer.NewWriter(logger, transport),
		logger:       logger,
		config:       config,
		serverParams: map[string]string{},
		registry:     registry.New(),
		txStatus:     TxIdle,
	}

	if err := c.startup(ctx); err != nil {
		_ = transport.Close()
		return nil, err
	}

	return c, nil
}

func (c *Connection) startup(ctx context.Context) error {
	if err := c.sendStartupMessage(); err != nil {
		return fmt.Errorf("pgnative: sending startup message: %w", err)
	}

	if err := c.runAuthLoop(); err != nil {
		return err
	}

	if err := c.accumulateUntilReady(); err != nil {
		return err
	}

	if err := c.registry.Load(ctx, c); err != nil {
		return fmt.Errorf("pgnative: loading type registry: %w", err)
	}

	return nil
}

// sendStartupMessage writes protocol version 3.0 followed by every
// provided config key except {host, port, password}, per spec.md §4.3
// step 1. "user" and "database" are written first since most servers
// expect them early, though the wire format does not require it.
func (c *Connection) sendStartupMessage() error {
	c.writer.StartUntyped()
	c.writer.AddInt32(int32(types.Version30))

	c.writer.AddString("user")
	c.writer.AddNullTerminate()
	c.writer.AddString(c.config.user())
	c.writer.AddNullTerminate()

	if db, ok := c.config["database"]; ok {
		c.writer.AddString("database")
		c.writer.AddNullTerminate()
		c.writer.AddString(db)
		c.writer.AddNullTerminate()
	}

	for key, value := range c.config.startupParameters() {
		if key == "user" || key == "database" {
			continue
		}
		c.writer.AddString(key)
		c.writer.AddNullTerminate()
		c.writer.AddString(value)
		c.writer.AddNullTerminate()
	}

	c.writer.AddNullTerminate() // terminating empty key ends the parameter list
	return c.writer.End()
}

// runAuthLoop implements spec.md §4.3 step 2: loop on backend messages
// until authentication succeeds or the server rejects the connection.
func (c *Connection) runAuthLoop() error {
	for {
		typ, err := c.reader.ReadType()
		if err != nil {
			return fmt.Errorf("pgnative: reading auth response: %w", err)
		}
		if _, err := c.reader.ReadUntypedMsg(); err != nil {
			return fmt.Errorf("pgnative: reading auth response body: %w", err)
		}

		switch typ {
		case types.ServerAuth:
			subtype, err := c.reader.GetInt32()
			if err != nil {
				return fmt.Errorf("pgnative: reading auth subtype: %w", err)
			}
			if err := c.authenticate(subtype, c.reader); err != nil {
				return err
			}
			if subtype == authOK {
				return nil
			}
		case types.ServerNoticeResponse:
			notice, err := readErrorFields(c.reader)
			if err != nil {
				return err
			}
			c.logger.Debug("notice during startup", slog.String("message", notice.Message))
		case types.ServerErrorResponse:
			serverErr, err := readErrorFields(c.reader)
			if err != nil {
				return err
			}
			return serverErr
		default:
			return &ProtocolError{Message: fmt.Sprintf("unexpected message %s during authentication", typ)}
		}
	}
}

// accumulateUntilReady implements spec.md §4.3 step 3: collect
// ParameterStatus/BackendKeyData until ReadyForQuery, then capture the
// initial transaction status.
func (c *Connection) accumulateUntilReady() error {
	for {
		typ, err := c.reader.ReadType()
		if err != nil {
			return fmt.Errorf("pgnative: reading startup message: %w", err)
		}
		if _, err := c.reader.ReadUntypedMsg(); err != nil {
			return fmt.Errorf("pgnative: reading startup message body: %w", err)
		}

		switch typ {
		case types.ServerParameterStatus:
			key, err := c.reader.GetString()
			if err != nil {
				return err
			}
			value, err := c.reader.GetString()
			if err != nil {
				return err
			}
			c.serverParams[key] = value
			c.logger.Debug("server parameter", slog.String("key", key), slog.String("value", value))
		case types.ServerBackendKeyData:
			pid, err := c.reader.GetInt32()
			if err != nil {
				return err
			}
			secret, err := c.reader.GetInt32()
			if err != nil {
				return err
			}
			c.backendPID, c.backendKey = pid, secret
		case types.ServerReady:
			status, err := c.reader.GetByte()
			if err != nil {
				return err
			}
			switch status {
			case byte(TxIdle), byte(TxInTransaction), byte(TxFailed):
				c.txStatus = TransactionStatus(status)
			default:
				return &ProtocolError{Message: fmt.Sprintf("invalid transaction status byte %q", status)}
			}
			return nil
		case types.ServerNoticeResponse:
			notice, err := readErrorFields(c.reader)
			if err != nil {
				return err
			}
			c.logger.Debug("notice during startup", slog.String("message", notice.Message))
		case types.ServerErrorResponse:
			serverErr, err := readErrorFields(c.reader)
			if err != nil {
				return err
			}
			return serverErr
		default:
			return &ProtocolError{Message: fmt.Sprintf("unexpected message %s during startup", typ)}
		}
	}
}

// BackendPID returns the process id the server reported in BackendKeyData.
// Exposed per spec.md §5 so a caller can build a separate CancelRequest
// connection; the core itself does not implement cancellation.
func (c *Connection) BackendPID() int32 { return c.backendPID }

// BackendSecretKey returns the secret key the server reported in
// BackendKeyData.
func (c *Connection) BackendSecretKey() int32 { return c.backendKey }

// ServerParameter returns a ParameterStatus value reported by the server,
// such as "server_version" or "client_encoding".
func (c *Connection) ServerParameter(key string) (string, bool) {
	v, ok := c.serverParams[key]
	return v, ok
}

// TransactionStatus returns the connection's last-observed transaction
// status.
func (c *Connection) TransactionStatus() TransactionStatus { return c.txStatus }

// Close sends Terminate and releases the underlying transport. Close is
// idempotent.
func (c *Connection) Close() error {
	if c.transport == nil {
		return nil
	}
	c.writer.Start(types.ClientTerminate)
	_ = c.writer.End()
	err := c.transport.Close()
	c.transport = nil
	return err
}
