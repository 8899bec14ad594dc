package buffer

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math"

	"github.com/pgnative/pgnative/pkg/types"
)

// Writer provides a convenient way to write pgwire protocol messages sent by
// the frontend (this client) to the backend.
type Writer struct {
	io.Writer
	logger  *slog.Logger
	frame   bytes.Buffer
	putbuf  [64]byte // buffer used to construct messages which could be written to the writer frame buffer
	err     error
	untyped bool
}

// NewWriter constructs a new Postgres buffered message writer for the given io.Writer
func NewWriter(logger *slog.Logger, writer io.Writer) *Writer {
	return &Writer{
		logger: logger,
		Writer: writer,
	}
}

// Start resets the buffer writer and starts a new message with the given
// message type. The message type (byte) and reserved message length bytes (int32)
// are written to the underlaying bytes buffer.
func (writer *Writer) Start(t types.ClientMessage) {
	writer.Reset()
	writer.untyped = false
	writer.putbuf[0] = byte(t)
	writer.frame.Write(writer.putbuf[:5]) // message type + message length
}

// StartUntyped resets the buffer writer and starts a new message with no
// leading type byte, reserving only the message length. The StartupMessage
// is the sole frontend message sent this way.
func (writer *Writer) StartUntyped() {
	writer.Reset()
	writer.untyped = true
	writer.frame.Write(writer.putbuf[:4])
}

// StartServer resets the buffer writer and starts a new message tagged with
// a backend message type. Used only by the mock backend in tests; the
// client itself never originates server-tagged messages.
func (writer *Writer) StartServer(t types.ServerMessage) {
	writer.Reset()
	writer.untyped = false
	writer.putbuf[0] = byte(t)
	writer.frame.Write(writer.putbuf[:5])
}

// AddByte writes the given byte to the writer frame. Bytes written to the
// frame could be read at any stage to interact with a Postgres server. Errors
// thrown while writing to the writer could be read by calling writer.Error()
func (writer *Writer) AddByte(b byte) {
	if writer.err != nil {
		return
	}

	writer.err = writer.frame.WriteByte(b)
}

// AddInt16 writes the given int16 to the writer frame.
func (writer *Writer) AddInt16(i int16) (size int) {
	if writer.err != nil {
		return size
	}

	x := make([]byte, 2)
	binary.BigEndian.PutUint16(x, uint16(i))
	size, writer.err = writer.frame.Write(x)
	return size
}

// AddInt32 writes the given int32 to the writer frame.
func (writer *Writer) AddInt32(i int32) (size int) {
	if writer.err != nil {
		return size
	}

	x := make([]byte, 4)
	binary.BigEndian.PutUint32(x, uint32(i))
	size, writer.err = writer.frame.Write(x)
	return size
}

// AddInt64 writes the given int64 to the writer frame.
func (writer *Writer) AddInt64(i int64) (size int) {
	if writer.err != nil {
		return size
	}

	x := make([]byte, 8)
	binary.BigEndian.PutUint64(x, uint64(i))
	size, writer.err = writer.frame.Write(x)
	return size
}

// AddUint32 writes the given uint32 to the writer frame.
func (writer *Writer) AddUint32(i uint32) (size int) {
	return writer.AddInt32(int32(i))
}

// AddFloat32 writes the given float32 to the writer frame in IEEE-754 form.
func (writer *Writer) AddFloat32(f float32) (size int) {
	return writer.AddInt32(int32(math.Float32bits(f)))
}

// AddFloat64 writes the given float64 to the writer frame in IEEE-754 form.
func (writer *Writer) AddFloat64(f float64) (size int) {
	return writer.AddInt64(int64(math.Float64bits(f)))
}

// AddBytes writes the given bytes to the writer frame. Bytes written to the
// frame could be read at any stage to interact with a Postgres server. Errors
// thrown while writing to the writer could be read by calling writer.Error()
func (writer *Writer) AddBytes(b []byte) (size int) {
	if writer.err != nil {
		return size
	}

	size, writer.err = writer.frame.Write(b)
	return size
}

// AddString writes the given string to the writer frame. Bytes written to the
// frame could be read at any stage to interact with a Postgres server. Errors
// thrown while writing to the writer could be read by calling writer.Error()
func (writer *Writer) AddString(s string) (size int) {
	if writer.err != nil {
		return size
	}

	size, writer.err = writer.frame.WriteString(s)
	return size
}

// AddNullTerminate writes a null terminate symbol to the end of the given data frame
func (writer *Writer) AddNullTerminate() {
	if writer.err != nil {
		return
	}

	writer.err = writer.frame.WriteByte(0)
}

func (writer *Writer) Error() error {
	return writer.err
}

// Bytes returns the written bytes to the active data frame
func (writer *Writer) Bytes() []byte {
	return writer.frame.Bytes()
}

// Reset resets the data frame to be empty
func (writer *Writer) Reset() {
	writer.frame.Reset()
	writer.err = nil
}

// End writes the prepared message to the given writer and resets the buffer.
// The to-be-expected message length is patched into the reserved header
// bytes written by Start or StartUntyped.
func (writer *Writer) End() error {
	defer writer.Reset()
	if writer.Error() != nil {
		return writer.Error()
	}

	buf := writer.frame.Bytes()

	if writer.untyped {
		length := uint32(len(buf))
		binary.BigEndian.PutUint32(buf[0:4], length)
		_, err := writer.Write(buf)
		return err
	}

	length := uint32(len(buf) - 1) // total message length minus the message type byte
	binary.BigEndian.PutUint32(buf[1:5], length)
	_, err := writer.Write(buf)

	if writer.logger != nil {
		writer.logger.Debug("-> writing message", slog.String("type", types.ClientMessage(buf[0]).String()))
	}

	return err
}

// EncodeBoolean returns a string value ("on"/"off") representing the given boolean value
func EncodeBoolean(value bool) string {
	if value {
		return "on"
	}

	return "off"
}
