package buffer

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"time"
	"unsafe"

	"github.com/pgnative/pgnative/pkg/types"
)

// DefaultBufferSize represents the default buffer size whenever the buffer size
// is not set or a negative value is presented.
const DefaultBufferSize = 1 << 24 // 16777216 bytes

// pgEpoch is the PostgreSQL binary epoch: 2000-01-01 00:00:00 UTC.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// BufferedReader extends io.Reader with some convenience methods.
type BufferedReader interface {
	io.Reader
	ReadString(delim byte) (string, error)
	ReadByte() (byte, error)
}

// Reader provides a convenient way to read pgwire protocol messages sent by
// the backend.
type Reader struct {
	logger         *slog.Logger
	Buffer         BufferedReader
	Msg            []byte
	MaxMessageSize int
	header         [4]byte
}

// NewReader constructs a new Postgres wire buffer for the given io.Reader
func NewReader(logger *slog.Logger, reader io.Reader, bufferSize int) *Reader {
	if reader == nil {
		return nil
	}

	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Reader{
		logger:         logger,
		Buffer:         bufio.NewReaderSize(reader, bufferSize),
		MaxMessageSize: bufferSize,
	}
}

// reset sets reader.Msg to exactly size, attempting to use spare capacity
// at the end of the existing slice when possible and allocating a new
// slice when necessary.
func (reader *Reader) reset(size int) {
	if reader.Msg != nil {
		reader.Msg = reader.Msg[len(reader.Msg):]
	}

	if cap(reader.Msg) >= size {
		reader.Msg = reader.Msg[:size]
		return
	}

	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	reader.Msg = make([]byte, size, allocSize)
}

// ReadType reads the backend message type from the provided reader.
func (reader *Reader) ReadType() (types.ServerMessage, error) {
	b, err := reader.Buffer.ReadByte()
	if err != nil {
		return 0, err
	}

	return types.ServerMessage(b), nil
}

// ReadTypedMsg reads a message from the provided reader, returning its type code and body.
// It returns the message type, number of bytes read, and an error if there was one.
func (reader *Reader) ReadTypedMsg() (types.ServerMessage, int, error) {
	typed, err := reader.ReadType()
	if err != nil {
		return typed, 0, err
	}

	n, err := reader.ReadUntypedMsg()
	if err != nil {
		return 0, 0, err
	}

	return typed, n, nil
}

// Slurp reads and discards the given number of bytes.
func (reader *Reader) Slurp(size int) error {
	remaining := size
	for remaining > 0 {
		reading := remaining

		if reading > reader.MaxMessageSize {
			reading = reader.MaxMessageSize
		}

		reader.reset(reading)

		n, err := io.ReadFull(reader.Buffer, reader.Msg)
		if err != nil {
			return err
		}

		remaining -= n
	}

	return nil
}

// ReadMsgSize reads the length of the next message from the provided reader.
func (reader *Reader) ReadMsgSize() (int, error) {
	nread, err := io.ReadFull(reader.Buffer, reader.header[:])
	if err != nil {
		return nread, err
	}

	size := int(binary.BigEndian.Uint32(reader.header[:]))
	// size includes itself.
	size -= 4

	return size, nil
}

// ReadUntypedMsg reads a length-prefixed message body into reader.Msg. It
// reads the untyped startup message, and also follows ReadType for every
// typed message. This returns the number of bytes read and an error, if there
// was one. The number of bytes returned can be non-zero even with an error
// (e.g. if data was read but didn't validate) so that we can more accurately
// measure network traffic.
//
// If the error is related to consuming a buffer that is larger than the
// maxMessageSize, the remaining bytes will be read but discarded.
func (reader *Reader) ReadUntypedMsg() (int, error) {
	size, err := reader.ReadMsgSize()
	if err != nil {
		return 0, err
	}

	if size > reader.MaxMessageSize || size < 0 {
		if size > 0 {
			if err := reader.Slurp(size); err != nil {
				return size, err
			}
		}
		return size, NewMessageSizeExceeded(reader.MaxMessageSize, size)
	}

	reader.reset(size)
	n, err := io.ReadFull(reader.Buffer, reader.Msg)
	return len(reader.header) + n, err
}

// GetString reads a null-terminated string.
func (reader *Reader) GetString() (string, error) {
	pos := bytes.IndexByte(reader.Msg, 0)
	if pos == -1 {
		return "", NewMissingNulTerminator()
	}

	// Note: this is a conversion from a byte slice to a string which avoids
	// allocation and copying. It is safe because we never reuse the bytes in our
	// read buffer. It is effectively the same as: "s := string(b.Msg[:pos])"
	s := reader.Msg[:pos]
	reader.Msg = reader.Msg[pos+1:]
	return *((*string)(unsafe.Pointer(&s))), nil
}

// GetBytes returns the buffer's contents as a []byte. n == -1 denotes a NULL
// value and returns a nil slice.
func (reader *Reader) GetBytes(n int) ([]byte, error) {
	if n == -1 {
		return nil, nil
	}
	if len(reader.Msg) < n {
		return nil, NewInsufficientData(len(reader.Msg))
	}

	v := reader.Msg[:n]
	reader.Msg = reader.Msg[n:]
	return v, nil
}

// GetByte returns the buffer's contents as a single byte.
func (reader *Reader) GetByte() (byte, error) {
	if len(reader.Msg) < 1 {
		return 0, NewInsufficientData(len(reader.Msg))
	}

	v := reader.Msg[0]
	reader.Msg = reader.Msg[1:]
	return v, nil
}

// GetUint16 returns the buffer's contents as a uint16.
func (reader *Reader) GetUint16() (uint16, error) {
	if len(reader.Msg) < 2 {
		return 0, NewInsufficientData(len(reader.Msg))
	}

	v := binary.BigEndian.Uint16(reader.Msg[:2])
	reader.Msg = reader.Msg[2:]
	return v, nil
}

// GetInt16 returns the buffer's contents as an int16.
func (reader *Reader) GetInt16() (int16, error) {
	v, err := reader.GetUint16()
	return int16(v), err
}

// GetUint32 returns the buffer's contents as a uint32.
func (reader *Reader) GetUint32() (uint32, error) {
	if len(reader.Msg) < 4 {
		return 0, NewInsufficientData(len(reader.Msg))
	}

	v := binary.BigEndian.Uint32(reader.Msg[:4])
	reader.Msg = reader.Msg[4:]
	return v, nil
}

// GetInt32 returns the buffer's contents as an int32.
func (reader *Reader) GetInt32() (int32, error) {
	v, err := reader.GetUint32()
	return int32(v), err
}

// GetUint64 returns the buffer's contents as a uint64.
func (reader *Reader) GetUint64() (uint64, error) {
	if len(reader.Msg) < 8 {
		return 0, NewInsufficientData(len(reader.Msg))
	}

	v := binary.BigEndian.Uint64(reader.Msg[:8])
	reader.Msg = reader.Msg[8:]
	return v, nil
}

// GetInt64 returns the buffer's contents as an int64.
func (reader *Reader) GetInt64() (int64, error) {
	v, err := reader.GetUint64()
	return int64(v), err
}

// GetFloat32 returns the buffer's contents as an IEEE-754 float32.
func (reader *Reader) GetFloat32() (float32, error) {
	v, err := reader.GetUint32()
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(v), nil
}

// GetFloat64 returns the buffer's contents as an IEEE-754 float64.
func (reader *Reader) GetFloat64() (float64, error) {
	v, err := reader.GetUint64()
	if err != nil {
		return 0, err
	}

	return math.Float64frombits(v), nil
}

// GetDate interprets the next 4 bytes as a binary date: a day count relative
// to 2000-01-01.
func (reader *Reader) GetDate() (time.Time, error) {
	days, err := reader.GetInt32()
	if err != nil {
		return time.Time{}, err
	}

	return pgEpoch.AddDate(0, 0, int(days)), nil
}

// GetTimeOfDay interprets the next 8 bytes as microseconds since midnight.
func (reader *Reader) GetTimeOfDay() (time.Duration, error) {
	micros, err := reader.GetInt64()
	if err != nil {
		return 0, err
	}

	return time.Duration(micros) * time.Microsecond, nil
}

// GetTimestamp interprets the next 8 bytes as microseconds relative to
// 2000-01-01 00:00:00.
func (reader *Reader) GetTimestamp() (time.Time, error) {
	micros, err := reader.GetInt64()
	if err != nil {
		return time.Time{}, err
	}

	return pgEpoch.Add(time.Duration(micros) * time.Microsecond), nil
}

// GetInterval interprets the next 16 bytes as a binary interval: microseconds,
// days, and months.
func (reader *Reader) GetInterval() (micros int64, days int32, months int32, err error) {
	micros, err = reader.GetInt64()
	if err != nil {
		return 0, 0, 0, err
	}

	days, err = reader.GetInt32()
	if err != nil {
		return 0, 0, 0, err
	}

	months, err = reader.GetInt32()
	if err != nil {
		return 0, 0, 0, err
	}

	return micros, days, months, nil
}
