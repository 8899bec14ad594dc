package pgnative

import (
	"errors"
	"fmt"

	"github.com/pgnative/pgnative/codes"
	pgerr "github.com/pgnative/pgnative/errors"
)

// ErrNoRows is returned by Command.QueryRow and Command.QueryScalar when
// the query produced zero rows.
var ErrNoRows = errors.New("pgnative: no rows in result set")

// ServerError holds the fields of an ErrorResponse the server sent. It is
// the wire counterpart of the teacher's errors.Error, read instead of built.
// Field codes without a member here (schema, table, column and data type
// names, non-localized severity) are skipped when the response is read.
type ServerError struct {
	Severity       pgerr.Severity
	Code           codes.Code
	Message        string
	Detail         string
	Hint           string
	Position       string // P: position within the submitted query string
	InternalQuery  string // q: the text of a failed internally-generated command
	InternalPos    string // p: position within InternalQuery
	Where          string // W: a stack of call sites
	ConstraintName string // n: the name of the violated constraint
	SourceFile     string
	SourceLine     string
	SourceFunction string
}

func (e *ServerError) Error() string { return e.String() }

// String renders a summary of the form "{severity} {code}: {message}" with
// optional DETAIL/HINT lines, per the server-error contract.
func (e *ServerError) String() string {
	s := fmt.Sprintf("%s %s: %s", e.Severity, e.Code, e.Message)
	if e.Detail != "" {
		s += fmt.Sprintf("\nDETAIL: %s", e.Detail)
	}
	if e.Hint != "" {
		s += fmt.Sprintf("\nHINT: %s", e.Hint)
	}
	return s
}

// ParameterError reports misuse of a Command's parameters at the client: an
// unbound parameter, a value that cannot be represented as its declared
// type, or a non-positive index. SetQuery, Bind and BindValue are not
// rejected after Prepare; they are accepted like on an unprepared command.
type ParameterError struct {
	Index   int
	Message string
}

func (e *ParameterError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("pgnative: parameter $%d: %s", e.Index, e.Message)
	}
	return fmt.Sprintf("pgnative: parameter error: %s", e.Message)
}

// ProtocolError reports a framing or state-machine violation: an
// unexpected message type, a non-binary field format, an invalid
// transaction status byte, an unsupported PortalSuspended, or a second
// command started while a result set is still open.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return "pgnative: protocol error: " + e.Message }

// TypeError reports that the value codec could not decode (oid, bytes), or
// that a decoded value does not fit the caller's requested target. NULL is
// not reported as a TypeError: Scan stores the destination's zero value, or
// nil through a **T destination.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return "pgnative: type error: " + e.Message }
