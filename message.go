package pgnative

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pgnative/pgnative/codes"
	pgerr "github.com/pgnative/pgnative/errors"
	"github.com/pgnative/pgnative/pkg/buffer"
	"github.com/pgnative/pgnative/wireoid"
)

// FieldDescriptor describes one column of a RowDescription response.
type FieldDescriptor struct {
	Name         string
	TableOID     int32
	AttrNo       int16
	TypeOID      wireoid.OID
	TypeLen      int16
	TypeModifier int32
	Format       int16
}

// additional ErrorResponse/NoticeResponse field codes beyond the ones
// pkg/buffer.ServerErrFieldType already carries over from the teacher.
const (
	errFieldPosition      byte = 'P'
	errFieldInternalQuery byte = 'q'
	errFieldInternalPos   byte = 'p'
	errFieldWhere         byte = 'W'
)

// readErrorFields consumes the field/value pairs of an ErrorResponse or
// NoticeResponse body (terminated by a zero byte) and returns the
// assembled ServerError.
func readErrorFields(reader *buffer.Reader) (*ServerError, error) {
	result := &ServerError{}

	for {
		tag, err := reader.GetByte()
		if err != nil {
			return nil, fmt.Errorf("pgnative: reading error field tag: %w", err)
		}
		if tag == 0 {
			break
		}

		value, err := reader.GetString()
		if err != nil {
			return nil, fmt.Errorf("pgnative: reading error field %q: %w", tag, err)
		}

		switch tag {
		case byte(buffer.ServerErrFieldSeverity):
			result.Severity = pgerr.Severity(value)
		case byte(buffer.ServerErrFieldSQLState):
			result.Code = codes.Code(value)
		case byte(buffer.ServerErrFieldMsgPrimary):
			result.Message = value
		case byte(buffer.ServerErrFieldDetail):
			result.Detail = value
		case byte(buffer.ServerErrFieldHint):
			result.Hint = value
		case byte(buffer.ServerErrFieldSrcFile):
			result.SourceFile = value
		case byte(buffer.ServerErrFieldSrcLine):
			result.SourceLine = value
		case byte(buffer.ServerErrFieldSrcFunction):
			result.SourceFunction = value
		case byte(buffer.ServerErrFieldConstraintName):
			result.ConstraintName = value
		case errFieldPosition:
			result.Position = value
		case errFieldInternalQuery:
			result.InternalQuery = value
		case errFieldInternalPos:
			result.InternalPos = value
		case errFieldWhere:
			result.Where = value
		}
	}

	return result, nil
}

// CommandTag is the parsed form of a CommandComplete tag such as
// "INSERT 0 1" or "UPDATE 3".
type CommandTag struct {
	Command      string
	InsertOID    int64
	RowsAffected int64
}

// parseCommandTag implements spec.md §4.3 step 4's CommandComplete parsing:
// "INSERT <oid> <rows>" captures both fields; "DELETE|UPDATE|MOVE|FETCH|
// SELECT|COPY <rows>" captures only the row count; anything else is
// returned with both counters left at zero.
func parseCommandTag(tag string) CommandTag {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return CommandTag{}
	}

	result := CommandTag{Command: fields[0]}

	switch fields[0] {
	case "INSERT":
		if len(fields) == 3 {
			result.InsertOID, _ = strconv.ParseInt(fields[1], 10, 64)
			result.RowsAffected, _ = strconv.ParseInt(fields[2], 10, 64)
		}
	case "DELETE", "UPDATE", "MOVE", "FETCH", "SELECT", "COPY":
		if len(fields) == 2 {
			result.RowsAffected, _ = strconv.ParseInt(fields[1], 10, 64)
		}
	}

	return result
}
