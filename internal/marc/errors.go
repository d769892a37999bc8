package marc

import (
	"errors"
	"fmt"
)

// Format and I/O errors returned by the codec.
var (
	// ErrBadLeader is returned when the 24-byte leader cannot be parsed.
	ErrBadLeader = errors.New("malformed leader")

	// ErrBadDirectory is returned when the directory block is missing or
	// does not line up with the data fields.
	ErrBadDirectory = errors.New("malformed directory")

	// ErrInvalidTag is returned for tags outside 001-999 or with non-digit text.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrTruncated is returned when the stream ends inside a record.
	ErrTruncated = errors.New("truncated record")

	// ErrRecordTooLong is returned when an encoded record exceeds 99999 bytes.
	ErrRecordTooLong = errors.New("logical record length exceeds 99999")

	// ErrOutOfRange is returned for character positions past the end of a
	// field or the leader.
	ErrOutOfRange = errors.New("position out of range")

	// ErrNoFile is returned when the MARC file does not exist or is not a
	// regular file.
	ErrNoFile = errors.New("marc file does not exist")

	// ErrEmptyFile is returned when the MARC file has zero size.
	ErrEmptyFile = errors.New("marc file has zero size")
)

// FormatError locates a format error inside a MARC stream.
type FormatError struct {
	Record int // zero-based record index in the stream
	Offset int // byte offset inside the record body, -1 if unknown
	Err    error
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("record %d, offset %d: %v", e.Record, e.Offset, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Record, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
