package ingest

import (
	"errors"
	"fmt"
)

// ParseError is a single malformed record. The record is dropped and
// ingestion of the file continues.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FileError means a whole source file could not be read: a corrupt archive,
// an unknown encoding, a missing header. The file is marked errored and the
// run continues.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// IsFileError returns true if err is or wraps a *FileError.
func IsFileError(err error) bool {
	var fe *FileError
	return errors.As(err, &fe)
}

// errFieldCount is wrapped by ParseError when a record's width differs from
// its header.
var errFieldCount = errors.New("wrong number of fields")
