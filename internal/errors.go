package internal

import (
	"errors"
	"fmt"
)

type MissingIdentifierError struct {
	Column string
}

func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("identifier column %q not found in upload", e.Column)
}

// NumericParseError reports a cell that is not a number after separators
// and currency marks are stripped. Row is the 1-based data row of the upload,
// counted from the line after the header.
type NumericParseError struct {
	Column string
	Row    int
	Value  string
}

func (e *NumericParseError) Error() string {
	return fmt.Sprintf("column %q row %d: cannot parse %q as a number", e.Column, e.Row, e.Value)
}

type SchemaMismatchError struct {
	Column   string
	Position int
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema mismatch at position %d: %s", e.Position, e.Reason)
	}
	return fmt.Sprintf("schema mismatch at position %d (column %q): %s", e.Position, e.Column, e.Reason)
}

type UnsupportedFileFormatError struct {
	Name   string
	Reason string
}

func (e *UnsupportedFileFormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported file format: %s", e.Name)
	}
	return fmt.Sprintf("unsupported file format: %s (%s)", e.Name, e.Reason)
}

// ErrorKind names the class of an upload error for API clients. It is empty
// for errors that are not caused by the upload.
func ErrorKind(err error) string {
	var (
		missing     *MissingIdentifierError
		parse       *NumericParseError
		schema      *SchemaMismatchError
		unsupported *UnsupportedFileFormatError
	)
	switch {
	case errors.As(err, &missing):
		return "missing_identifier"
	case errors.As(err, &parse):
		return "numeric_parse"
	case errors.As(err, &schema):
		return "schema_mismatch"
	case errors.As(err, &unsupported):
		return "unsupported_format"
	default:
		return ""
	}
}
