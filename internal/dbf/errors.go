package dbf

import "fmt"

// OpenError means the main table file is absent, truncated, or its
// header is not a layout this reader recognizes.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening table %s: %s", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// DecodeError means a record's bytes cannot be interpreted given the
// header. It ends the stream for its table: a record that fails to
// decode likely invalidates the offsets of everything after it.
type DecodeError struct {
	Path   string
	Record int
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decoding record %d of %s: %s", e.Record, e.Path, e.Err)
	}
	return fmt.Sprintf("decoding record %d field %s of %s: %s", e.Record, e.Field, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
