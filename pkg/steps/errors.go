package steps

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned when a required step's source glob matches nothing.
var ErrNoSources = errors.New("no files match")

// SourceError reports malformed input in a single source file.
type SourceError struct {
	File string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func sourceError(file string, format string, args ...any) error {
	return &SourceError{File: file, Err: fmt.Errorf(format, args...)}
}
