package action

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported action log version")
	ErrCorruptLog         = errors.New("corrupt action log")
	ErrUnsupportedFormat  = errors.New("unsupported content format")
)

// UnsupportedFormatError reports an action whose format is not registered or
// whose version is newer than the registered deserializer understands.
type UnsupportedFormatError struct {
	Format  string
	Version int
	Reason  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported format %q (version %d): %s", e.Format, e.Version, e.Reason)
	}
	return fmt.Sprintf("unsupported format %q (version %d)", e.Format, e.Version)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// PersistenceError wraps a failure to read or write the action log.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("action log %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
