package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/tanq16/hoard/internal/action"
)

var (
	ErrCancelled     = errors.New("download cancelled")
	ErrReleased      = errors.New("manager released")
	ErrManagerFailed = errors.New("manager stopped after persistence failure")
)

// TransientIOError marks a network or disk failure worth retrying. Errors
// without any classification are treated the same way.
type TransientIOError struct {
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient i/o error: %v", e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientIOError{Err: err}
}

func isCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

func isFatal(err error) bool {
	return errors.Is(err, action.ErrUnsupportedFormat)
}
