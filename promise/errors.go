// File: promise/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for promise completion and waiting.

package promise

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyCompleted is returned by SetSuccess/SetFailure on a promise that
	// has left the pending state.
	ErrAlreadyCompleted = errors.New("promise already completed")

	// ErrCancelled is the failure cause of a cancelled promise.
	ErrCancelled = errors.New("promise cancelled")

	// ErrNilCause rejects a failure without a cause.
	ErrNilCause = errors.New("failure cause must not be nil")
)

// InterruptedError reports that an interruptible wait was abandoned because
// its context was cancelled before the promise completed. The promise itself
// is unaffected and may still complete later.
type InterruptedError struct {
	Cause error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("wait interrupted: %v", e.Cause)
}

func (e *InterruptedError) Unwrap() error {
	return e.Cause
}

// IsInterrupted reports whether err is an *InterruptedError.
func IsInterrupted(err error) bool {
	var ie *InterruptedError
	return errors.As(err, &ie)
}
