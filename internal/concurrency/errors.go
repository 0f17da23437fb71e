// File: internal/concurrency/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"errors"

	"github.com/momentics/hioload-pipeline/api"
)

// ErrEventLoopClosed is returned by Execute once the loop stopped accepting
// tasks.
var ErrEventLoopClosed = api.ErrEventLoopClosed

// ErrNilTask rejects a nil task.
var ErrNilTask = errors.New("nil task")
