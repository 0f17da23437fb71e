// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-pipeline.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrIllegalState        = errors.New("illegal state")
	ErrDuplicateName       = errors.New("duplicate handler name")
	ErrHandlerNotFound     = errors.New("handler not found")
	ErrNilHandler          = errors.New("nil handler")
	ErrHandlerNotShareable = errors.New("handler is not shareable and already added")
	ErrHandlerAdd          = errors.New("handler added callback failed")
	ErrNotCapable          = errors.New("handler implements neither inbound nor outbound contract")
	ErrTransportClosed     = errors.New("transport is closed")
	ErrNotSupported        = errors.New("operation not supported")
	ErrUnsupportedMessage  = errors.New("unsupported message type")
	ErrEventLoopClosed     = errors.New("event loop is shut down")
)

// PanicError carries a panic recovered from a handler method.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TransitionError reports a rejected channel lifecycle transition.
type TransitionError struct {
	From ChannelState
	To   ChannelState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal channel transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalState
}
