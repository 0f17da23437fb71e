// Package api
// Author: momentics
//
// Terminal diagnostics for events that ran off the end of a pipeline.

package api

// DiagnosticSink receives what no handler consumed. The pipeline does not
// interpret or retry based on these calls.
type DiagnosticSink interface {
	// UnhandledException is called when an error reached the pipeline tail.
	UnhandledException(ch Channel, err error)

	// UnhandledMessage is called when a read message reached the tail.
	UnhandledMessage(ch Channel, msg any)

	// UnhandledEvent is called when a user event reached the tail.
	UnhandledEvent(ch Channel, evt any)
}
