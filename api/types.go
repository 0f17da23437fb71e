// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import "github.com/google/uuid"

// ChannelState enumerates the lifecycle of a channel.
type ChannelState int32

const (
	StateUnregistered ChannelState = iota
	StateRegistered
	StateActive
	StateInactive
)

func (s ChannelState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// CanTransition reports whether the lifecycle may move from s to next.
func (s ChannelState) CanTransition(next ChannelState) bool {
	switch s {
	case StateUnregistered:
		return next == StateRegistered
	case StateRegistered:
		return next == StateActive || next == StateUnregistered
	case StateActive:
		return next == StateInactive
	case StateInactive:
		return next == StateUnregistered
	}
	return false
}

// ChannelID is the globally unique identity of a channel.
type ChannelID uuid.UUID

// NewChannelID returns a random channel id.
func NewChannelID() ChannelID {
	return ChannelID(uuid.New())
}

// String returns the long textual form.
func (id ChannelID) String() string {
	return uuid.UUID(id).String()
}

// ShortText returns the first eight hex digits, enough for log lines.
func (id ChannelID) ShortText() string {
	return id.String()[:8]
}
