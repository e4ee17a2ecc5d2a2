package channel

import "fmt"

// Error is a channel-level failure: no live connection or no resolvable
// recipient for a send.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "channel: " + e.Reason
}

var (
	// ErrNotConnected is returned when a send is attempted without a
	// live socket connection.
	ErrNotConnected = &Error{Reason: "not connected"}

	// ErrNoRecipient is returned when the recipient of a send cannot be
	// resolved from the argument or the conversation cache.
	ErrNoRecipient = &Error{Reason: "no recipient"}
)

// TransportError wraps a socket write failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("channel: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
