package bus

import "time"

// Event is a domain event published in-process. Kind is a dot-separated
// name whose leading segment ("message.", "presence.", "channel.") is the
// namespace subscribers filter on.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
