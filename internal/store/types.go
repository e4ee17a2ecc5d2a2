package store

// Message statuses. Transitions within a send attempt are monotonic:
// PENDING -> SENT or PENDING -> FAILED, never back.
const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"
)

// Message is a chat message row. IDs are server-assigned for persisted
// messages and "local_"-prefixed for client-originated pending ones.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      int64 // unix ms
	Type           string
	Status         string
}

// Conversation is a cached two-party conversation.
type Conversation struct {
	ID             string
	OtherUserID    string
	OtherUserName  string
	OtherUserImage string
	LastMessage    string
	UpdatedAt      int64 // unix ms
}
