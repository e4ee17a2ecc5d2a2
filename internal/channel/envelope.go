package channel

// Envelope is the bidirectional realtime wire frame. Outbound frames set
// conversation_id, receiver_id and content only; the server infers the
// sender from the authenticated connection.
type Envelope struct {
	Type           string `json:"type,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	ReceiverID     string `json:"receiver_id,omitempty"`
	Content        string `json:"content"`
	SenderID       string `json:"sender_id,omitempty"`
}

// DefaultType is the envelope type for plain chat messages.
const DefaultType = "chat"

// TypeUserStatus marks presence frames ("online"/"offline" in content).
const TypeUserStatus = "user_status"
