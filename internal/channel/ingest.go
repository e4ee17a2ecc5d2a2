package channel

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cursyhq/cursy/internal/bus"
	"github.com/cursyhq/cursy/internal/recipients"
	"github.com/cursyhq/cursy/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity supplies the current user id for sender resolution.
type Identity interface {
	CurrentUserID() string
}

// Ingestor processes inbound realtime frames in arrival order. It owns
// the identity-resolution and dedup rules that keep the store consistent
// under concurrent local and remote writes: the wire protocol is a thin
// echo/broadcast channel without acknowledgment ids, so self-echoes must
// be recognized and dropped and foreign messages fingerprint-deduped.
type Ingestor struct {
	db         *store.DB
	identity   Identity
	recipients *recipients.Cache
	presence   *Presence
	bus        *bus.Bus
	logger     *zap.Logger
}

// NewIngestor creates a frame ingestor.
func NewIngestor(db *store.DB, identity Identity, rc *recipients.Cache, presence *Presence, b *bus.Bus, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		db:         db,
		identity:   identity,
		recipients: rc,
		presence:   presence,
		bus:        b,
		logger:     logger,
	}
}

// HandleFrame parses and applies one inbound frame. Malformed or
// unresolvable frames are logged and discarded; an error here must never
// terminate the read loop.
func (in *Ingestor) HandleFrame(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		in.logger.Warn("discarding malformed frame", zap.Error(err))
		return
	}

	if env.Type == TypeUserStatus {
		// Presence only; never a store write.
		in.presence.Set(env.SenderID, env.Content == "online")
		return
	}

	self := in.identity.CurrentUserID()

	// Sender resolution priority: explicit sender id; else if the frame
	// is addressed to someone else it is an echo of our own send; else
	// the cached other participant of the conversation.
	sender := env.SenderID
	if sender == "" {
		if env.ReceiverID != self {
			sender = self
		} else {
			sender, _ = in.recipients.Get(env.ConversationID)
		}
	}

	if sender == "" || env.ConversationID == "" {
		in.logger.Debug("discarding unresolvable frame",
			zap.String("conversation_id", env.ConversationID))
		return
	}

	// Our own messages are already in the store via optimistic insert;
	// accepting the echo would duplicate them.
	if sender == self {
		return
	}

	dupes, err := in.db.CountDuplicates(env.ConversationID, sender, env.Content)
	if err != nil {
		in.logger.Error("dedup query failed", zap.Error(err),
			zap.String("conversation_id", env.ConversationID))
		return
	}
	if dupes > 0 {
		return
	}

	now := time.Now().UnixMilli()
	msg := store.Message{
		ID:             NewInboundID(),
		ConversationID: env.ConversationID,
		SenderID:       sender,
		Content:        env.Content,
		CreatedAt:      now,
		Type:           messageType(env.Type),
		Status:         store.StatusSent,
	}
	if err := in.db.UpsertMessage(&msg); err != nil {
		in.logger.Error("failed to store inbound message", zap.Error(err),
			zap.String("conversation_id", env.ConversationID))
		return
	}
	if err := in.db.TouchConversation(env.ConversationID, truncate(env.Content, 100), now); err != nil {
		in.logger.Warn("failed to touch conversation", zap.Error(err))
	}

	in.bus.Publish(bus.Event{
		Kind:      "message.upserted",
		Timestamp: time.Now(),
		Payload: map[string]string{
			"conversation_id": msg.ConversationID,
			"message_id":      msg.ID,
		},
	})
}

// NewInboundID mints a server-style id for an inbound message. The
// server does not echo its own id on broadcast frames, so the client
// assigns one: 24 hex chars of a fresh uuid.
func NewInboundID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

func messageType(t string) string {
	if t == "" {
		return DefaultType
	}
	return t
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
