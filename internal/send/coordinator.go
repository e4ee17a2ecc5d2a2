// Package send performs optimistic message sends: local insert first,
// transmit second, reconcile status last.
package send

import (
	"fmt"
	"time"

	"github.com/cursyhq/cursy/internal/bus"
	"github.com/cursyhq/cursy/internal/channel"
	"github.com/cursyhq/cursy/internal/recipients"
	"github.com/cursyhq/cursy/internal/store"
	"go.uber.org/zap"
)

// Transport is the realtime channel surface the coordinator needs.
type Transport interface {
	Connected() bool
	Start()
	Send(channel.Envelope) error
}

// Identity supplies the current user id stamped on outgoing messages.
type Identity interface {
	CurrentUserID() string
}

// Coordinator writes an outgoing message to the store as PENDING before
// transmission, so the UI reflects the attempt without waiting for the
// network, then settles it to SENT or FAILED. No queueing or retry: the
// caller decides whether to resurface a retry action.
type Coordinator struct {
	db         *store.DB
	transport  Transport
	recipients *recipients.Cache
	identity   Identity
	bus        *bus.Bus
	logger     *zap.Logger
}

// NewCoordinator creates a send coordinator.
func NewCoordinator(db *store.DB, t Transport, rc *recipients.Cache, identity Identity, b *bus.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		db:         db,
		transport:  t,
		recipients: rc,
		identity:   identity,
		bus:        b,
		logger:     logger,
	}
}

// Send transmits content to a conversation. An empty receiverID is
// resolved through the conversation cache; a supplied one refreshes it.
// Returns channel.ErrNotConnected, channel.ErrNoRecipient, a
// *channel.TransportError, or a store error.
func (c *Coordinator) Send(conversationID, receiverID, content string) error {
	if !c.transport.Connected() {
		// Kick off a connection attempt for the caller's retry, but fail
		// this send immediately.
		go c.transport.Start()
		return channel.ErrNotConnected
	}

	recipient := receiverID
	if recipient == "" {
		cached, ok := c.recipients.Get(conversationID)
		if !ok {
			return channel.ErrNoRecipient
		}
		recipient = cached
	} else {
		c.recipients.Put(conversationID, recipient)
	}

	// Optimistic insert. Must happen after recipient resolution (a
	// failed resolution leaves no trace) and before transmission.
	now := time.Now().UnixMilli()
	localID := NewLocalID(now)
	msg := store.Message{
		ID:             localID,
		ConversationID: conversationID,
		SenderID:       c.identity.CurrentUserID(),
		Content:        content,
		CreatedAt:      now,
		Type:           channel.DefaultType,
		Status:         store.StatusPending,
	}
	if err := c.db.UpsertMessage(&msg); err != nil {
		return fmt.Errorf("optimistic insert: %w", err)
	}
	c.publish("message.upserted", conversationID, localID)

	env := channel.Envelope{
		Type:           channel.DefaultType,
		ConversationID: conversationID,
		ReceiverID:     recipient,
		Content:        content,
	}
	if err := c.transport.Send(env); err != nil {
		// Roll back to FAILED rather than deleting: the entry keeps chat
		// history intact and gives the UI a retry affordance.
		if updErr := c.db.UpdateMessageStatus(localID, store.StatusFailed); updErr != nil {
			c.logger.Error("failed to mark message failed", zap.Error(updErr), zap.String("message_id", localID))
		}
		c.publish("message.send_failed", conversationID, localID)
		return err
	}

	if err := c.db.UpdateMessageStatus(localID, store.StatusSent); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	c.publish("message.upserted", conversationID, localID)
	return nil
}

func (c *Coordinator) publish(kind, conversationID, messageID string) {
	c.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload: map[string]string{
			"conversation_id": conversationID,
			"message_id":      messageID,
		},
	})
}

// NewLocalID mints a client-originated message id. The "local_" prefix
// marks the row as an optimistic insert the server has never seen.
func NewLocalID(unixMs int64) string {
	return fmt.Sprintf("local_%d", unixMs)
}
