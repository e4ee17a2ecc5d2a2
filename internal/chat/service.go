// Package chat is the use-case layer the UI tier calls. It fans REST
// responses into the durable store and the recipient cache, keeping the
// store the single source of truth for message content.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/cursyhq/cursy/internal/bus"
	"github.com/cursyhq/cursy/internal/recipients"
	"github.com/cursyhq/cursy/internal/rest"
	"github.com/cursyhq/cursy/internal/store"
	"go.uber.org/zap"
)

// Remote is the REST surface the service consumes. *rest.Client is the
// production implementation; tests substitute a fake.
type Remote interface {
	Conversations(ctx context.Context) ([]store.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]store.Message, error)
	CreateConversation(ctx context.Context, otherUserID string) (*store.Conversation, error)
	SearchUsers(ctx context.Context, query string) ([]rest.ChatUser, error)
	DeleteAccount(ctx context.Context) error
}

// Sender is the outbound message surface, implemented by send.Coordinator.
type Sender interface {
	Send(conversationID, receiverID, content string) error
}

// Identity mirrors the read-only auth context.
type Identity interface {
	CurrentUserID() string
	Clear() error
}

// Service wires the remote client, the durable store and the send
// coordinator behind one API.
type Service struct {
	remote     Remote
	db         *store.DB
	sender     Sender
	recipients *recipients.Cache
	identity   Identity
	bus        *bus.Bus
	logger     *zap.Logger
}

// NewService creates the chat service.
func NewService(remote Remote, db *store.DB, sender Sender, rc *recipients.Cache, identity Identity, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{
		remote:     remote,
		db:         db,
		sender:     sender,
		recipients: rc,
		identity:   identity,
		bus:        b,
		logger:     logger,
	}
}

// Conversations fetches the conversation list, warms the recipient
// cache and mirrors the result into the store for offline listing.
func (s *Service) Conversations(ctx context.Context) ([]store.Conversation, error) {
	convs, err := s.remote.Conversations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		s.recipients.Put(convs[i].ID, convs[i].OtherUserID)
		if err := s.db.UpsertConversation(&convs[i]); err != nil {
			s.logger.Warn("failed to cache conversation", zap.Error(err), zap.String("conversation_id", convs[i].ID))
		}
	}
	return convs, nil
}

// Messages fetches a conversation's history and replaces the cached
// server-origin rows, leaving local pending/failed sends untouched. The
// recipient cache is refreshed from the first message not sent by us.
func (s *Service) Messages(ctx context.Context, conversationID string) ([]store.Message, error) {
	msgs, err := s.remote.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.db.ReplaceServerMessages(conversationID, msgs); err != nil {
		return nil, fmt.Errorf("replace server messages: %w", err)
	}

	self := s.identity.CurrentUserID()
	for _, m := range msgs {
		if m.SenderID != self {
			s.recipients.Put(conversationID, m.SenderID)
			break
		}
	}

	s.bus.Publish(bus.Event{
		Kind:      "message.history_replaced",
		Timestamp: time.Now(),
		Payload:   map[string]string{"conversation_id": conversationID},
	})
	return msgs, nil
}

// CreateConversation opens a conversation with another user and records
// the recipient mapping immediately.
func (s *Service) CreateConversation(ctx context.Context, otherUserID string) (*store.Conversation, error) {
	conv, err := s.remote.CreateConversation(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	s.recipients.Put(conv.ID, otherUserID)
	if err := s.db.UpsertConversation(conv); err != nil {
		s.logger.Warn("failed to cache conversation", zap.Error(err), zap.String("conversation_id", conv.ID))
	}
	return conv, nil
}

// SearchUsers searches users by an optional query.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]rest.ChatUser, error) {
	return s.remote.SearchUsers(ctx, query)
}

// Send delegates to the send coordinator.
func (s *Service) Send(conversationID, receiverID, content string) error {
	return s.sender.Send(conversationID, receiverID, content)
}

// DeleteMessage removes a single message from the store.
func (s *Service) DeleteMessage(conversationID, messageID string) error {
	if err := s.db.DeleteMessage(messageID); err != nil {
		return err
	}
	s.bus.Publish(bus.Event{
		Kind:      "message.deleted",
		Timestamp: time.Now(),
		Payload: map[string]string{
			"conversation_id": conversationID,
			"message_id":      messageID,
		},
	})
	return nil
}

// DeleteAccount deletes the account on the server, then clears the
// local credentials.
func (s *Service) DeleteAccount(ctx context.Context) error {
	if err := s.remote.DeleteAccount(ctx); err != nil {
		return err
	}
	return s.identity.Clear()
}
