package rest

import (
	"strings"
	"time"

	"github.com/cursyhq/cursy/internal/store"
)

// Wire DTOs for the conversation/message REST surface.

type conversationDTO struct {
	ID           string        `json:"id"`
	Participants []string      `json:"participants"`
	OtherUser    *otherUserDTO `json:"other_user"`
	LastMessage  string        `json:"last_message"`
	UpdatedAt    string        `json:"updated_at"`
}

type otherUserDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
}

type messageDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

type usersResponse struct {
	Users []userDTO `json:"users"`
}

type userDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profile_image"`
	Bio          string `json:"bio"`
}

type onlineUsersResponse struct {
	OnlineUsers []string `json:"online_users"`
}

type createConversationRequest struct {
	OtherUserID string `json:"other_user_id"`
}

// ChatUser is a user search result projection. Read-only, no lifecycle
// beyond a single search response.
type ChatUser struct {
	ID    string
	Name  string
	Email string
	Image string
	Bio   string
}

// apiTimeLayout is the server timestamp format, sans fractional seconds.
const apiTimeLayout = "2006-01-02T15:04:05"

// parseAPITime parses a server timestamp into unix ms. Fractional
// seconds are truncated before parsing; unparseable input falls back to
// the current time rather than failing the whole response.
func parseAPITime(s string) int64 {
	s, _, _ = strings.Cut(s, ".")
	t, err := time.ParseInLocation(apiTimeLayout, s, time.UTC)
	if err != nil {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}

func (d conversationDTO) toDomain() store.Conversation {
	c := store.Conversation{
		ID:            d.ID,
		OtherUserName: "Chat",
		LastMessage:   d.LastMessage,
		UpdatedAt:     parseAPITime(d.UpdatedAt),
	}
	switch {
	case d.OtherUser != nil:
		c.OtherUserID = d.OtherUser.ID
		c.OtherUserName = d.OtherUser.Name
		c.OtherUserImage = d.OtherUser.ProfileImage
	case len(d.Participants) > 1:
		c.OtherUserID = d.Participants[1]
	}
	return c
}

func (d messageDTO) toDomain() store.Message {
	return store.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		CreatedAt:      parseAPITime(d.CreatedAt),
		Type:           "chat",
		Status:         store.StatusSent,
	}
}

func (d userDTO) toDomain() ChatUser {
	return ChatUser{
		ID:    d.ID,
		Name:  d.Name,
		Email: d.Email,
		Image: d.ProfileImage,
		Bio:   d.Bio,
	}
}
