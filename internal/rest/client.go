package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cursyhq/cursy/internal/store"
)

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	Token() string
}

// Client talks to the conversation/message REST surface and maps wire
// DTOs to domain entities.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient creates a REST client for the given API base URL.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
}

// Conversations lists the current user's conversations.
func (c *Client) Conversations(ctx context.Context) ([]store.Conversation, error) {
	var dtos []conversationDTO
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &dtos); err != nil {
		return nil, err
	}
	convs := make([]store.Conversation, 0, len(dtos))
	for _, d := range dtos {
		convs = append(convs, d.toDomain())
	}
	return convs, nil
}

// Messages lists the messages of a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]store.Message, error) {
	var dtos []messageDTO
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, err
	}
	msgs := make([]store.Message, 0, len(dtos))
	for _, d := range dtos {
		msgs = append(msgs, d.toDomain())
	}
	return msgs, nil
}

// CreateConversation opens (or returns) a conversation with another user.
func (c *Client) CreateConversation(ctx context.Context, otherUserID string) (*store.Conversation, error) {
	var dto conversationDTO
	body := createConversationRequest{OtherUserID: otherUserID}
	if err := c.do(ctx, http.MethodPost, "/conversations", body, &dto); err != nil {
		return nil, err
	}
	conv := dto.toDomain()
	return &conv, nil
}

// SearchUsers searches users by the optional query string.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]ChatUser, error) {
	path := "/users"
	if query != "" {
		path += "?search=" + url.QueryEscape(query)
	}
	var resp usersResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	users := make([]ChatUser, 0, len(resp.Users))
	for _, d := range resp.Users {
		users = append(users, d.toDomain())
	}
	return users, nil
}

// OnlineUsers returns the ids of all currently-online users.
func (c *Client) OnlineUsers(ctx context.Context) ([]string, error) {
	var resp onlineUsersResponse
	if err := c.do(ctx, http.MethodGet, "/users/online", nil, &resp); err != nil {
		return nil, err
	}
	return resp.OnlineUsers, nil
}

// DeleteAccount deletes the authenticated user's account.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/users/me", nil, nil)
}

// do executes one request. Transport failures surface as *NetworkError,
// non-2xx responses as *APIError; both carry the operation path.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
